package domain

import "context"

const GifContentType = "image/gif"

// Artifact is an encoded gif that has been published for a run.
type Artifact struct {
	RunID      string
	Data       []byte
	PublicURL  string
	PrivateURL string
}

type UploadParams struct {
	Name        string
	File        []byte
	Folder      string
	ContentType string
}

type UploadResult struct {
	PublicURL  string `json:"publicUrl"`
	PrivateURL string `json:"privateUrl"`
}

// ArtifactPublisher stores artifacts durably. A nil result without an error is treated as a
// failed upload.
type ArtifactPublisher interface {
	Upload(ctx context.Context, params UploadParams) (*UploadResult, error)
}
