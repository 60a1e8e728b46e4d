package managers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/flowbaker/runreel/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedObject struct {
	path        string
	contentType string
	body        []byte
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, func() []storedObject) {
	t.Helper()

	var (
		mu      sync.Mutex
		objects []storedObject
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
			return
		}

		mu.Lock()
		objects = append(objects, storedObject{
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		mu.Unlock()

		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))

	t.Cleanup(server.Close)

	return server, func() []storedObject {
		mu.Lock()
		defer mu.Unlock()

		return append([]storedObject{}, objects...)
	}
}

func newTestS3Publisher(t *testing.T, endpoint, publicDomain, privateDomain string) domain.ArtifactPublisher {
	t.Helper()

	client, err := NewS3Client(S3ClientConfig{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		ForcePathStyle:  true,
	})
	require.NoError(t, err)

	return NewS3ArtifactPublisher(S3ArtifactPublisherDependencies{
		Client:         client,
		Bucket:         "runreel",
		PublicDomain:   publicDomain,
		PrivateDomain:  privateDomain,
		ForcePathStyle: true,
	})
}

func TestS3ArtifactPublisher_Upload(t *testing.T) {
	server, objects := newFakeS3(t, http.StatusOK)

	publisher := newTestS3Publisher(t, server.URL, "https://cdn.example.com/", "http://minio:9000")

	result, err := publisher.Upload(context.Background(), domain.UploadParams{
		Name:        "1700000000000.gif",
		File:        []byte("GIF89a"),
		Folder:      "runs/run-1/gifs",
		ContentType: domain.GifContentType,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "https://cdn.example.com/runreel/runs/run-1/gifs/1700000000000.gif", result.PublicURL)
	assert.Equal(t, "http://minio:9000/runreel/runs/run-1/gifs/1700000000000.gif", result.PrivateURL)

	stored := objects()
	require.Len(t, stored, 1)
	assert.Equal(t, "/runreel/runs/run-1/gifs/1700000000000.gif", stored[0].path)
	assert.Equal(t, "image/gif", stored[0].contentType)
	assert.Equal(t, []byte("GIF89a"), stored[0].body)
}

func TestS3ArtifactPublisher_UploadFallsBackToLocation(t *testing.T) {
	server, _ := newFakeS3(t, http.StatusOK)

	publisher := newTestS3Publisher(t, server.URL, "", "")

	result, err := publisher.Upload(context.Background(), domain.UploadParams{
		Name:   "a.gif",
		File:   []byte("GIF89a"),
		Folder: "runs/run-2/gifs",
	})
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/runreel/runs/run-2/gifs/a.gif", result.PublicURL)
	assert.Equal(t, result.PublicURL, result.PrivateURL)
}

func TestS3ArtifactPublisher_UploadError(t *testing.T) {
	server, objects := newFakeS3(t, http.StatusForbidden)

	publisher := newTestS3Publisher(t, server.URL, "", "")

	result, err := publisher.Upload(context.Background(), domain.UploadParams{
		Name:   "a.gif",
		File:   []byte("GIF89a"),
		Folder: "runs/run-3/gifs",
	})

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, objects())

	_, err = publisher.Upload(context.Background(), domain.UploadParams{Folder: "runs/run-3/gifs"})
	assert.Error(t, err)
}
