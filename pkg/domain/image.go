package domain

import "context"

// FetchedImage holds the raw bytes downloaded for one image reference.
type FetchedImage struct {
	URL  string
	Data []byte
}

// FetchProgressFunc is called before each download starts. It may be called from several
// goroutines at once.
type FetchProgressFunc func(index, total int, url string)

type ImageFetcher interface {
	FetchImages(ctx context.Context, urls []string, onProgress FetchProgressFunc) ([]FetchedImage, error)
}
