package managers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowbaker/runreel/pkg/domain"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultFetchTimeout  = 60 * time.Second
	DefaultMaxImageBytes = 20 << 20
)

type httpImageFetcher struct {
	client        *http.Client
	concurrency   int
	maxImageBytes int64
}

type HTTPImageFetcherDependencies struct {
	// Client defaults to an http.Client with Timeout.
	Client  *http.Client
	Timeout time.Duration
	// Concurrency caps parallel downloads. Zero means no cap.
	Concurrency   int
	MaxImageBytes int64
}

func NewHTTPImageFetcher(deps HTTPImageFetcherDependencies) domain.ImageFetcher {
	client := deps.Client
	if client == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = DefaultFetchTimeout
		}

		client = &http.Client{Timeout: timeout}
	}

	maxImageBytes := deps.MaxImageBytes
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}

	return &httpImageFetcher{
		client:        client,
		concurrency:   deps.Concurrency,
		maxImageBytes: maxImageBytes,
	}
}

// FetchImages downloads all urls concurrently and returns them in input order. The first failure
// cancels the remaining downloads.
func (f *httpImageFetcher) FetchImages(ctx context.Context, urls []string, onProgress domain.FetchProgressFunc) ([]domain.FetchedImage, error) {
	images := make([]domain.FetchedImage, len(urls))

	g, gctx := errgroup.WithContext(ctx)

	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}

	for i, url := range urls {
		g.Go(func() error {
			if onProgress != nil {
				onProgress(i, len(urls), url)
			}

			data, err := f.fetch(gctx, url)
			if err != nil {
				return domain.NewReelError(domain.ErrorKindFetchFailure, fmt.Sprintf("failed to download image %s", url), err)
			}

			images[i] = domain.FetchedImage{URL: url, Data: data}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return images, nil
}

func (f *httpImageFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(data)) > f.maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxImageBytes)
	}

	return data, nil
}
