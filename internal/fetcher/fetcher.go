package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads a remote dataset file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// ConditionalFetcher can skip a download when the remote file is unchanged.
type ConditionalFetcher interface {
	Fetcher

	// DownloadIfChanged fetches the URL only if its ETag differs from etag.
	// Returns (body, newETag, changed, error). If not changed, body is nil.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}
