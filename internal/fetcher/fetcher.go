// Package fetcher downloads filing documents and structured fact files over
// HTTP, and parses local tabular files for imports.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// Get fetches the URL and returns the full body.
	Get(ctx context.Context, url string) ([]byte, error)

	// GetIfChanged fetches the URL only if the ETag differs.
	// Returns (body, newETag, changed, error); body is nil when unchanged.
	GetIfChanged(ctx context.Context, url string, etag string) ([]byte, string, bool, error)

	// Reachable probes the URL without downloading the body. A nil error
	// means the document still exists.
	Reachable(ctx context.Context, url string) error
}
