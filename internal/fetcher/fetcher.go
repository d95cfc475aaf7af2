// Package fetcher downloads remote pages over plain HTTP.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote documents.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The caller
	// closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
