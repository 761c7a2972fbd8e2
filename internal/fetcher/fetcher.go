// Package fetcher retrieves the case feed and the hospital directory over HTTP
// or from local files, and parses delimited text and XLSX sheets.
package fetcher

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// HeadETag performs a HEAD request and returns the ETag header value.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error). If not changed, body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// IsRemote reports whether src names an http(s) resource rather than a local path.
func IsRemote(src string) bool {
	s := strings.ToLower(src)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Open returns a reader for src: remote sources go through f, anything else is
// opened from disk.
func Open(ctx context.Context, f Fetcher, src string) (io.ReadCloser, error) {
	if IsRemote(src) {
		if f == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", src)
		}
		return f.Download(ctx, src)
	}
	file, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", src)
	}
	return file, nil
}
