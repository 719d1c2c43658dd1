package manifest

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxManifestBytes bounds how much of a manifest response is read.
const maxManifestBytes = 64 << 20

// Doer is the HTTP capability the manifest fetch needs. *http.Client
// satisfies it; proxy and timeout policy belong to whoever built it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetch downloads and parses the manifest at url.
// Every failure wraps ErrManifestUnavailable.
func Fetch(ctx context.Context, client Doer, url, userAgent string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrManifestUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %w", ErrManifestUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrManifestUnavailable, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %w", ErrManifestUnavailable, err)
	}
	return Parse(body)
}
