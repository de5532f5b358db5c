// Package fetch retrieves the raw bytes of a single media segment.
//
// A Fetcher imposes no timeout, retry or backoff of its own. Those policies
// belong to the *http.Client it is given (see internal/httpclient).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/snapetech/hlsstitch/internal/httpclient"
	"github.com/snapetech/hlsstitch/internal/safeurl"
	"github.com/snapetech/hlsstitch/internal/segment"
)

// Error is a per-segment fetch failure. StatusCode is 0 when the transport
// itself failed (DNS, timeout, abort); callers treat both cases the same.
type Error struct {
	Index      int
	URI        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch segment %d %s: HTTP %d", e.Index, safeurl.Redact(e.URI), e.StatusCode)
	}
	return fmt.Sprintf("fetch segment %d %s: %v", e.Index, safeurl.Redact(e.URI), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fetcher does one GET per segment. Safe for concurrent use.
type Fetcher struct {
	Client *http.Client
	// Headers are sent with every segment request (e.g. forwarded manifest
	// headers). Accept-Encoding is never forwarded.
	Headers map[string]string
}

// Fetch returns the body of d.URI. Any non-2xx status is an *Error.
func (f *Fetcher) Fetch(ctx context.Context, d segment.Descriptor) ([]byte, error) {
	if !safeurl.IsHTTPOrHTTPS(d.URI) {
		return nil, &Error{Index: d.Index, URI: d.URI, Err: fmt.Errorf("unsupported URL scheme")}
	}
	client := f.Client
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URI, nil)
	if err != nil {
		return nil, &Error{Index: d.Index, URI: d.URI, Err: err}
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	for k, v := range f.Headers {
		// A forwarded Accept-Encoding would turn off the transport's gzip
		// handling and stage compressed bytes.
		if http.CanonicalHeaderKey(k) == "Accept-Encoding" {
			continue
		}
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Index: d.Index, URI: d.URI, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &Error{Index: d.Index, URI: d.URI, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Index: d.Index, URI: d.URI, Err: err}
	}
	return data, nil
}
