package httpclient

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is sent on text requests (playlists) that we decode ourselves.
// Setting it disables net/http's transparent gzip, so DecodeBody must handle gzip too.
const AcceptEncoding = "br, gzip"

// DecodeBody returns a reader over resp.Body that undoes Content-Encoding br or gzip.
// Unknown or identity encodings are passed through. The caller still closes resp.Body.
func DecodeBody(resp *http.Response) (io.Reader, error) {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch enc {
	case "", "identity":
		return resp.Body, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	default:
		return resp.Body, nil
	}
}
