// Package hls resolves an HLS manifest URL into an ordered list of segment URIs.
package hls

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/grafov/m3u8"

	"github.com/snapetech/hlsstitch/internal/httpclient"
	"github.com/snapetech/hlsstitch/internal/safeurl"
)

// Kind tags a resolver result.
type Kind string

const (
	// KindSegments is a media playlist: Segments is populated.
	KindSegments Kind = "segments"
	// KindVariants is a master playlist: Variants is populated, no segments.
	KindVariants Kind = "variants"
)

// Request is the resolver input.
type Request struct {
	ManifestURL string
	Headers     map[string]string
}

// Segment is one media playlist entry with its URI resolved against the manifest.
type Segment struct {
	URI      string
	Duration float64
}

// Variant is one master playlist entry.
type Variant struct {
	URI        string
	Bandwidth  uint32
	Resolution string
	Codecs     string
}

// Result is a tagged resolver result.
type Result struct {
	Kind     Kind
	Segments []Segment
	Variants []Variant
	// Encrypted is set when any #EXT-X-KEY with a method other than NONE applies.
	Encrypted bool
	// Live is set when the media playlist has no #EXT-X-ENDLIST.
	Live bool
}

// Resolver turns a manifest URL into a Result.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Result, error)
}

var ErrNotPlaylist = errors.New("hls: response is not a playlist")

// maxManifestBytes bounds how much of a manifest response is decoded.
const maxManifestBytes = 16 << 20

// HTTPResolver fetches the manifest over HTTP and decodes it with grafov/m3u8.
type HTTPResolver struct {
	Client *http.Client
}

func (r *HTTPResolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if !safeurl.IsHTTPOrHTTPS(req.ManifestURL) {
		return Result{}, fmt.Errorf("manifest url %q: only http(s) is supported", safeurl.Redact(req.ManifestURL))
	}
	client := r.Client
	if client == nil {
		client = httpclient.Default()
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.ManifestURL, nil)
	if err != nil {
		return Result{}, err
	}
	hreq.Header.Set("User-Agent", httpclient.UserAgent)
	for k, v := range req.Headers {
		hreq.Header.Set(k, v)
	}
	hreq.Header.Set("Accept-Encoding", httpclient.AcceptEncoding)
	resp, err := client.Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("get manifest: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("get %s: %s", safeurl.Redact(req.ManifestURL), resp.Status)
	}
	if !playlistContentType(resp.Header.Get("Content-Type")) {
		return Result{}, fmt.Errorf("%w: content-type %q", ErrNotPlaylist, resp.Header.Get("Content-Type"))
	}
	body, err := httpclient.DecodeBody(resp)
	if err != nil {
		return Result{}, err
	}
	return Decode(io.LimitReader(body, maxManifestBytes), req.ManifestURL)
}

// playlistContentType rejects responses that are clearly media, not a playlist.
// Many origins serve playlists as text/plain or octet-stream, so only obvious media types fail.
func playlistContentType(ct string) bool {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "video/mp4"), strings.Contains(ct, "application/mp4"),
		strings.Contains(ct, "video/mp2t"), strings.Contains(ct, "text/html"):
		return false
	}
	return true
}

// Decode parses a playlist body. baseURL resolves relative segment and variant URIs.
func Decode(r io.Reader, baseURL string) (Result, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(7); err != nil || string(head) != "#EXTM3U" {
		return Result{}, fmt.Errorf("%w: missing #EXTM3U header", ErrNotPlaylist)
	}
	playlist, listType, err := m3u8.DecodeFrom(br, false)
	if err != nil {
		return Result{}, fmt.Errorf("decode playlist: %w", err)
	}
	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		res := Result{Kind: KindVariants}
		for _, v := range master.Variants {
			if v == nil {
				continue
			}
			u, err := safeurl.Resolve(baseURL, v.URI)
			if err != nil {
				return Result{}, fmt.Errorf("variant uri %q: %w", v.URI, err)
			}
			res.Variants = append(res.Variants, Variant{
				URI:        u,
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
				Codecs:     v.Codecs,
			})
		}
		return res, nil
	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		res := Result{Kind: KindSegments, Live: !media.Closed}
		if encrypted(media.Key) {
			res.Encrypted = true
		}
		for _, seg := range media.Segments {
			if seg == nil {
				break
			}
			u, err := safeurl.Resolve(baseURL, seg.URI)
			if err != nil {
				return Result{}, fmt.Errorf("segment uri %q: %w", seg.URI, err)
			}
			if encrypted(seg.Key) {
				res.Encrypted = true
			}
			res.Segments = append(res.Segments, Segment{URI: u, Duration: seg.Duration})
		}
		return res, nil
	}
	return Result{}, fmt.Errorf("%w: unknown playlist type", ErrNotPlaylist)
}

func encrypted(k *m3u8.Key) bool {
	return k != nil && k.Method != "" && !strings.EqualFold(k.Method, "NONE")
}
