// Package health runs preflight checks for the manifest source and the assembler.
package health

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/snapetech/hlsstitch/internal/hls"
)

// ManifestReport summarises a manifest without downloading any segment.
type ManifestReport struct {
	Kind      hls.Kind
	Segments  int
	Variants  int
	Duration  time.Duration
	Encrypted bool
	Live      bool
}

func (r ManifestReport) String() string {
	if r.Kind == hls.KindVariants {
		return fmt.Sprintf("master playlist with %d variants (pick one and pass its URL)", r.Variants)
	}
	s := fmt.Sprintf("media playlist: %d segments, %s", r.Segments, r.Duration.Round(time.Second))
	if r.Encrypted {
		s += ", encrypted"
	}
	if r.Live {
		s += ", live (no ENDLIST)"
	}
	return s
}

// CheckManifest resolves manifestURL and reports what it contains.
func CheckManifest(ctx context.Context, client *http.Client, manifestURL string, headers map[string]string) (ManifestReport, error) {
	if manifestURL == "" {
		return ManifestReport{}, fmt.Errorf("no manifest URL given")
	}
	res, err := (&hls.HTTPResolver{Client: client}).Resolve(ctx, hls.Request{ManifestURL: manifestURL, Headers: headers})
	if err != nil {
		return ManifestReport{}, fmt.Errorf("manifest unreachable: %w", err)
	}
	rep := ManifestReport{
		Kind:      res.Kind,
		Segments:  len(res.Segments),
		Variants:  len(res.Variants),
		Encrypted: res.Encrypted,
		Live:      res.Live,
	}
	var secs float64
	for _, s := range res.Segments {
		secs += s.Duration
	}
	rep.Duration = time.Duration(secs * float64(time.Second))
	return rep, nil
}

// CheckFFmpeg verifies bin (or "ffmpeg" on PATH) runs and returns its version line.
func CheckFFmpeg(ctx context.Context, bin string) (string, error) {
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
