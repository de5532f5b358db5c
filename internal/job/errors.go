package job

import (
	"errors"
	"fmt"

	"github.com/snapetech/hlsstitch/internal/hls"
)

var (
	// ErrNotSegments: the manifest resolved to something other than a segment list.
	ErrNotSegments = errors.New("manifest did not resolve to a segment list")
	// ErrNoSegments: every segment fetch failed, nothing to stitch.
	ErrNoSegments = errors.New("zero segments retrieved")
	ErrNotFound   = errors.New("job: not found")
	ErrNotReady   = errors.New("job: output not ready")
)

// ManifestError is fatal: no segments are attempted.
type ManifestError struct {
	URL      string
	Kind     hls.Kind // set when the resolver answered with a non-segment result
	Variants int
	Err      error
}

func (e *ManifestError) Error() string {
	if e.Kind == hls.KindVariants {
		return fmt.Sprintf("manifest: %v (master playlist with %d variants; pass a media playlist URL)", e.Err, e.Variants)
	}
	return fmt.Sprintf("manifest: %v", e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// StitchError is fatal: the assembler produced no readable output.
type StitchError struct {
	Retrieved int
	Total     int
	Err       error
}

func (e *StitchError) Error() string {
	return fmt.Sprintf("stitch %d/%d segments: %v", e.Retrieved, e.Total, e.Err)
}

func (e *StitchError) Unwrap() error { return e.Err }

// IncompleteError is returned instead of stitching a partial download when
// the pipeline is configured to require every segment.
type IncompleteError struct {
	Retrieved int
	Total     int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete download: %d/%d segments retrieved", e.Retrieved, e.Total)
}

// CleanupError is never returned to callers; it is only logged.
type CleanupError struct {
	Op   string
	Name string
	Err  error
}

func (e *CleanupError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cleanup %s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("cleanup %s: %v", e.Op, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
