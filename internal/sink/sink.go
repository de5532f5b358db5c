// Package sink persists finished artifacts to a directory or an S3 bucket.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/cache"
	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/logging"
)

// Sink stores an artifact and returns where it ended up (a path or s3:// URL).
type Sink interface {
	Put(ctx context.Context, jobID string, a *job.Artifact) (string, error)
}

// Local writes artifacts into Dir. The final name is reserved up front, so
// concurrent jobs that share a name land on distinct "-N" paths; the reserved
// file stays empty until the fully written temp file is renamed onto it.
type Local struct {
	Dir string
	Log *zap.SugaredLogger
}

func (l *Local) Put(ctx context.Context, jobID string, a *job.Artifact) (string, error) {
	if a == nil || len(a.Data) == 0 {
		return "", fmt.Errorf("sink: empty artifact")
	}
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return "", err
	}
	final, err := cache.Reserve(l.Dir, a.Name)
	if err != nil {
		return "", fmt.Errorf("sink: reserve %s: %w", a.Name, err)
	}
	if err := writeOnto(ctx, l.Dir, final, a.Data); err != nil {
		os.Remove(final)
		return "", err
	}
	logging.OrNop(l.Log).Infow("sink: artifact written", "job", jobID, "path", final, "bytes", len(a.Data))
	return final, nil
}

// writeOnto writes data to a private temp file in dir and renames it onto final.
func writeOnto(ctx context.Context, dir, final string, data []byte) error {
	tmp, err := os.CreateTemp(dir, cache.PartialPattern(filepath.Base(final)))
	if err != nil {
		return fmt.Errorf("sink: create partial for %s: %w", filepath.Base(final), err)
	}
	partial := tmp.Name()
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return fmt.Errorf("sink: write %s: %w", filepath.Base(partial), err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(partial)
		return err
	}
	if err := os.Chmod(partial, 0644); err != nil {
		os.Remove(partial)
		return fmt.Errorf("sink: chmod %s: %w", filepath.Base(partial), err)
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return fmt.Errorf("sink: rename %s: %w", filepath.Base(final), err)
	}
	return nil
}
