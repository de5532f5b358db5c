// Package cache maps artifact names to on-disk and object-store locations.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Path returns the final file path for an artifact. Stable: the same name
// always maps to the same path.
func Path(outDir, name string) string {
	return filepath.Join(outDir, sanitizeName(name))
}

// PartialPattern is the os.CreateTemp pattern for an artifact being written
// before it is renamed onto its reserved path.
func PartialPattern(name string) string {
	return sanitizeName(name) + ".*.partial"
}

// Reserve claims Path(outDir, name), or the first free "<base>-N<ext>"
// variant, by creating it empty with O_EXCL. Concurrent callers with the same
// name always get distinct paths. The caller owns the empty file at the
// returned path and removes it if it gives up.
func Reserve(outDir, name string) (string, error) {
	p := Path(outDir, name)
	ext := filepath.Ext(p)
	base := strings.TrimSuffix(p, ext)
	for n := 0; ; n++ {
		candidate := p
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return candidate, f.Close()
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
}

// Key returns the object key for a job's artifact under prefix.
func Key(prefix, jobID, name string) string {
	return strings.TrimPrefix(path.Join(prefix, sanitizeName(jobID), sanitizeName(name)), "/")
}

func sanitizeName(id string) string {
	s := strings.ReplaceAll(id, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	if s == "" || s == "." || s == ".." {
		s = "unknown"
	}
	return s
}
