// Package assembler concatenates ordered segment buffers into one container.
//
// A Session is a scratch working set: inputs are staged by name, concatenated
// by stream copy (no re-encode) into a named output, and read back. The
// pipeline opens one Session per job and releases it on every exit path.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Session is one job's assembler working set. Not safe for concurrent use.
type Session interface {
	// StageInput writes one named input unit.
	StageInput(name string, data []byte) error
	// Concatenate stream-copies inputs, in order, into output.
	Concatenate(ctx context.Context, inputs []string, output string) error
	// ReadOutput returns the bytes of a produced output.
	ReadOutput(name string) ([]byte, error)
	// RemoveInput drops a staged input. Best-effort.
	RemoveInput(name string) error
	// Release frees everything the session holds.
	Release() error
}

// Factory initialises sessions.
type Factory interface {
	Open(ctx context.Context) (Session, error)
}

var (
	ErrNoOutput     = errors.New("assembler: no readable output")
	ErrUnknownInput = errors.New("assembler: input not staged")
	ErrNoInputs     = errors.New("assembler: nothing to concatenate")
)

// checkName keeps staged names inside the session's working set.
func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\|`) || name == "." || name == ".." {
		return fmt.Errorf("assembler: invalid name %q", name)
	}
	return nil
}

// InputName is the staged name for the buffer at position index of the ordered list.
func InputName(index int) string {
	return fmt.Sprintf("%d.ts", index)
}
