package assembler

import (
	"bytes"
	"context"
	"fmt"
)

// Memory is a Factory for in-process sessions that concatenate raw bytes.
// Byte-level joining is a valid stream copy for MPEG-TS segments, so this
// assembler needs no external binary; the output keeps the TS container.
type Memory struct{}

func (Memory) Open(ctx context.Context) (Session, error) {
	return &memorySession{files: make(map[string][]byte)}, nil
}

type memorySession struct {
	files    map[string][]byte
	released bool
}

func (s *memorySession) StageInput(name string, data []byte) error {
	if err := s.usable(name); err != nil {
		return err
	}
	s.files[name] = data
	return nil
}

func (s *memorySession) Concatenate(ctx context.Context, inputs []string, output string) error {
	if err := s.usable(output); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	var size int
	for _, in := range inputs {
		data, ok := s.files[in]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownInput, in)
		}
		size += len(data)
	}
	var buf bytes.Buffer
	buf.Grow(size)
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		buf.Write(s.files[in])
	}
	s.files[output] = buf.Bytes()
	return nil
}

func (s *memorySession) ReadOutput(name string) ([]byte, error) {
	data, ok := s.files[name]
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoOutput, name)
	}
	return data, nil
}

func (s *memorySession) RemoveInput(name string) error {
	if _, ok := s.files[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInput, name)
	}
	delete(s.files, name)
	return nil
}

func (s *memorySession) Release() error {
	s.files = nil
	s.released = true
	return nil
}

func (s *memorySession) usable(name string) error {
	if s.released {
		return fmt.Errorf("assembler: session released")
	}
	return checkName(name)
}
