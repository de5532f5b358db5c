package assembler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// FFmpeg is a Factory whose sessions stage inputs in a private temp dir and
// join them with ffmpeg's concat protocol (-c copy, no transcode).
// Requires ffmpeg in PATH unless Bin is set.
type FFmpeg struct {
	Bin     string // default "ffmpeg"
	WorkDir string // parent for per-session dirs; "" = os.TempDir()
}

func (f *FFmpeg) Open(ctx context.Context) (Session, error) {
	bin := f.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if f.WorkDir != "" {
		if err := os.MkdirAll(f.WorkDir, 0755); err != nil {
			return nil, err
		}
	}
	dir, err := os.MkdirTemp(f.WorkDir, "hls-stitch-*")
	if err != nil {
		return nil, err
	}
	return &ffmpegSession{bin: path, dir: dir}, nil
}

type ffmpegSession struct {
	bin string
	dir string
}

func (s *ffmpegSession) StageInput(name string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, name), data, 0644)
}

// ConcatArgs builds the ffmpeg argument list. MP4-family outputs get the ADTS
// to ASC bitstream filter and faststart, same as an HLS remux.
func ConcatArgs(inputs []string, output string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "concat:" + strings.Join(inputs, "|"),
		"-c", "copy",
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".m4v", ".mov":
		args = append(args, "-bsf:a", "aac_adtstoasc", "-movflags", "+faststart")
	}
	return append(args, output)
}

func (s *ffmpegSession) Concatenate(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return ErrNoInputs
	}
	if err := checkName(output); err != nil {
		return err
	}
	for _, in := range inputs {
		if err := checkName(in); err != nil {
			return err
		}
		if _, err := os.Stat(filepath.Join(s.dir, in)); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownInput, in)
		}
	}
	cmd := exec.CommandContext(ctx, s.bin, ConcatArgs(inputs, output)...)
	cmd.Dir = s.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[len(msg)-512:]
		}
		if msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegSession) ReadOutput(name string) ([]byte, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoOutput, name)
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoOutput, name)
	}
	return data, nil
}

func (s *ffmpegSession) RemoveInput(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	return os.Remove(filepath.Join(s.dir, name))
}

func (s *ffmpegSession) Release() error {
	return os.RemoveAll(s.dir)
}
