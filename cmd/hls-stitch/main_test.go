package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func origin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n#EXT-X-TARGETDURATION:4\n#EXTINF:4,\n0.ts\n#EXTINF:4,\n1.ts\n#EXT-X-ENDLIST\n")
	})
	mux.HandleFunc("/v/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1000\nindex.m3u8\n")
	})
	mux.HandleFunc("/v/0.ts", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "zero-") })
	mux.HandleFunc("/v/1.ts", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "one") })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	app := newApp()
	var out, errOut bytes.Buffer
	app.Writer, app.ErrWriter = &out, &errOut
	argv := append([]string{"hls-stitch", "--env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	err = app.RunContext(context.Background(), argv)
	return out.String(), errOut.String(), err
}

func TestDownload_writesStitchedFile(t *testing.T) {
	src := origin(t)
	dir := t.TempDir()
	stdout, stderr, err := run(t, "download", "--assembler", "memory", "--out-dir", dir, "--output-name", "out.ts", src.URL+"/v/index.m3u8")
	if err != nil {
		t.Fatalf("download: %v\n%s", err, stderr)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "hls-downloader-") || filepath.Ext(entries[0].Name()) != ".ts" {
		t.Fatalf("output dir = %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if string(data) != "zero-one" {
		t.Errorf("content = %q", data)
	}
	if !strings.Contains(stdout, "2/2 segments") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "Downloading segment batch 0/1 - batch size: 10") {
		t.Errorf("stderr lacks progress: %q", stderr)
	}
}

func TestDownload_masterPlaylistExitCode(t *testing.T) {
	src := origin(t)
	_, _, err := run(t, "download", "--assembler", "memory", "--out-dir", t.TempDir(), src.URL+"/v/master.m3u8")
	var coder cli.ExitCoder
	if !errors.As(err, &coder) || coder.ExitCode() != exitJobFail {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "manifest failed") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestDownload_memoryAssemblerDefaultsToTS(t *testing.T) {
	src := origin(t)
	dir := t.TempDir()
	if _, stderr, err := run(t, "download", "--assembler", "memory", "--out-dir", dir, src.URL+"/v/index.m3u8"); err != nil {
		t.Fatalf("download: %v\n%s", err, stderr)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".ts" {
		t.Errorf("entries = %v, want one .ts artifact", entries)
	}
}

func TestDownload_usageErrors(t *testing.T) {
	tests := [][]string{
		{"download"},
		{"download", "--header", "no-colon", "https://x/a.m3u8"},
		{"download", "--assembler", "vlc", "https://x/a.m3u8"},
		{"download", "--batch-size", "0", "https://x/a.m3u8"},
		{"download", "--assembler", "memory", "--output-name", "clip.mp4", "https://x/a.m3u8"},
	}
	for _, args := range tests {
		_, _, err := run(t, args...)
		if exitCode(err) != exitUsage {
			t.Errorf("%v: err = %v", args, err)
		}
	}
}

func TestCheck_memoryAssembler(t *testing.T) {
	src := origin(t)
	stdout, _, err := run(t, "check", "--assembler", "memory", src.URL+"/v/index.m3u8")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(stdout, "manifest: ok media playlist: 2 segments") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestHistory_recordedDownload(t *testing.T) {
	src := origin(t)
	db := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("HLS_STITCH_HISTORY_DB", db)
	if _, stderr, err := run(t, "download", "--assembler", "memory", "--out-dir", t.TempDir(), src.URL+"/v/index.m3u8?token=abc"); err != nil {
		t.Fatalf("download: %v\n%s", err, stderr)
	}
	stdout, _, err := run(t, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(stdout, "finished") || !strings.Contains(stdout, "?[redacted]") || strings.Contains(stdout, "abc") {
		t.Errorf("history output = %q", stdout)
	}
}

func TestParseHeaders(t *testing.T) {
	h, err := parseHeaders([]string{"Referer: https://player.example/", "X-Token:abc"})
	if err != nil {
		t.Fatal(err)
	}
	if h["Referer"] != "https://player.example/" || h["X-Token"] != "abc" {
		t.Errorf("headers = %v", h)
	}
	if h, _ := parseHeaders(nil); h != nil {
		t.Errorf("nil input = %v", h)
	}
}
