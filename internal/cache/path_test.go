package cache

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestPath_stable(t *testing.T) {
	p1 := Path("/out", "hls-downloader-2026-10-18.mp4")
	p2 := Path("/out", "hls-downloader-2026-10-18.mp4")
	if p1 != p2 {
		t.Errorf("Path should be stable: %q vs %q", p1, p2)
	}
}

func TestPath_sanitized(t *testing.T) {
	if got := filepath.Base(Path("/out", "../etc/passwd")); got != ".._etc_passwd" {
		t.Errorf("separators should be sanitized: %s", got)
	}
	if got := Path("/out", ".."); got != filepath.Join("/out", "unknown") {
		t.Errorf("dot-dot should not escape: %s", got)
	}
}

func TestPartialPattern(t *testing.T) {
	dir := t.TempDir()
	f, err := os.CreateTemp(dir, PartialPattern("x.mp4"))
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	name := filepath.Base(f.Name())
	if !strings.HasPrefix(name, "x.mp4.") || filepath.Ext(name) != ".partial" {
		t.Errorf("temp name = %s", name)
	}
	if PartialPattern("../a") != ".._a.*.partial" {
		t.Errorf("pattern not sanitized: %s", PartialPattern("../a"))
	}
}

func TestReserve(t *testing.T) {
	dir := t.TempDir()
	got, err := Reserve(dir, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(dir, "a.mp4") {
		t.Fatalf("fresh name = %s", got)
	}
	if _, err := os.Stat(got); err != nil {
		t.Fatalf("reserved file missing: %v", err)
	}
	os.WriteFile(filepath.Join(dir, "a-1.mp4"), []byte("x"), 0644)
	if got, _ := Reserve(dir, "a.mp4"); got != filepath.Join(dir, "a-2.mp4") {
		t.Errorf("taken name = %s", got)
	}
}

func TestReserve_concurrentCallersGetDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	const n = 16
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := Reserve(dir, "same.ts")
			if err != nil {
				t.Error(err)
				return
			}
			paths[i] = p
		}(i)
	}
	wg.Wait()
	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Fatalf("path %s reserved twice: %v", p, paths)
		}
		seen[p] = true
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != n {
		t.Errorf("files = %d, want %d", len(entries), n)
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		prefix, id, name, want string
	}{
		{"", "j1", "out.mp4", "j1/out.mp4"},
		{"media/hls", "j1", "out.mp4", "media/hls/j1/out.mp4"},
		{"/media/", "j/1", "out.mp4", "media/j_1/out.mp4"},
	}
	for _, tt := range tests {
		if got := Key(tt.prefix, tt.id, tt.name); got != tt.want {
			t.Errorf("Key(%q,%q,%q) = %q, want %q", tt.prefix, tt.id, tt.name, got, tt.want)
		}
	}
}
