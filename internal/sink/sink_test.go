package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/snapetech/hlsstitch/internal/job"
)

func TestLocal_put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	l := &Local{Dir: dir}
	a := &job.Artifact{Name: "hls-downloader-2026-10-18.mp4", Data: []byte("media")}

	p1, err := l.Put(context.Background(), "j1", a)
	if err != nil {
		t.Fatal(err)
	}
	if p1 != filepath.Join(dir, a.Name) {
		t.Errorf("path = %s", p1)
	}
	got, _ := os.ReadFile(p1)
	if string(got) != "media" {
		t.Errorf("content = %q", got)
	}
	p2, err := l.Put(context.Background(), "j2", a)
	if err != nil {
		t.Fatal(err)
	}
	if p2 == p1 {
		t.Error("second artifact with the same name must not overwrite the first")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".partial" {
			t.Errorf("leftover partial file %s", e.Name())
		}
	}
}

func TestLocal_concurrentSameNameKeepsEveryArtifact(t *testing.T) {
	dir := t.TempDir()
	l := &Local{Dir: dir}
	const jobs = 6
	locs := make([]string, jobs)
	payloads := make([][]byte, jobs)
	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		payloads[i] = bytes.Repeat([]byte{byte('a' + i)}, 1<<20)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := &job.Artifact{Name: "hls-downloader-2026-10-18.mp4", Data: payloads[i]}
			loc, err := l.Put(context.Background(), fmt.Sprintf("j%d", i), a)
			if err != nil {
				t.Error(err)
				return
			}
			locs[i] = loc
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, loc := range locs {
		if loc == "" || seen[loc] {
			t.Fatalf("locations not distinct: %v", locs)
		}
		seen[loc] = true
		got, err := os.ReadFile(loc)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, payloads[i]) {
			t.Errorf("%s holds another job's bytes", filepath.Base(loc))
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != jobs {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("files = %v, want %d artifacts", names, jobs)
	}
}

func TestLocal_cancelledLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&Local{Dir: dir}).Put(ctx, "j", &job.Artifact{Name: "x.ts", Data: []byte("x")}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestLocal_emptyArtifact(t *testing.T) {
	l := &Local{Dir: t.TempDir()}
	if _, err := l.Put(context.Background(), "j", &job.Artifact{Name: "x.mp4"}); err == nil {
		t.Fatal("empty artifact should fail")
	}
}

type fakePut struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePut) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3_put(t *testing.T) {
	f := &fakePut{}
	s := &S3{Client: f, Bucket: "media", Prefix: "hls"}
	loc, err := s.Put(context.Background(), "j1", &job.Artifact{Name: "out.mp4", ContentType: "video/mp4", Data: []byte("abc")})
	if err != nil {
		t.Fatal(err)
	}
	if loc != "s3://media/hls/j1/out.mp4" {
		t.Errorf("location = %s", loc)
	}
	if aws.ToString(f.in.Bucket) != "media" || aws.ToString(f.in.Key) != "hls/j1/out.mp4" || aws.ToString(f.in.ContentType) != "video/mp4" {
		t.Errorf("input = %+v", f.in)
	}
	if string(f.body) != "abc" || aws.ToInt64(f.in.ContentLength) != 3 {
		t.Errorf("body = %q len=%d", f.body, aws.ToInt64(f.in.ContentLength))
	}
}

func TestS3_putError(t *testing.T) {
	boom := errors.New("denied")
	s := &S3{Client: &fakePut{err: boom}, Bucket: "media"}
	if _, err := s.Put(context.Background(), "j", &job.Artifact{Name: "x", Data: []byte("1")}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
}

func TestNewS3_requiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Options{}); err == nil {
		t.Fatal("want error")
	}
}
