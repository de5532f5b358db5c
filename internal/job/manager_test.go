package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManager_startAndWait(t *testing.T) {
	var mu sync.Mutex
	var done []Snapshot
	m := &Manager{
		Pipeline: newPipeline(&fakeResolver{res: segmentsResult("A", "B")}, &fakeFetcher{}, &recordingAssembler{}),
		OnDone: func(s Snapshot) {
			mu.Lock()
			done = append(done, s)
			mu.Unlock()
		},
	}
	h := m.Start(context.Background(), Request{ManifestURL: "https://cdn.example/a.m3u8"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	art, err := h.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(art.Data) != "AB" {
		t.Errorf("data = %q", art.Data)
	}
	got, err := m.Get(h.ID)
	if err != nil || got != h {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if a, err := h.Artifact(); err != nil || a != art {
		t.Errorf("Artifact() = %v, %v", a, err)
	}
	m.Wait()
	mu.Lock()
	defer mu.Unlock()
	if len(done) != 1 || done[0].Phase != Finished || done[0].ID != h.ID {
		t.Errorf("OnDone = %+v", done)
	}
}

func TestManager_getUnknown(t *testing.T) {
	m := &Manager{}
	if _, err := m.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestManager_failedJobHasNoArtifact(t *testing.T) {
	m := &Manager{Pipeline: newPipeline(&fakeResolver{err: errors.New("gone")}, &fakeFetcher{}, &recordingAssembler{})}
	h := m.Start(context.Background(), Request{ManifestURL: "https://x/"})
	<-h.Done()
	if _, err := h.Artifact(); !errors.Is(err, ErrNotReady) {
		t.Errorf("Artifact err = %v", err)
	}
	if h.Snapshot().Phase != Errored {
		t.Errorf("phase = %s", h.Snapshot().Phase)
	}
}

func TestManager_evictsOldestTerminal(t *testing.T) {
	m := &Manager{
		Pipeline: newPipeline(&fakeResolver{res: segmentsResult("A")}, &fakeFetcher{}, &recordingAssembler{}),
		Retain:   2,
	}
	var ids []string
	for i := 0; i < 4; i++ {
		h := m.Start(context.Background(), Request{ManifestURL: "https://x/"})
		<-h.Done()
		ids = append(ids, h.ID)
	}
	m.Wait()
	if _, err := m.Get(ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("oldest job should be evicted")
	}
	if _, err := m.Get(ids[3]); err != nil {
		t.Errorf("newest job missing: %v", err)
	}
	if n := len(m.List()); n > 3 {
		t.Errorf("List len = %d", n)
	}
}
