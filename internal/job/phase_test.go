package job

import (
	"errors"
	"testing"
)

func TestTransition_happyPath(t *testing.T) {
	p := Idle
	steps := []struct {
		e    Event
		want Phase
	}{
		{EventStart, Starting},
		{EventResolve, FetchingManifest},
		{EventDownload, DownloadingSegments},
		{EventStitch, Stitching},
		{EventFinish, Finished},
	}
	for _, s := range steps {
		next, err := Transition(p, s.e)
		if err != nil {
			t.Fatalf("%s from %s: %v", s.e, p, err)
		}
		if next != s.want {
			t.Fatalf("%s from %s = %s, want %s", s.e, p, next, s.want)
		}
		p = next
	}
}

func TestTransition_failFromAnyNonTerminal(t *testing.T) {
	for _, p := range []Phase{Idle, Starting, FetchingManifest, DownloadingSegments, Stitching} {
		next, err := Transition(p, EventFail)
		if err != nil || next != Errored {
			t.Errorf("fail from %s = %s, %v", p, next, err)
		}
	}
}

func TestTransition_terminalIsAbsorbing(t *testing.T) {
	for _, p := range []Phase{Finished, Errored} {
		for e := EventStart; e <= EventFail; e++ {
			next, err := Transition(p, e)
			if !errors.Is(err, ErrIllegalTransition) || next != p {
				t.Errorf("%s on %s = %s, %v", e, p, next, err)
			}
		}
	}
}

func TestTransition_noSkipping(t *testing.T) {
	tests := []struct {
		p Phase
		e Event
	}{
		{Idle, EventResolve},
		{Starting, EventDownload},
		{FetchingManifest, EventStitch},
		{DownloadingSegments, EventFinish},
		{Stitching, EventStart},
	}
	for _, tt := range tests {
		if _, err := Transition(tt.p, tt.e); !errors.Is(err, ErrIllegalTransition) {
			t.Errorf("%s from %s should be illegal, got %v", tt.e, tt.p, err)
		}
	}
}

func TestState_failClearsStatus(t *testing.T) {
	st := NewState("j1")
	var seen []Phase
	st.Subscribe(func(s Snapshot) { seen = append(seen, s.Phase) })
	st.Apply(EventStart)
	st.SetStatus("working")
	cause := errors.New("boom")
	if err := st.Fail(cause); err != nil {
		t.Fatal(err)
	}
	snap := st.Snapshot()
	if snap.Phase != Errored || snap.Status != "" || !errors.Is(snap.Err, cause) || snap.Error != "boom" {
		t.Errorf("snapshot = %+v", snap)
	}
	if err := st.Fail(errors.New("again")); err == nil {
		t.Error("second Fail on a terminal state must be rejected")
	}
	if st.Snapshot().Error != "boom" {
		t.Error("terminal outcome must not change")
	}
	if seen[len(seen)-1] != Errored {
		t.Errorf("listener phases = %v", seen)
	}
}

func TestState_finishOnlyOnce(t *testing.T) {
	st := NewState("j2")
	for _, e := range []Event{EventStart, EventResolve, EventDownload, EventStitch} {
		if err := st.Apply(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Finish(&Artifact{Size: 1}); err != nil {
		t.Fatal(err)
	}
	if err := st.Finish(&Artifact{Size: 2}); err == nil {
		t.Error("second Finish must fail")
	}
	if st.Snapshot().Artifact.Size != 1 {
		t.Error("artifact replaced")
	}
}

func TestState_unsubscribe(t *testing.T) {
	st := NewState("j3")
	calls := 0
	unsub := st.Subscribe(func(Snapshot) { calls++ })
	st.Apply(EventStart)
	unsub()
	st.Apply(EventResolve)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
