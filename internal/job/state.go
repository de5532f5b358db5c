package job

import (
	"sync"
	"time"
)

// Artifact is the stitched output. Only a Finished job has one; the caller owns it.
type Artifact struct {
	Name              string `json:"name"`
	ContentType       string `json:"content_type"`
	Size              int    `json:"size"`
	SegmentsRetrieved int    `json:"segments_retrieved"`
	SegmentsTotal     int    `json:"segments_total"`
	Data              []byte `json:"-"`
}

// Snapshot is a point-in-time copy of a job's state.
type Snapshot struct {
	ID                string    `json:"id"`
	ManifestURL       string    `json:"manifest_url,omitempty"`
	Phase             Phase     `json:"phase"`
	Status            string    `json:"status,omitempty"`
	Error             string    `json:"error,omitempty"`
	Err               error     `json:"-"`
	Batch             int       `json:"batch"`
	Batches           int       `json:"batches"`
	SegmentsTotal     int       `json:"segments_total"`
	SegmentsRetrieved int       `json:"segments_retrieved"`
	SegmentsFailed    int       `json:"segments_failed"`
	Artifact          *Artifact `json:"artifact,omitempty"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
	EndedAt           time.Time `json:"ended_at,omitempty"`
}

// State is the explicit, caller-owned state of one job. Transitions go through
// Transition; listeners are called synchronously after every change, outside the lock.
type State struct {
	mu        sync.Mutex
	snap      Snapshot
	listeners map[int]func(Snapshot)
	nextID    int
	now       func() time.Time
}

// NewState returns an Idle state for job id.
func NewState(id string) *State {
	return &State{
		snap:      Snapshot{ID: id, Phase: Idle},
		listeners: make(map[int]func(Snapshot)),
		now:       time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Phase returns the current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Phase
}

// Subscribe registers fn for every change and returns an unsubscribe func.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Apply moves the state along e. Fail and Finish have dedicated helpers.
func (s *State) Apply(e Event) error {
	var err error
	s.update(func(snap *Snapshot) bool {
		next, terr := Transition(snap.Phase, e)
		if terr != nil {
			err = terr
			return false
		}
		snap.Phase = next
		if next == Starting {
			snap.StartedAt = s.now()
		}
		return true
	})
	return err
}

// SetStatus sets the human-readable status line.
func (s *State) SetStatus(status string) {
	s.update(func(snap *Snapshot) bool {
		if snap.Phase.IsTerminal() || snap.Status == status {
			return false
		}
		snap.Status = status
		return true
	})
}

// Fail moves to Errored, records the cause and clears the status line.
// A job that is already terminal keeps its outcome.
func (s *State) Fail(cause error) error {
	var err error
	s.update(func(snap *Snapshot) bool {
		next, terr := Transition(snap.Phase, EventFail)
		if terr != nil {
			err = terr
			return false
		}
		snap.Phase = next
		snap.Status = ""
		snap.Err = cause
		if cause != nil {
			snap.Error = cause.Error()
		}
		snap.EndedAt = s.now()
		return true
	})
	return err
}

// Finish moves Stitching to Finished with the artifact. Happens at most once.
func (s *State) Finish(a *Artifact) error {
	var err error
	s.update(func(snap *Snapshot) bool {
		next, terr := Transition(snap.Phase, EventFinish)
		if terr != nil {
			err = terr
			return false
		}
		snap.Phase = next
		snap.Status = ""
		snap.Artifact = a
		snap.EndedAt = s.now()
		return true
	})
	return err
}

func (s *State) setManifest(url string) {
	s.update(func(snap *Snapshot) bool {
		snap.ManifestURL = url
		return true
	})
}

func (s *State) setTotal(n int) {
	s.update(func(snap *Snapshot) bool {
		snap.SegmentsTotal = n
		return true
	})
}

func (s *State) setBatch(batch, batches int, status string) {
	s.update(func(snap *Snapshot) bool {
		snap.Batch, snap.Batches = batch, batches
		snap.Status = status
		return true
	})
}

func (s *State) countOutcome(failed bool) {
	s.update(func(snap *Snapshot) bool {
		if failed {
			snap.SegmentsFailed++
		} else {
			snap.SegmentsRetrieved++
		}
		return true
	})
}

// update applies fn under the lock and notifies listeners when fn reports a change.
func (s *State) update(fn func(*Snapshot) bool) {
	s.mu.Lock()
	if !fn(&s.snap) {
		s.mu.Unlock()
		return
	}
	s.snap.UpdatedAt = s.now()
	snap := s.snap
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
