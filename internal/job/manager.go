package job

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/logging"
)

// DefaultRetain is how many terminal jobs a Manager keeps for lookup.
const DefaultRetain = 32

// Handle is a running or finished job.
type Handle struct {
	ID     string
	state  *State
	cancel context.CancelFunc
	done   chan struct{}
	art    *Artifact
	err    error
}

// Snapshot returns the job's current state.
func (h *Handle) Snapshot() Snapshot { return h.state.Snapshot() }

// Subscribe registers fn for every state change.
func (h *Handle) Subscribe(fn func(Snapshot)) func() { return h.state.Subscribe(fn) }

// Done is closed once the job is terminal.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel asks the job to stop at the next batch boundary.
func (h *Handle) Cancel() { h.cancel() }

// Wait blocks until the job ends or ctx is done.
func (h *Handle) Wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-h.done:
		return h.art, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Artifact returns the output of a Finished job.
func (h *Handle) Artifact() (*Artifact, error) {
	select {
	case <-h.done:
	default:
		return nil, ErrNotReady
	}
	if h.art == nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReady, h.err)
	}
	return h.art, nil
}

// Manager starts jobs asynchronously and keeps them addressable by ID.
type Manager struct {
	Pipeline *Pipeline
	// Retain caps how many terminal jobs stay in memory; oldest are evicted first.
	Retain int
	// OnDone is called once per job with its terminal snapshot.
	OnDone func(Snapshot)
	Log    *zap.SugaredLogger

	mu    sync.Mutex
	jobs  map[string]*Handle
	order []string
	wg    sync.WaitGroup
}

// Start launches req in the background. ctx bounds the job's lifetime.
func (m *Manager) Start(ctx context.Context, req Request) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	h := &Handle{ID: id, state: NewState(id), cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if m.jobs == nil {
		m.jobs = make(map[string]*Handle)
	}
	m.jobs[id] = h
	m.order = append(m.order, id)
	m.evictLocked()
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()
		h.art, h.err = m.Pipeline.Run(ctx, req, h.state)
		close(h.done)
		if m.OnDone != nil {
			m.OnDone(h.state.Snapshot())
		}
	}()
	logging.OrNop(m.Log).Infow("manager: job queued", "job", id)
	return h
}

// Get returns the job with id.
func (m *Manager) Get(id string) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

// List returns snapshots of every retained job, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.Lock()
	hs := make([]*Handle, 0, len(m.jobs))
	for _, h := range m.jobs {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	out := make([]Snapshot, len(hs))
	for i, h := range hs {
		out[i] = h.Snapshot()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Wait blocks until every started job has returned.
func (m *Manager) Wait() { m.wg.Wait() }

// evictLocked drops the oldest terminal jobs beyond Retain.
func (m *Manager) evictLocked() {
	retain := m.Retain
	if retain <= 0 {
		retain = DefaultRetain
	}
	if len(m.order) <= retain {
		return
	}
	kept := m.order[:0]
	excess := len(m.order) - retain
	for _, id := range m.order {
		h := m.jobs[id]
		if excess > 0 && h.state.Phase().IsTerminal() {
			delete(m.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}
