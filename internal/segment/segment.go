// Package segment holds the per-segment data model of a download job and the
// Sequencer that restores manifest order after concurrent fetches.
package segment

import (
	"errors"
	"fmt"
	"sort"
)

// Descriptor is one manifest-listed media chunk.
// Index is the segment's manifest position; it is the only ordering key downstream.
type Descriptor struct {
	URI      string
	Index    int
	Duration float64 // seconds from #EXTINF, informational
}

// Outcome is the result of one fetch attempt. Bytes is set only on success.
type Outcome struct {
	Index int
	Bytes []byte
	Err   error
}

// Failed reports whether the fetch for this segment failed.
func (o Outcome) Failed() bool { return o.Err != nil }

var (
	ErrDuplicateIndex = errors.New("segment: duplicate index")
	ErrIndexGap       = errors.New("segment: indices not contiguous")
)

// AssignIndices numbers uris 0..N-1 in the order given and validates the result.
// It is the only place an Index is ever assigned.
func AssignIndices(uris []string, durations []float64) ([]Descriptor, error) {
	out := make([]Descriptor, len(uris))
	for i, u := range uris {
		d := Descriptor{URI: u, Index: i}
		if i < len(durations) {
			d.Duration = durations[i]
		}
		out[i] = d
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks that indices are unique and form the dense range 0..N-1.
func Validate(ds []Descriptor) error {
	seen := make([]bool, len(ds))
	for _, d := range ds {
		if d.Index < 0 || d.Index >= len(ds) {
			return fmt.Errorf("%w: index %d outside 0..%d", ErrIndexGap, d.Index, len(ds)-1)
		}
		if seen[d.Index] {
			return fmt.Errorf("%w: %d", ErrDuplicateIndex, d.Index)
		}
		seen[d.Index] = true
	}
	return nil
}

// SuccessSet accumulates successful outcomes across batches. Append-only.
// Not safe for concurrent use; the scheduler adds to it only after a batch has settled.
type SuccessSet struct {
	items []Outcome
}

// Add appends o if it succeeded and reports whether it was kept.
func (s *SuccessSet) Add(o Outcome) bool {
	if o.Failed() {
		return false
	}
	s.items = append(s.items, o)
	return true
}

// Len returns the number of successful outcomes.
func (s *SuccessSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Outcomes returns a copy in insertion order.
func (s *SuccessSet) Outcomes() []Outcome {
	if s == nil {
		return nil
	}
	out := make([]Outcome, len(s.items))
	copy(out, s.items)
	return out
}

// Bytes returns the total payload size held by the set.
func (s *SuccessSet) Bytes() int64 {
	var n int64
	if s == nil {
		return 0
	}
	for _, o := range s.items {
		n += int64(len(o.Bytes))
	}
	return n
}

// Sorted returns the set's outcomes in ascending Index order.
// Completion order inside a batch is arbitrary; getting this wrong corrupts
// the output silently, so every consumer goes through here.
func Sorted(s *SuccessSet) []Outcome {
	out := s.Outcomes()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Order is the Sequencer: payloads in ascending manifest order.
func Order(s *SuccessSet) [][]byte {
	sorted := Sorted(s)
	out := make([][]byte, len(sorted))
	for i, o := range sorted {
		out[i] = o.Bytes
	}
	return out
}
