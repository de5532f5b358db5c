package job

import (
	"errors"
	"fmt"
)

// Phase is the job's lifecycle state. Exactly one is active at a time.
type Phase string

const (
	Idle                Phase = "idle"
	Starting            Phase = "starting"
	FetchingManifest    Phase = "fetching_manifest"
	DownloadingSegments Phase = "downloading_segments"
	Stitching           Phase = "stitching"
	Finished            Phase = "finished"
	Errored             Phase = "errored"
)

func (p Phase) String() string { return string(p) }

// IsTerminal reports whether p ends the job. Terminal phases are absorbing;
// restarting needs a new job.
func (p Phase) IsTerminal() bool { return p == Finished || p == Errored }

// Event drives a phase transition.
type Event int

const (
	EventStart Event = iota
	EventResolve
	EventDownload
	EventStitch
	EventFinish
	EventFail
)

var eventNames = [...]string{"start", "resolve", "download", "stitch", "finish", "fail"}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("event(%d)", int(e))
}

var ErrIllegalTransition = errors.New("job: illegal phase transition")

var forward = map[Phase]struct {
	on   Event
	next Phase
}{
	Idle:                {EventStart, Starting},
	Starting:            {EventResolve, FetchingManifest},
	FetchingManifest:    {EventDownload, DownloadingSegments},
	DownloadingSegments: {EventStitch, Stitching},
	Stitching:           {EventFinish, Finished},
}

// Transition is the pure phase function. Fail is accepted from any non-terminal
// phase; every other event only moves one step forward.
func Transition(p Phase, e Event) (Phase, error) {
	if p.IsTerminal() {
		return p, fmt.Errorf("%w: %s on terminal %s", ErrIllegalTransition, e, p)
	}
	if e == EventFail {
		return Errored, nil
	}
	step, ok := forward[p]
	if !ok || step.on != e {
		return p, fmt.Errorf("%w: %s from %s", ErrIllegalTransition, e, p)
	}
	return step.next, nil
}
