package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/logging"
	"github.com/snapetech/hlsstitch/internal/sink"
)

// HistoryRecorder is the write side of the job history.
type HistoryRecorder interface {
	Record(ctx context.Context, snap job.Snapshot, location string) error
}

// Archiver persists terminal jobs: the artifact goes to Sink, the outcome to History.
// Either may be nil. Use Done as job.Manager.OnDone.
type Archiver struct {
	Sink    sink.Sink
	History HistoryRecorder
	Timeout time.Duration // per job; 0 = 5m
	Log     *zap.SugaredLogger
}

// Done stores snap's artifact and records the job. Errors are logged, not returned:
// the job outcome is already final.
func (a *Archiver) Done(snap job.Snapshot) {
	log := logging.OrNop(a.Log).With("job", snap.ID)
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var location string
	if a.Sink != nil && snap.Phase == job.Finished && snap.Artifact != nil {
		loc, err := a.Sink.Put(ctx, snap.ID, snap.Artifact)
		if err != nil {
			log.Errorw("archive: store artifact failed", "err", err)
		} else {
			location = loc
		}
	}
	if a.History != nil {
		if err := a.History.Record(ctx, snap, location); err != nil {
			log.Errorw("archive: record history failed", "err", err)
		}
	}
}
