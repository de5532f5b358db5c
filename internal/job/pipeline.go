// Package job runs one manifest-to-artifact download and tracks its phases.
//
// Pipeline.Run is the orchestrating routine: resolve the manifest, number the
// segments, fetch them batch by batch, restore manifest order, and hand the
// ordered buffers to an assembler session. State carries the phase, status
// line and the typed terminal error to the caller. Manager runs jobs
// asynchronously behind IDs.
package job

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/assembler"
	"github.com/snapetech/hlsstitch/internal/fetch"
	"github.com/snapetech/hlsstitch/internal/hls"
	"github.com/snapetech/hlsstitch/internal/logging"
	"github.com/snapetech/hlsstitch/internal/metrics"
	"github.com/snapetech/hlsstitch/internal/safeurl"
	"github.com/snapetech/hlsstitch/internal/scheduler"
	"github.com/snapetech/hlsstitch/internal/segment"
)

const (
	DefaultOutputName  = "output.mp4"
	DefaultContentType = "video/mp4"
)

// Config holds the pipeline tunables.
type Config struct {
	BatchSize   int
	OutputName  string // assembler output name; its extension picks the container
	ContentType string // "" = derived from OutputName
	// ForwardHeaders sends the manifest request headers with every segment request.
	ForwardHeaders bool
	// RequireComplete fails the job instead of stitching a partial segment set.
	RequireComplete bool
}

// Request starts one job.
type Request struct {
	ManifestURL string            `json:"url"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// Fetcher retrieves one segment; *fetch.Fetcher is the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, d segment.Descriptor) ([]byte, error)
}

// Pipeline wires the collaborators of a download job. Safe for concurrent Runs.
type Pipeline struct {
	Resolver  hls.Resolver
	Assembler assembler.Factory
	// Client is used for segment requests when Fetcher is nil.
	Client  *http.Client
	Fetcher Fetcher
	Config  Config
	Metrics *metrics.Recorder
	Log     *zap.SugaredLogger
	Now     func() time.Time
}

// Run executes the job to a terminal phase on st and returns the artifact or the
// typed cause (*ManifestError, *StitchError, *IncompleteError, or ctx's error).
// st must be Idle; pass nil for a throwaway state.
func (p *Pipeline) Run(ctx context.Context, req Request, st *State) (art *Artifact, err error) {
	if st == nil {
		st = NewState("")
	}
	log := logging.OrNop(p.Log).With("manifest", safeurl.Redact(req.ManifestURL))
	if id := st.Snapshot().ID; id != "" {
		log = log.With("job", id)
	}
	if err := st.Apply(EventStart); err != nil {
		return nil, err
	}
	st.setManifest(req.ManifestURL)
	p.Metrics.JobStarted()
	log.Infow("pipeline: job started")
	defer func() {
		if err != nil {
			st.Fail(err)
			p.Metrics.JobEnded(string(Errored), 0)
			log.Warnw("pipeline: job failed", "err", err)
			return
		}
		p.Metrics.JobEnded(string(Finished), art.Size)
	}()

	// Manifest.
	if err := st.Apply(EventResolve); err != nil {
		return nil, err
	}
	st.SetStatus("Fetching manifest")
	res, err := p.Resolver.Resolve(ctx, hls.Request{ManifestURL: req.ManifestURL, Headers: req.Headers})
	if err != nil {
		return nil, &ManifestError{URL: req.ManifestURL, Err: err}
	}
	if res.Kind != hls.KindSegments {
		return nil, &ManifestError{URL: req.ManifestURL, Kind: res.Kind, Variants: len(res.Variants), Err: ErrNotSegments}
	}
	if res.Encrypted {
		log.Warnw("pipeline: playlist is encrypted; segments are stitched as fetched")
	}
	if res.Live {
		log.Warnw("pipeline: playlist has no ENDLIST; only the current window is downloaded")
	}

	uris := make([]string, len(res.Segments))
	durations := make([]float64, len(res.Segments))
	for i, s := range res.Segments {
		uris[i], durations[i] = s.URI, s.Duration
	}
	segments, err := segment.AssignIndices(uris, durations)
	if err != nil {
		return nil, &ManifestError{URL: req.ManifestURL, Err: err}
	}
	total := len(segments)
	st.setTotal(total)
	log.Infow("pipeline: manifest resolved", "segments", total)

	// Assembler session: released on every exit path from here on.
	sess, err := p.Assembler.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open assembler: %w", err)
	}
	defer func() {
		if rerr := sess.Release(); rerr != nil {
			log.Warnw("pipeline: cleanup failed", "err", &CleanupError{Op: "release", Err: rerr})
		}
	}()
	if err := st.Apply(EventDownload); err != nil {
		return nil, err
	}

	cfg := p.config()
	set, err := scheduler.Run(ctx, segments, p.fetcher(req).Fetch, scheduler.Options{
		BatchSize: cfg.BatchSize,
		OnProgress: func(pr scheduler.Progress) {
			msg := fmt.Sprintf("Downloading segment batch %d/%d - batch size: %d", pr.Batch, pr.Batches, pr.BatchSize)
			st.setBatch(pr.Batch, pr.Batches, msg)
			log.Infow("pipeline: batch started", "batch", pr.Batch, "batches", pr.Batches, "segments", pr.Segments)
		},
		OnOutcome: func(o segment.Outcome) {
			st.countOutcome(o.Failed())
			if o.Failed() {
				p.Metrics.SegmentFailed()
				log.Warnw("pipeline: segment failed", "index", o.Index, "err", o.Err)
				return
			}
			p.Metrics.SegmentFetched(len(o.Bytes))
		},
		OnBatch: func(r scheduler.BatchResult) {
			p.Metrics.BatchDone(r.Elapsed)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("download segments: %w", err)
	}

	ordered := segment.Order(set)
	retrieved := len(ordered)
	log.Infow("pipeline: segments downloaded", "retrieved", retrieved, "total", total, "bytes", humanize.Bytes(uint64(set.Bytes())))
	if retrieved < total && retrieved > 0 {
		if cfg.RequireComplete {
			return nil, &IncompleteError{Retrieved: retrieved, Total: total}
		}
		log.Warnw("pipeline: stitching partial download", "retrieved", retrieved, "total", total)
	}

	// Stitch.
	if err := st.Apply(EventStitch); err != nil {
		return nil, err
	}
	st.SetStatus(fmt.Sprintf("Stitching %d/%d segments", retrieved, total))
	if retrieved == 0 {
		return nil, &StitchError{Retrieved: 0, Total: total, Err: ErrNoSegments}
	}
	data, err := p.stitch(ctx, sess, ordered, cfg.OutputName, log)
	if err != nil {
		return nil, &StitchError{Retrieved: retrieved, Total: total, Err: err}
	}

	art = &Artifact{
		Name:              DownloadName(p.now(), cfg.OutputName),
		ContentType:       cfg.ContentType,
		Size:              len(data),
		SegmentsRetrieved: retrieved,
		SegmentsTotal:     total,
		Data:              data,
	}
	if err := st.Finish(art); err != nil {
		return nil, err
	}
	log.Infow("pipeline: job finished", "size", humanize.Bytes(uint64(art.Size)), "retrieved", retrieved, "total", total)
	return art, nil
}

// stitch stages the ordered buffers under their position, concatenates them
// and reads the output. Staged inputs are removed whether or not the concat worked.
func (p *Pipeline) stitch(ctx context.Context, sess assembler.Session, ordered [][]byte, output string, log *zap.SugaredLogger) ([]byte, error) {
	names := make([]string, 0, len(ordered))
	defer func() {
		for _, name := range names {
			if err := sess.RemoveInput(name); err != nil {
				log.Debugw("pipeline: cleanup failed", "err", &CleanupError{Op: "remove", Name: name, Err: err})
			}
		}
	}()
	for i, buf := range ordered {
		name := assembler.InputName(i)
		if err := sess.StageInput(name, buf); err != nil {
			return nil, fmt.Errorf("stage %s: %w", name, err)
		}
		names = append(names, name)
	}
	if err := sess.Concatenate(ctx, names, output); err != nil {
		return nil, err
	}
	return sess.ReadOutput(output)
}

func (p *Pipeline) fetcher(req Request) Fetcher {
	if p.Fetcher != nil {
		return p.Fetcher
	}
	f := &fetch.Fetcher{Client: p.Client}
	if p.Config.ForwardHeaders {
		f.Headers = req.Headers
	}
	return f
}

func (p *Pipeline) config() Config {
	c := p.Config
	if c.BatchSize <= 0 {
		c.BatchSize = scheduler.DefaultBatchSize
	}
	if c.OutputName == "" {
		c.OutputName = DefaultOutputName
	}
	if c.ContentType == "" {
		c.ContentType = ContentTypeFor(c.OutputName)
	}
	return c
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// ContentTypeFor maps an output container name to its MIME type.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts":
		return "video/mp2t"
	case ".mkv":
		return "video/x-matroska"
	case ".m4a":
		return "audio/mp4"
	case ".aac":
		return "audio/aac"
	default:
		return DefaultContentType
	}
}

// DownloadName is the suggested filename for an artifact, e.g. hls-downloader-2026-10-18.mp4.
func DownloadName(t time.Time, output string) string {
	ext := filepath.Ext(output)
	if ext == "" {
		ext = ".mp4"
	}
	return "hls-downloader-" + t.Format("2006-01-02") + ext
}
