// Package scheduler drives segment fetches in fixed-size batches.
//
// Batches run one after another; inside a batch every segment is fetched
// concurrently and the batch settles only when all fetches have returned,
// success or failure. Peak concurrency is therefore BatchSize regardless of
// manifest length. Failed segments are dropped, never retried.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/snapetech/hlsstitch/internal/segment"
)

// DefaultBatchSize matches the upstream downloader's chunk size.
const DefaultBatchSize = 10

// FetchFunc retrieves one segment. It must be safe for concurrent use.
type FetchFunc func(ctx context.Context, d segment.Descriptor) ([]byte, error)

// Progress is reported once per batch, before the batch is dispatched.
type Progress struct {
	Batch     int // 0-based
	Batches   int
	BatchSize int // configured size
	Segments  int // segments in this batch
}

// BatchResult summarises one settled batch.
type BatchResult struct {
	Batch     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Options configures Run. Callbacks run on the caller's goroutine, never concurrently.
type Options struct {
	BatchSize  int
	OnProgress func(Progress)
	// OnOutcome sees every outcome after its batch settles, in index order.
	OnOutcome func(segment.Outcome)
	// OnBatch fires after each batch settles.
	OnBatch func(BatchResult)
}

// Partition splits ds into consecutive batches of at most size elements.
func Partition(ds []segment.Descriptor, size int) [][]segment.Descriptor {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]segment.Descriptor
	for i := 0; i < len(ds); i += size {
		end := i + size
		if end > len(ds) {
			end = len(ds)
		}
		out = append(out, ds[i:end])
	}
	return out
}

// Run fetches every segment and returns the successes.
// The only error it returns is ctx's, when cancellation is observed at a batch
// boundary; an empty or short set is for the caller to judge.
func Run(ctx context.Context, ds []segment.Descriptor, fetch FetchFunc, opts Options) (*segment.SuccessSet, error) {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := Partition(ds, size)
	set := &segment.SuccessSet{}
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return set, err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(Progress{Batch: i, Batches: len(batches), BatchSize: size, Segments: len(batch)})
		}
		start := time.Now()
		slots := runBatch(ctx, batch, fetch)
		res := BatchResult{Batch: i, Elapsed: time.Since(start)}
		for _, o := range slots {
			if set.Add(o) {
				res.Succeeded++
			} else {
				res.Failed++
			}
			if opts.OnOutcome != nil {
				opts.OnOutcome(o)
			}
		}
		if opts.OnBatch != nil {
			opts.OnBatch(res)
		}
	}
	return set, nil
}

// runBatch fetches batch concurrently; each goroutine writes only its own slot.
func runBatch(ctx context.Context, batch []segment.Descriptor, fetch FetchFunc) []segment.Outcome {
	slots := make([]segment.Outcome, len(batch))
	var wg sync.WaitGroup
	for i, d := range batch {
		wg.Add(1)
		go func(i int, d segment.Descriptor) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slots[i] = segment.Outcome{Index: d.Index, Err: fmt.Errorf("fetch segment %d: panic: %v", d.Index, r)}
				}
			}()
			data, err := fetch(ctx, d)
			slots[i] = segment.Outcome{Index: d.Index, Bytes: data, Err: err}
			if err != nil {
				slots[i].Bytes = nil
			}
		}(i, d)
	}
	wg.Wait()
	return slots
}
