// Package metrics exposes download pipeline counters in Prometheus format.
//
// All Recorder methods are nil-receiver safe so callers can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hls_stitch"

// Recorder owns a private registry with the pipeline's collectors.
type Recorder struct {
	reg *prometheus.Registry

	segments      *prometheus.CounterVec
	segmentBytes  prometheus.Counter
	batchDuration prometheus.Histogram
	jobs          *prometheus.CounterVec
	jobsActive    prometheus.Gauge
	outputBytes   prometheus.Histogram
}

// New registers the pipeline collectors plus Go/process collectors.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		segments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Segment fetch attempts by result (ok|failed).",
		}, []string{"result"}),
		segmentBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segment_bytes_total",
			Help:      "Bytes of successfully fetched segments.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time for one batch of segment fetches to settle.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Jobs by terminal phase (finished|errored).",
		}, []string{"phase"}),
		jobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Jobs started and not yet terminal.",
		}),
		outputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "output_bytes",
			Help:      "Size of produced artifacts.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 4, 10),
		}),
	}
	r.reg.MustRegister(
		r.segments, r.segmentBytes, r.batchDuration, r.jobs, r.jobsActive, r.outputBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.segments.WithLabelValues("ok")
	r.segments.WithLabelValues("failed")
	return r
}

func (r *Recorder) SegmentFetched(bytes int) {
	if r == nil {
		return
	}
	r.segments.WithLabelValues("ok").Inc()
	r.segmentBytes.Add(float64(bytes))
}

func (r *Recorder) SegmentFailed() {
	if r == nil {
		return
	}
	r.segments.WithLabelValues("failed").Inc()
}

func (r *Recorder) BatchDone(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.batchDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) JobStarted() {
	if r == nil {
		return
	}
	r.jobsActive.Inc()
}

// JobEnded records a terminal phase and, for finished jobs, the output size.
func (r *Recorder) JobEnded(phase string, outputBytes int) {
	if r == nil {
		return
	}
	r.jobsActive.Dec()
	r.jobs.WithLabelValues(phase).Inc()
	if outputBytes > 0 {
		r.outputBytes.Observe(float64(outputBytes))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
