package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_counts(t *testing.T) {
	r := New()
	r.SegmentFetched(100)
	r.SegmentFetched(50)
	r.SegmentFailed()
	r.BatchDone(120 * time.Millisecond)
	r.JobStarted()
	r.JobEnded("finished", 150)

	if got := testutil.ToFloat64(r.segments.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok = %v", got)
	}
	if got := testutil.ToFloat64(r.segments.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v", got)
	}
	if got := testutil.ToFloat64(r.segmentBytes); got != 150 {
		t.Errorf("bytes = %v", got)
	}
	if got := testutil.ToFloat64(r.jobs.WithLabelValues("finished")); got != 1 {
		t.Errorf("jobs finished = %v", got)
	}
	if got := testutil.ToFloat64(r.jobsActive); got != 0 {
		t.Errorf("active = %v", got)
	}
}

func TestRecorder_nilSafe(t *testing.T) {
	var r *Recorder
	r.SegmentFetched(1)
	r.SegmentFailed()
	r.BatchDone(time.Second)
	r.JobStarted()
	r.JobEnded("errored", 0)
}

func TestHandler(t *testing.T) {
	r := New()
	r.SegmentFailed()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `hls_stitch_segments_total{result="failed"} 1`) {
		t.Errorf("exposition missing segment counter:\n%s", body)
	}
}
