// Package server exposes the job manager over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/snapetech/hlsstitch/internal/history"
	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/logging"
	"github.com/snapetech/hlsstitch/internal/metrics"
	"github.com/snapetech/hlsstitch/internal/safeurl"
)

// maxRequestBytes bounds POST /jobs bodies.
const maxRequestBytes = 64 << 10

// HistoryLister is the read side of the job history.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// Server serves the job API:
//
//	POST   /jobs              {"url": "...", "headers": {...}} -> 202 {"id": "..."}
//	GET    /jobs              retained job snapshots, newest first
//	GET    /jobs/{id}         one snapshot
//	GET    /jobs/{id}/output  the stitched file of a finished job
//	DELETE /jobs/{id}         cancel at the next batch boundary
//	GET    /history           recorded jobs (when a history store is configured)
//	GET    /healthz, /metrics
type Server struct {
	Addr    string
	Jobs    *job.Manager
	History HistoryLister
	Metrics *metrics.Recorder
	Log     *zap.SugaredLogger

	// jobCtx parents every job started over HTTP; cancelled on shutdown.
	jobCtx context.Context
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /jobs", s.createJob)
	mux.HandleFunc("GET /jobs", s.listJobs)
	mux.HandleFunc("GET /jobs/{id}", s.getJob)
	mux.HandleFunc("GET /jobs/{id}/output", s.getOutput)
	mux.HandleFunc("DELETE /jobs/{id}", s.cancelJob)
	mux.HandleFunc("GET /history", s.listHistory)
	mux.HandleFunc("GET /healthz", s.health)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
	return s.logRequests(mux)
}

// Run serves until ctx is done, then shuts down, cancels running jobs and waits for them.
func (s *Server) Run(ctx context.Context) error {
	log := logging.OrNop(s.Log)
	addr := s.Addr
	if addr == "" {
		addr = ":8080"
	}
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	s.jobCtx = jobCtx
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server: listening", "addr", addr)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Infow("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnw("server: shutdown", "err", err)
		}
		<-serverErr
		cancelJobs()
		s.Jobs.Wait()
		return nil
	}
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if !safeurl.IsHTTPOrHTTPS(req.ManifestURL) {
		writeError(w, http.StatusBadRequest, errors.New("url must be an absolute http(s) URL"))
		return
	}
	ctx := s.jobCtx
	if ctx == nil {
		ctx = context.Background()
	}
	h := s.Jobs.Start(ctx, req)
	w.Header().Set("Location", "/jobs/"+h.ID)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": h.ID})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs.List())
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.Snapshot())
}

func (s *Server) getOutput(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	art, err := h.Artifact()
	if err != nil {
		writeError(w, http.StatusConflict, fmt.Errorf("job %s is %s: %w", h.ID, h.Snapshot().Phase, err))
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	w.Write(art.Data)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	h, ok := s.lookup(w, r)
	if !ok {
		return
	}
	h.Cancel()
	writeJSON(w, http.StatusAccepted, h.Snapshot())
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, errors.New("job history is not enabled"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.History.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	active := 0
	for _, snap := range s.Jobs.List() {
		if !snap.Phase.IsTerminal() {
			active++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "active_jobs": active})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*job.Handle, bool) {
	h, err := s.Jobs.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return h, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingResponseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	log := logging.OrNop(s.Log)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		log.Debugw("http: request",
			"method", r.Method, "path", r.URL.Path, "status", status, "bytes", lw.bytes,
			"dur", time.Since(start).Round(time.Millisecond), "remote", r.RemoteAddr)
	})
}
