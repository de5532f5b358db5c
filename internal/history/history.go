// Package history keeps a sqlite log of finished jobs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/snapetech/hlsstitch/internal/job"
	"github.com/snapetech/hlsstitch/internal/safeurl"
)

// ErrNotFound is returned by Get for an unknown job.
var ErrNotFound = errors.New("history: job not found")

// Entry is one recorded job.
type Entry struct {
	ID                string    `json:"id"`
	ManifestURL       string    `json:"manifest_url"` // query redacted
	Phase             job.Phase `json:"phase"`
	Error             string    `json:"error,omitempty"`
	SegmentsTotal     int       `json:"segments_total"`
	SegmentsRetrieved int       `json:"segments_retrieved"`
	SegmentsFailed    int       `json:"segments_failed"`
	Bytes             int       `json:"bytes"`
	Location          string    `json:"location,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	EndedAt           time.Time `json:"ended_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                 TEXT PRIMARY KEY,
	manifest_url       TEXT NOT NULL,
	phase              TEXT NOT NULL,
	error              TEXT NOT NULL DEFAULT '',
	segments_total     INTEGER NOT NULL DEFAULT 0,
	segments_retrieved INTEGER NOT NULL DEFAULT 0,
	segments_failed    INTEGER NOT NULL DEFAULT 0,
	bytes              INTEGER NOT NULL DEFAULT 0,
	location           TEXT NOT NULL DEFAULT '',
	started_at         INTEGER NOT NULL,
	ended_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_ended_at ON jobs (ended_at);
`

// Store is a job history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// One writer; sqlite serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record upserts the terminal snapshot of a job with the artifact location ("" if none).
func (s *Store) Record(ctx context.Context, snap job.Snapshot, location string) error {
	size := 0
	if snap.Artifact != nil {
		size = snap.Artifact.Size
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO jobs (id, manifest_url, phase, error, segments_total, segments_retrieved, segments_failed, bytes, location, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	phase = excluded.phase,
	error = excluded.error,
	segments_total = excluded.segments_total,
	segments_retrieved = excluded.segments_retrieved,
	segments_failed = excluded.segments_failed,
	bytes = excluded.bytes,
	location = excluded.location,
	ended_at = excluded.ended_at`,
		snap.ID, safeurl.Redact(snap.ManifestURL), string(snap.Phase), snap.Error,
		snap.SegmentsTotal, snap.SegmentsRetrieved, snap.SegmentsFailed, size, location,
		unixNano(snap.StartedAt), unixNano(snap.EndedAt))
	if err != nil {
		return fmt.Errorf("history: record %s: %w", snap.ID, err)
	}
	return nil
}

const selectCols = `SELECT id, manifest_url, phase, error, segments_total, segments_retrieved, segments_failed, bytes, location, started_at, ended_at FROM jobs`

// List returns up to limit entries, most recently ended first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectCols+` ORDER BY ended_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the entry for id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	e, err := scan(s.db.QueryRowContext(ctx, selectCols+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Entry, error) {
	var e Entry
	var phase string
	var started, ended int64
	err := r.Scan(&e.ID, &e.ManifestURL, &phase, &e.Error, &e.SegmentsTotal, &e.SegmentsRetrieved,
		&e.SegmentsFailed, &e.Bytes, &e.Location, &started, &ended)
	if err != nil {
		return Entry{}, err
	}
	e.Phase = job.Phase(phase)
	e.StartedAt = fromUnixNano(started)
	e.EndedAt = fromUnixNano(ended)
	return e, nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
