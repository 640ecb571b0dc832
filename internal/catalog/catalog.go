// Package catalog caches per-session listing statistics in SQLite so the
// list command does not replay every log on each run. Entries are keyed by
// log path and invalidated by the log's modification time.
package catalog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/viewer"
	_ "modernc.org/sqlite"
)

// FileName is the catalog file created inside the data directory
const FileName = ".catalog.db"

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	file_path  TEXT PRIMARY KEY,
	date       TEXT NOT NULL,
	md5        TEXT NOT NULL,
	query      TEXT NOT NULL,
	mod_time   INTEGER NOT NULL,
	status     TEXT NOT NULL,
	turns      INTEGER NOT NULL,
	tool_turns INTEGER NOT NULL,
	evidence   INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	updated    INTEGER NOT NULL
)`

// Catalog is an open session catalog
type Catalog struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the catalog location for a data directory
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Open opens or creates the catalog at path. ":memory:" gives a private
// in-memory catalog.
func Open(path string) (*Catalog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, &internal.StorageError{Path: path, Op: "mkdir", Err: err}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	c, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.path = path
	return c, nil
}

// New creates the catalog schema in an already open database
func New(db *sql.DB) (*Catalog, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("catalog ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Path returns where the catalog lives
func (c *Catalog) Path() string {
	return c.path
}

// Close closes the underlying database
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Lookup returns the cached summary for filePath if it was recorded for the
// same modification time.
func (c *Catalog) Lookup(filePath string, modTime time.Time) (viewer.Summary, bool, error) {
	row := c.db.QueryRow(`
		SELECT date, md5, query, mod_time, status, turns, tool_turns, evidence, iterations, updated
		FROM sessions WHERE file_path = ?`, filePath)

	var (
		s       viewer.Summary
		status  string
		cached  int64
		updated int64
	)
	err := row.Scan(&s.Date, &s.MD5, &s.Query, &cached, &status, &s.Turns, &s.ToolTurns, &s.Evidence, &s.Iterations, &updated)
	if err == sql.ErrNoRows {
		return viewer.Summary{}, false, nil
	}
	if err != nil {
		return viewer.Summary{}, false, fmt.Errorf("catalog lookup failed: %w", err)
	}
	if cached != modTime.UnixNano() {
		return viewer.Summary{}, false, nil
	}

	s.FilePath = filePath
	s.Status = viewer.Status(status)
	if updated != 0 {
		s.Updated = time.Unix(0, updated)
	}
	return s, true, nil
}

// Upsert records s for the log modification time modTime
func (c *Catalog) Upsert(s viewer.Summary, modTime time.Time) error {
	var updated int64
	if !s.Updated.IsZero() {
		updated = s.Updated.UnixNano()
	}
	_, err := c.db.Exec(`
		INSERT INTO sessions (file_path, date, md5, query, mod_time, status, turns, tool_turns, evidence, iterations, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			date = excluded.date,
			md5 = excluded.md5,
			query = excluded.query,
			mod_time = excluded.mod_time,
			status = excluded.status,
			turns = excluded.turns,
			tool_turns = excluded.tool_turns,
			evidence = excluded.evidence,
			iterations = excluded.iterations,
			updated = excluded.updated`,
		s.FilePath, s.Date, s.MD5, s.Query, modTime.UnixNano(), string(s.Status),
		s.Turns, s.ToolTurns, s.Evidence, s.Iterations, updated)
	if err != nil {
		return fmt.Errorf("catalog upsert failed: %w", err)
	}
	return nil
}

// Count returns the number of cached entries
func (c *Catalog) Count() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("catalog count failed: %w", err)
	}
	return n, nil
}

// Clear drops every cached entry
func (c *Catalog) Clear() error {
	if _, err := c.db.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}
	return nil
}

// Summaries returns a summary per listed session, replaying only the logs
// that changed since they were cataloged. Logs that fail to load are
// skipped with a warning.
func (c *Catalog) Summaries(dataDir string, sessions []viewer.SessionInfo) []viewer.Summary {
	out := make([]viewer.Summary, 0, len(sessions))
	hits := 0
	for _, info := range sessions {
		stat, err := os.Stat(filepath.Join(dataDir, filepath.FromSlash(info.FilePath)))
		if err != nil {
			internal.LogWarn("Skipping %s: %v", info.FilePath, err)
			continue
		}

		if s, ok, err := c.Lookup(info.FilePath, stat.ModTime()); err != nil {
			internal.LogWarn("%v", err)
		} else if ok {
			hits++
			out = append(out, s)
			continue
		}

		view, err := viewer.LoadSession(dataDir, info.FilePath)
		if err != nil {
			internal.LogWarn("Skipping %s: %v", info.FilePath, err)
			continue
		}
		s := viewer.Summarize(view)
		if err := c.Upsert(s, stat.ModTime()); err != nil {
			internal.LogWarn("%v", err)
		}
		out = append(out, s)
	}
	internal.LogDebug("Catalog: %d of %d session(s) served from cache", hits, len(sessions))
	return out
}
