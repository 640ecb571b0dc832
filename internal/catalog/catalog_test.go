package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/iksnae/deep-research/internal/viewer"
	"github.com/iksnae/deep-research/testutil"
)

func openMemory(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestLookupRespectsModTime(t *testing.T) {
	c := openMemory(t)
	mod := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := viewer.Summary{
		FilePath:   "2025-06-01/abc.jsonl",
		Query:      "tides",
		MD5:        "abc",
		Date:       "2025-06-01",
		Status:     viewer.StatusInProgress,
		Turns:      4,
		ToolTurns:  1,
		Evidence:   2,
		Iterations: 1,
		Updated:    mod,
	}
	if err := c.Upsert(s, mod); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, ok, err := c.Lookup(s.FilePath, mod)
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v; want hit", ok, err)
	}
	if got.Query != "tides" || got.Status != viewer.StatusInProgress || got.Evidence != 2 {
		t.Errorf("Lookup() = %+v", got)
	}
	if !got.Updated.Equal(mod) {
		t.Errorf("Updated = %v, want %v", got.Updated, mod)
	}

	if _, ok, _ := c.Lookup(s.FilePath, mod.Add(time.Second)); ok {
		t.Error("Lookup() hit for a newer modification time")
	}
	if _, ok, _ := c.Lookup("2025-06-01/other.jsonl", mod); ok {
		t.Error("Lookup() hit for an unknown path")
	}
}

func TestUpsertReplaces(t *testing.T) {
	c := openMemory(t)
	mod := time.Unix(1700000000, 0)
	s := viewer.Summary{FilePath: "2025-06-01/abc.jsonl", Status: viewer.StatusInProgress}
	if err := c.Upsert(s, mod); err != nil {
		t.Fatal(err)
	}
	s.Status = viewer.StatusComplete
	if err := c.Upsert(s, mod); err != nil {
		t.Fatal(err)
	}

	n, err := c.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
	got, _, _ := c.Lookup(s.FilePath, mod)
	if got.Status != viewer.StatusComplete {
		t.Errorf("Status = %q, want complete", got.Status)
	}
}

func TestClear(t *testing.T) {
	c := openMemory(t)
	if err := c.Upsert(viewer.Summary{FilePath: "a"}, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if n, _ := c.Count(); n != 0 {
		t.Errorf("Count() after Clear = %d", n)
	}
}

func TestSummariesCachesUnchangedLogs(t *testing.T) {
	dataDir := t.TempDir()
	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store := sessionlog.NewStore(dataDir, sessionlog.WithClock(func() time.Time { return day }))
	key := internal.NewSessionKey("weather today", day)
	if err := store.Append(key, sessionlog.NewQueryRecord("weather today", key)); err != nil {
		t.Fatal(err)
	}
	for _, turn := range internal.NewTestTranscript()[:4] {
		if err := store.Append(key, sessionlog.NewMessageRecord(turn)); err != nil {
			t.Fatal(err)
		}
	}

	c, err := Open(DefaultPath(dataDir))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	sessions, err := viewer.ListSessions(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	first := c.Summaries(dataDir, sessions)
	if len(first) != 1 || first[0].Status != viewer.StatusInProgress {
		t.Fatalf("Summaries() = %+v", first)
	}
	if n, _ := c.Count(); n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	// Finishing the session changes the file, so the entry is refreshed.
	if err := store.Append(key, sessionlog.NewFinalRecord("done", 2)); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(filepath.Join(dataDir, filepath.FromSlash(key.RelPath())), later, later); err != nil {
		t.Fatal(err)
	}
	second := c.Summaries(dataDir, sessions)
	if len(second) != 1 || second[0].Status != viewer.StatusComplete {
		t.Errorf("Summaries() after update = %+v", second)
	}
	if second[0].Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", second[0].Iterations)
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	if _, err := New(db); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Creating it twice is harmless.
	if _, err := New(db); err != nil {
		t.Fatalf("second New() error = %v", err)
	}

	tables := testutil.TableNames(t, db)
	if len(tables) != 1 || tables[0] != "sessions" {
		t.Errorf("tables = %v, want [sessions]", tables)
	}
}
