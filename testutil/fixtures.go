package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/sessionlog"
)

// FixtureDay is the date session fixtures are written under by default
var FixtureDay = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

// SessionFixture describes a session log to write
type SessionFixture struct {
	Query string
	Day   time.Time       // zero means FixtureDay
	Turns []internal.Turn // nil means internal.NewTestTranscript()
	// Final appends a final record for the last assistant turn
	Final bool
}

// WriteSessionLog writes a session log under dataDir through the real store
// and returns its key.
func WriteSessionLog(t *testing.T, dataDir string, f SessionFixture) internal.SessionKey {
	t.Helper()
	day := f.Day
	if day.IsZero() {
		day = FixtureDay
	}
	turns := f.Turns
	if turns == nil {
		turns = internal.NewTestTranscript()
	}

	store := sessionlog.NewStore(dataDir, sessionlog.WithClock(func() time.Time { return day }))
	key := internal.NewSessionKey(f.Query, day)
	if err := store.Append(key, sessionlog.NewQueryRecord(f.Query, key)); err != nil {
		t.Fatalf("Failed to write query record: %v", err)
	}
	for _, turn := range turns {
		if err := store.Append(key, sessionlog.NewMessageRecord(turn)); err != nil {
			t.Fatalf("Failed to write message record: %v", err)
		}
	}
	if f.Final {
		last, ok := internal.LastAssistant(turns)
		if !ok {
			t.Fatalf("Final fixture needs an assistant turn")
		}
		rounds := 0
		for _, turn := range turns {
			if a, ok := turn.(internal.AssistantTurn); ok && a.HasToolCalls() {
				rounds++
			}
		}
		if err := store.Append(key, sessionlog.NewFinalRecord(last.Content, rounds+1)); err != nil {
			t.Fatalf("Failed to write final record: %v", err)
		}
	}
	return key
}

// WriteRawLog writes lines verbatim to rel under dataDir, for logs the store
// would never produce
func WriteRawLog(t *testing.T, dataDir, rel string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dataDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", rel, err)
	}
	return path
}
