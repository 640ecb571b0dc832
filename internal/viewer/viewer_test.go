package viewer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/sessionlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	day2 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
)

// writeSession logs the sample transcript for query on the given day,
// optionally ending with a final record.
func writeSession(t *testing.T, dataDir, query string, day time.Time, final bool) internal.SessionKey {
	t.Helper()
	store := sessionlog.NewStore(dataDir, sessionlog.WithClock(func() time.Time { return day }))
	key := internal.NewSessionKey(query, day)
	require.NoError(t, store.Append(key, sessionlog.NewQueryRecord(query, key)))
	turns := internal.NewTestTranscript()
	if !final {
		turns = turns[:4]
	}
	for _, turn := range turns {
		require.NoError(t, store.Append(key, sessionlog.NewMessageRecord(turn)))
	}
	if final {
		last := turns[len(turns)-1].(internal.AssistantTurn)
		require.NoError(t, store.Append(key, sessionlog.NewFinalRecord(last.Content, 2)))
	}
	return key
}

func TestListSessions(t *testing.T) {
	dir := t.TempDir()
	older := writeSession(t, dir, "weather today", day1, true)
	newer := writeSession(t, dir, "tides", day2, false)

	// Noise that must be ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "not-a-date"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, day2.Format(internal.DateLayout), "notes.txt"), []byte("x"), 0o644))
	orphan := internal.NewSessionKey("orphan", day2)
	store := sessionlog.NewStore(dir)
	require.NoError(t, store.Append(orphan, sessionlog.NewMessageRecord(internal.UserTurn{Content: "orphan"})))

	sessions, err := ListSessions(dir)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, SessionInfo{
		Query:    "tides",
		MD5:      newer.MD5,
		Date:     "2025-06-01",
		FilePath: newer.RelPath(),
		FileName: newer.FileName(),
	}, sessions[0])
	assert.Equal(t, "weather today", sessions[1].Query)
	assert.Equal(t, older.RelPath(), sessions[1].FilePath)
}

func TestListSessions_MissingDataDir(t *testing.T) {
	sessions, err := ListSessions(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestLoadSession(t *testing.T) {
	dir := t.TempDir()
	key := writeSession(t, dir, "weather today", day1, true)

	view, err := LoadSession(dir, key.RelPath())
	require.NoError(t, err)

	require.NotNil(t, view.Query)
	assert.Equal(t, "weather today", view.Query.Query)
	assert.Len(t, view.Messages, 5)
	assert.Equal(t, internal.RoleTool, view.Messages[3].Role)
	require.NotNil(t, view.FinalResult)
	assert.Equal(t, "It will be sunny [^0^].", *view.FinalResult)
	assert.Equal(t, 2, view.Iterations)
	assert.Len(t, view.Evidence, 2)
	assert.Equal(t, 1, view.Evidence[1].Index)
}

func TestLoadSession_NotFound(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "weather today", day1, true)

	for _, rel := range []string{"2025-05-30/missing.jsonl", "../etc/passwd", "2025-05-30"} {
		_, err := LoadSession(dir, rel)
		assert.ErrorIs(t, err, internal.ErrSessionNotFound, rel)
	}
}

func TestResolveSession(t *testing.T) {
	dir := t.TempDir()
	old := writeSession(t, dir, "weather today", day1, true)
	recent := writeSession(t, dir, "weather today", day2, false)

	rel, err := ResolveSession(dir, old.RelPath())
	require.NoError(t, err)
	assert.Equal(t, old.RelPath(), rel)

	rel, err = ResolveSession(dir, recent.MD5)
	require.NoError(t, err)
	assert.Equal(t, recent.RelPath(), rel, "newest date wins")

	rel, err = ResolveSession(dir, "weather today")
	require.NoError(t, err)
	assert.Equal(t, recent.RelPath(), rel)

	_, err = ResolveSession(dir, "never asked")
	assert.ErrorIs(t, err, internal.ErrSessionNotFound)

	_, err = ResolveSession(dir, "  ")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	done := writeSession(t, dir, "weather today", day1, true)
	open := writeSession(t, dir, "tides", day1, false)

	view, err := LoadSession(dir, done.RelPath())
	require.NoError(t, err)
	s := Summarize(view)
	assert.Equal(t, StatusComplete, s.Status)
	assert.Equal(t, 5, s.Turns)
	assert.Equal(t, 1, s.ToolTurns)
	assert.Equal(t, 2, s.Evidence)
	assert.Equal(t, "weather today", s.Query)

	view, err = LoadSession(dir, open.RelPath())
	require.NoError(t, err)
	s = Summarize(view)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Equal(t, 1, s.Iterations)

	assert.Equal(t, StatusEmpty, Summarize(&SessionView{}).Status)
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	key := writeSession(t, dir, "weather today", day1, true)
	router := NewRouter(dir)

	t.Run("list", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/queries", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Queries []SessionInfo `json:"queries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Queries, 1)
		assert.Equal(t, key.RelPath(), body.Queries[0].FilePath)
	})

	t.Run("query", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/query/"+key.RelPath(), nil))
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Contains(t, body, "query_info")
		assert.Contains(t, body, "messages")
		assert.JSONEq(t, `"It will be sunny [^0^]."`, string(body["final_result"]))

		var evidence map[string]internal.EvidenceItem
		require.NoError(t, json.Unmarshal(body["search_results"], &evidence))
		assert.Equal(t, 0, evidence["0"].Index)
	})

	t.Run("missing", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/query/2025-01-01/none.jsonl", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"File not found"}`, w.Body.String())
	})

	t.Run("healthz", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
