package sessionlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMarshal_LineShapes(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	key := internal.NewSessionKey("weather today", ts)

	q := NewQueryRecord("weather today", key)
	q.Timestamp = ts
	line, err := q.MarshalJSON()
	require.NoError(t, err)

	var flat map[string]interface{}
	require.NoError(t, json.Unmarshal(line, &flat))
	assert.Equal(t, "query", flat["type"])
	assert.Equal(t, "weather today", flat["query"])
	assert.Equal(t, key.MD5, flat["md5"])
	assert.Equal(t, "2025-01-02", flat["date"])
	assert.Equal(t, "2025-01-02T03:04:05Z", flat["timestamp"])

	f := NewFinalRecord("done", 2)
	f.Timestamp = ts
	line, err = f.MarshalJSON()
	require.NoError(t, err)
	flat = nil
	require.NoError(t, json.Unmarshal(line, &flat))
	assert.Equal(t, "final", flat["type"])
	assert.Equal(t, "done", flat["content"])
	assert.EqualValues(t, 2, flat["iteration"])
}

func TestRecordMarshal_MessageOmitsEmptyFields(t *testing.T) {
	rec := NewMessageRecord(internal.AssistantTurn{Content: "answer <b>"})
	line, err := rec.MarshalJSON()
	require.NoError(t, err)

	assert.Contains(t, string(line), `"message":{"role":"assistant","content":"answer <b>"}`)
	assert.NotContains(t, string(line), "tool_calls")
}

func TestRecordMarshal_MissingPayload(t *testing.T) {
	for _, kind := range []Kind{KindQuery, KindMessage, KindFinal, "bogus"} {
		_, err := Record{Kind: kind}.MarshalJSON()
		assert.Error(t, err, kind)
	}
}

func TestRecordUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		kind    Kind
		wantErr bool
	}{
		{"python timestamp", `{"type":"query","timestamp":"2025-01-02T10:11:12.123456","query":"q","md5":"m","date":"2025-01-02"}`, KindQuery, false},
		{"message", `{"type":"message","timestamp":"2025-01-02T10:11:12Z","message":{"role":"tool","tool_call_id":"c1","content":"x","compact":true}}`, KindMessage, false},
		{"final", `{"type":"final","timestamp":"","content":"","iteration":1}`, KindFinal, false},
		{"unknown kind", `{"type":"note"}`, "", true},
		{"message without payload", `{"type":"message"}`, "", true},
		{"not json", `{"type":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec Record
			err := rec.UnmarshalJSON([]byte(tt.line))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, rec.Kind)
		})
	}
}

func TestRecordUnmarshal_ParsesTimestamp(t *testing.T) {
	var rec Record
	require.NoError(t, rec.UnmarshalJSON([]byte(`{"type":"final","timestamp":"2025-01-02T10:11:12.5","content":"a","iteration":3}`)))
	assert.Equal(t, 2025, rec.Timestamp.Year())
	assert.Equal(t, 500*time.Millisecond, time.Duration(rec.Timestamp.Nanosecond()))
	assert.Equal(t, 3, rec.Final.Iteration)
}
