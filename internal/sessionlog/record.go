package sessionlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iksnae/deep-research/internal"
)

// Kind tags a persisted record
type Kind string

const (
	KindQuery   Kind = "query"
	KindMessage Kind = "message"
	KindFinal   Kind = "final"
)

// QueryInfo is the payload of the first record of every session log
type QueryInfo struct {
	Query string `json:"query" yaml:"query"`
	MD5   string `json:"md5" yaml:"md5"`
	Date  string `json:"date" yaml:"date"`
}

// Key returns the session key the query record belongs to
func (q QueryInfo) Key() internal.SessionKey {
	return internal.SessionKey{Date: q.Date, MD5: q.MD5}
}

// FinalInfo is the payload of the terminal record
type FinalInfo struct {
	Content   string `json:"content" yaml:"content"`
	Iteration int    `json:"iteration" yaml:"iteration"`
}

// Record is one line of a session log. Exactly one of Query, Message and
// Final is set, matching Kind.
type Record struct {
	Kind      Kind
	Timestamp time.Time
	Query     *QueryInfo
	Message   *internal.Message
	Final     *FinalInfo
}

// NewQueryRecord builds the opening record for a session
func NewQueryRecord(query string, key internal.SessionKey) Record {
	return Record{Kind: KindQuery, Query: &QueryInfo{Query: query, MD5: key.MD5, Date: key.Date}}
}

// NewMessageRecord wraps one transcript turn. A turn that cannot be encoded
// leaves the payload empty, which Append rejects.
func NewMessageRecord(turn internal.Turn) Record {
	msg, err := internal.EncodeTurn(turn)
	if err != nil {
		return Record{Kind: KindMessage}
	}
	return Record{Kind: KindMessage, Message: &msg}
}

// NewFinalRecord builds the terminal record
func NewFinalRecord(content string, iteration int) Record {
	return Record{Kind: KindFinal, Final: &FinalInfo{Content: content, Iteration: iteration}}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// MarshalJSON writes the flat line shape: the type tag and timestamp sit
// beside the payload fields.
func (r Record) MarshalJSON() ([]byte, error) {
	ts := formatTimestamp(r.Timestamp)
	switch r.Kind {
	case KindQuery:
		if r.Query == nil {
			return nil, errors.New("query record without payload")
		}
		return encode(struct {
			Type      Kind   `json:"type"`
			Timestamp string `json:"timestamp"`
			QueryInfo
		}{r.Kind, ts, *r.Query})
	case KindMessage:
		if r.Message == nil {
			return nil, errors.New("message record without payload")
		}
		return encode(struct {
			Type      Kind              `json:"type"`
			Timestamp string            `json:"timestamp"`
			Message   *internal.Message `json:"message"`
		}{r.Kind, ts, r.Message})
	case KindFinal:
		if r.Final == nil {
			return nil, errors.New("final record without payload")
		}
		return encode(struct {
			Type      Kind   `json:"type"`
			Timestamp string `json:"timestamp"`
			FinalInfo
		}{r.Kind, ts, *r.Final})
	default:
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}
}

// UnmarshalJSON parses one log line
func (r *Record) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Type      Kind             `json:"type"`
		Timestamp string           `json:"timestamp"`
		Message   *json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	out := Record{Kind: envelope.Type, Timestamp: parseTimestamp(envelope.Timestamp)}
	switch envelope.Type {
	case KindQuery:
		var q QueryInfo
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		out.Query = &q
	case KindMessage:
		if envelope.Message == nil {
			return errors.New("message record without message field")
		}
		var msg internal.Message
		if err := json.Unmarshal(*envelope.Message, &msg); err != nil {
			return fmt.Errorf("message payload: %w", err)
		}
		out.Message = &msg
	case KindFinal:
		var f FinalInfo
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		out.Final = &f
	default:
		return fmt.Errorf("unknown record kind %q", envelope.Type)
	}
	*r = out
	return nil
}

// encode marshals without HTML escaping so snippets stay readable in the log.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
