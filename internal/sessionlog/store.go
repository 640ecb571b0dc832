package sessionlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iksnae/deep-research/internal"
)

// maxLineSize bounds a single record. Tool turns carrying a full digest and
// evidence list stay far below it.
const maxLineSize = 16 * 1024 * 1024

// Store is the append-only session log under one data directory
type Store struct {
	dataDir string
	now     func() time.Time
	mu      sync.Mutex
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithClock overrides the clock used to stamp records
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store rooted at dataDir
func NewStore(dataDir string, opts ...StoreOption) *Store {
	s := &Store{dataDir: dataDir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataDir returns the root directory of all session logs
func (s *Store) DataDir() string {
	return s.dataDir
}

// Path returns the log file for key
func (s *Store) Path(key internal.SessionKey) string {
	return key.Path(s.dataDir)
}

// Exists reports whether a log file for key is present
func (s *Store) Exists(key internal.SessionKey) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Append writes rec as one line at the end of the session's log and syncs
// the file before returning. A zero timestamp is stamped with the store clock.
func (s *Store) Append(key internal.SessionKey, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}
	line, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Kind, err)
	}

	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &internal.StorageError{Path: filepath.Dir(path), Op: "mkdir", Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return &internal.StorageError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	torn, err := endsMidLine(f)
	if err != nil {
		return &internal.StorageError{Path: path, Op: "read", Err: err}
	}
	buf := make([]byte, 0, len(line)+2)
	if torn {
		// A crash mid-write left a partial line; terminate it so it is
		// skipped as malformed instead of swallowing this record.
		internal.LogWarn("Session log %s ends with a partial line; terminating it", path)
		buf = append(buf, '\n')
	}
	buf = append(buf, line...)
	buf = append(buf, '\n')

	if _, err := f.Write(buf); err != nil {
		return &internal.StorageError{Path: path, Op: "append", Err: err}
	}
	if err := f.Sync(); err != nil {
		return &internal.StorageError{Path: path, Op: "sync", Err: err}
	}
	if err := f.Close(); err != nil {
		return &internal.StorageError{Path: path, Op: "close", Err: err}
	}
	internal.LogDebug("Appended %s record to %s", rec.Kind, path)
	return nil
}

func endsMidLine(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Replay is the in-memory state reconstructed from a session log
type Replay struct {
	Query     *QueryInfo
	Messages  []internal.Turn
	Final     *FinalInfo
	Records   int
	Malformed int
	Started   time.Time
	Updated   time.Time
}

// Complete reports whether the log holds a terminal record
func (r *Replay) Complete() bool {
	return r.Final != nil
}

// Replay reads key's log from the start
func (s *Store) Replay(key internal.SessionKey) (*Replay, error) {
	return ReplayFile(s.Path(key))
}

// ReplayFile reads a session log. A missing file is an empty replay.
// Malformed lines are logged and skipped. Reading stops at the first final
// record.
func ReplayFile(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Replay{}, nil
		}
		return nil, &internal.StorageError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()
	return replay(f, path)
}

func replay(r io.Reader, source string) (*Replay, error) {
	out := &Replay{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var rec Record
		if err := rec.UnmarshalJSON(line); err != nil {
			out.Malformed++
			internal.LogWarn("Skipping malformed record: %v", &internal.ParseError{Source: source, Line: lineNo, Err: err})
			continue
		}

		first := out.Records == 0
		switch rec.Kind {
		case KindQuery:
			if !first {
				internal.LogWarn("Ignoring query record at %s:%d; only the first record names the query", source, lineNo)
				continue
			}
			out.Query = rec.Query
		case KindMessage:
			turn, err := internal.DecodeTurn(*rec.Message)
			if err != nil {
				out.Malformed++
				internal.LogWarn("Skipping malformed message: %v", &internal.ParseError{Source: source, Line: lineNo, Err: err})
				continue
			}
			out.Messages = append(out.Messages, turn)
		case KindFinal:
			out.Final = rec.Final
		}

		out.Records++
		if first {
			out.Started = rec.Timestamp
		}
		out.Updated = rec.Timestamp
		if out.Final != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &internal.StorageError{Path: source, Op: "read", Err: err}
	}
	return out, nil
}

// ReadFirstRecord decodes the first non-blank line of a log
func ReadFirstRecord(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, &internal.StorageError{Path: path, Op: "open", Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec Record
		if err := rec.UnmarshalJSON(line); err != nil {
			return Record{}, &internal.ParseError{Source: path, Line: lineNo, Err: err}
		}
		return rec, nil
	}
	if err := scanner.Err(); err != nil {
		return Record{}, &internal.StorageError{Path: path, Op: "read", Err: err}
	}
	return Record{}, &internal.ParseError{Source: path, Line: lineNo, Err: errors.New("empty log")}
}
