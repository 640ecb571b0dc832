// Package viewer is the read side of the session logs: it lists sessions,
// loads one into a display-ready view and serves both over HTTP.
package viewer

import (
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/sessionlog"
)

// SessionInfo is one entry of the session listing
type SessionInfo struct {
	Query    string `json:"query" yaml:"query"`
	MD5      string `json:"md5" yaml:"md5"`
	Date     string `json:"date" yaml:"date"`
	FilePath string `json:"file_path" yaml:"file_path"`
	FileName string `json:"file_name" yaml:"file_name"`
}

// SessionView is a fully loaded session log
type SessionView struct {
	FilePath    string                        `json:"file_path" yaml:"file_path"`
	Query       *sessionlog.QueryInfo         `json:"query_info" yaml:"query_info"`
	Messages    []internal.Message            `json:"messages" yaml:"messages"`
	FinalResult *string                       `json:"final_result" yaml:"final_result"`
	Iterations  int                           `json:"iterations" yaml:"iterations"`
	Evidence    map[int]internal.EvidenceItem `json:"search_results" yaml:"search_results"`

	Turns     []internal.Turn `json:"-" yaml:"-"`
	Started   time.Time       `json:"-" yaml:"-"`
	Updated   time.Time       `json:"-" yaml:"-"`
	Malformed int             `json:"-" yaml:"-"`
}

// ListSessions scans dataDir for session logs. Dates are listed newest first
// and files within a date by name. Files whose first record is not a query
// record are left out.
func ListSessions(dataDir string) ([]SessionInfo, error) {
	dates, err := internal.DateDirs(dataDir)
	if err != nil {
		return nil, err
	}

	sessions := []SessionInfo{}
	for _, date := range dates {
		files, err := internal.SessionFiles(dataDir, date)
		if err != nil {
			internal.LogWarn("Skipping %s: %v", date, err)
			continue
		}
		for _, name := range files {
			rel := path.Join(date, name)
			rec, err := sessionlog.ReadFirstRecord(filepath.Join(dataDir, date, name))
			if err != nil {
				internal.LogWarn("Skipping %s: %v", rel, err)
				continue
			}
			if rec.Kind != sessionlog.KindQuery || rec.Query == nil {
				internal.LogDebug("Skipping %s: first record is %q", rel, rec.Kind)
				continue
			}
			info := SessionInfo{
				Query:    rec.Query.Query,
				MD5:      rec.Query.MD5,
				Date:     rec.Query.Date,
				FilePath: rel,
				FileName: name,
			}
			if info.Date == "" {
				info.Date = date
			}
			sessions = append(sessions, info)
		}
	}
	return sessions, nil
}

// LoadSession reads the log at rel (relative to dataDir) into a view.
// Paths that escape dataDir or do not exist give ErrSessionNotFound.
func LoadSession(dataDir, rel string) (*SessionView, error) {
	rel = strings.TrimPrefix(rel, "/")
	full, err := internal.ResolveWithin(dataDir, rel)
	if err != nil {
		internal.LogDebug("Rejected session path: %v", err)
		return nil, internal.ErrSessionNotFound
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return nil, internal.ErrSessionNotFound
	}

	rep, err := sessionlog.ReplayFile(full)
	if err != nil {
		return nil, err
	}
	return FromReplay(filepath.ToSlash(rel), rep), nil
}

// FromReplay builds the view of a replayed log stored at rel
func FromReplay(rel string, rep *sessionlog.Replay) *SessionView {
	view := &SessionView{
		FilePath:  rel,
		Query:     rep.Query,
		Messages:  make([]internal.Message, 0, len(rep.Messages)),
		Evidence:  make(map[int]internal.EvidenceItem),
		Turns:     rep.Messages,
		Started:   rep.Started,
		Updated:   rep.Updated,
		Malformed: rep.Malformed,
	}
	for _, turn := range rep.Messages {
		msg, err := internal.EncodeTurn(turn)
		if err != nil {
			continue
		}
		view.Messages = append(view.Messages, msg)
		if tt, ok := turn.(internal.ToolTurn); ok {
			for _, item := range tt.Evidence {
				view.Evidence[item.Index] = item
			}
		}
	}
	if rep.Final != nil {
		content := rep.Final.Content
		view.FinalResult = &content
		view.Iterations = rep.Final.Iteration
	} else {
		view.Iterations = countModelCalls(rep.Messages)
	}
	return view
}

func countModelCalls(turns []internal.Turn) int {
	n := 0
	for _, turn := range turns {
		if _, ok := turn.(internal.AssistantTurn); ok {
			n++
		}
	}
	return n
}

// ResolveSession maps a user reference to a log path relative to dataDir.
// ref may be a relative path, a query md5 or the query text itself; for the
// last two the newest date holding that hash wins.
func ResolveSession(dataDir, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty session reference")
	}

	if strings.HasSuffix(ref, ".jsonl") || strings.Contains(ref, "/") {
		if _, err := internal.ParseSessionPath(ref); err == nil {
			full, err := internal.ResolveWithin(dataDir, ref)
			if err == nil {
				if _, err := os.Stat(full); err == nil {
					return path.Clean(filepath.ToSlash(ref)), nil
				}
			}
		}
		if strings.HasSuffix(ref, ".jsonl") {
			return "", internal.ErrSessionNotFound
		}
	}

	hash := strings.ToLower(ref)
	if !internal.IsQueryHash(hash) {
		hash = internal.QueryHash(ref)
	}

	dates, err := internal.DateDirs(dataDir)
	if err != nil {
		return "", err
	}
	for _, date := range dates {
		key := internal.SessionKey{Date: date, MD5: hash}
		if _, err := os.Stat(key.Path(dataDir)); err == nil {
			return key.RelPath(), nil
		}
	}
	return "", internal.ErrSessionNotFound
}

// Status describes how far a session got
type Status string

const (
	StatusComplete   Status = "complete"
	StatusInProgress Status = "in-progress"
	StatusEmpty      Status = "empty"
)

// Summary condenses a view into listing statistics
type Summary struct {
	FilePath   string    `json:"file_path"`
	Query      string    `json:"query"`
	MD5        string    `json:"md5"`
	Date       string    `json:"date"`
	Status     Status    `json:"status"`
	Turns      int       `json:"turns"`
	ToolTurns  int       `json:"tool_turns"`
	Evidence   int       `json:"evidence"`
	Iterations int       `json:"iterations"`
	Updated    time.Time `json:"updated"`
}

// Summarize computes the listing statistics of a view
func Summarize(view *SessionView) Summary {
	s := Summary{
		FilePath:   view.FilePath,
		Turns:      len(view.Turns),
		Evidence:   len(view.Evidence),
		Iterations: view.Iterations,
		Updated:    view.Updated,
	}
	if view.Query != nil {
		s.Query, s.MD5, s.Date = view.Query.Query, view.Query.MD5, view.Query.Date
	}
	for _, turn := range view.Turns {
		if _, ok := turn.(internal.ToolTurn); ok {
			s.ToolTurns++
		}
	}
	switch {
	case view.FinalResult != nil:
		s.Status = StatusComplete
	case len(view.Turns) == 0:
		s.Status = StatusEmpty
	default:
		s.Status = StatusInProgress
	}
	return s
}
