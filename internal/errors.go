package internal

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session reference matches no log file.
var ErrSessionNotFound = errors.New("session not found")

// fatalError is implemented by every error kind in this package. Fatal
// errors abort a research run; the rest are logged and the run continues.
type fatalError interface {
	Fatal() bool
}

// IsFatal reports whether err, or any error it wraps, is a fatal kind.
// Errors that carry no kind are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe fatalError
	if errors.As(err, &fe) {
		return fe.Fatal()
	}
	return true
}

// ConfigError represents a missing or invalid configuration value
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) Fatal() bool   { return true }

// AuthError is returned when the completion service rejects the credential
type AuthError struct {
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %v", e.StatusCode, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
func (e *AuthError) Fatal() bool   { return true }

// ModelError represents any non-auth failure of a completion call
type ModelError struct {
	Model     string
	Iteration int
	Err       error
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model error [%s] iteration %d: %v", e.Model, e.Iteration, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }
func (e *ModelError) Fatal() bool   { return true }

// StorageError represents errors accessing session log files
type StorageError struct {
	Path string
	Op   string // "open", "append", "sync", "read"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
func (e *StorageError) Fatal() bool   { return true }

// ParseError represents a record or message that could not be decoded
type ParseError struct {
	Source string // file path
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s:%d]: %v", e.Source, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Fatal() bool   { return false }

// CorruptLogError is returned when a log holds messages but no query record,
// so the session cannot be attributed to any query.
type CorruptLogError struct {
	Path   string
	Reason string
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt session log %s: %s", e.Path, e.Reason)
}

func (e *CorruptLogError) Fatal() bool { return true }

// SearchError represents the failure of a single search query
type SearchError struct {
	Query      string
	StatusCode int
	Err        error
}

func (e *SearchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search error [%q] status %d: %v", e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("search error [%q]: %v", e.Query, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }
func (e *SearchError) Fatal() bool   { return false }

// ToolError represents a tool invocation that could not be dispatched
type ToolError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error [%s %s]: %v", e.Tool, e.CallID, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }
func (e *ToolError) Fatal() bool   { return false }

// ExportError represents errors during export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
func (e *ExportError) Fatal() bool   { return true }
