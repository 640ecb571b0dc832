package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// DateLayout is the layout of a session's creation date and date directory
const DateLayout = "2006-01-02"

const logExtension = ".jsonl"

var md5Pattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// SessionKey identifies one session log: the creation date plus the md5 of
// the query text. Re-running the same query on the same day yields the same key.
type SessionKey struct {
	Date string
	MD5  string
}

// QueryHash returns the lowercase hex md5 of the UTF-8 query text
func QueryHash(query string) string {
	sum := md5.Sum([]byte(query))
	return hex.EncodeToString(sum[:])
}

// NewSessionKey derives the key for query at the given wall-clock time
func NewSessionKey(query string, now time.Time) SessionKey {
	return SessionKey{
		Date: now.Format(DateLayout),
		MD5:  QueryHash(query),
	}
}

// FileName returns "<md5>.jsonl"
func (k SessionKey) FileName() string {
	return k.MD5 + logExtension
}

// RelPath returns the slash-separated path of the log relative to the data dir
func (k SessionKey) RelPath() string {
	return k.Date + "/" + k.FileName()
}

// Path returns the log's location under dataDir
func (k SessionKey) Path(dataDir string) string {
	return filepath.Join(dataDir, k.Date, k.FileName())
}

func (k SessionKey) String() string {
	return k.RelPath()
}

// ParseSessionPath parses "<date>/<md5>.jsonl" back into a key
func ParseSessionPath(rel string) (SessionKey, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	parts := strings.Split(rel, "/")
	if len(parts) != 2 {
		return SessionKey{}, fmt.Errorf("session path %q: want <date>/<md5>%s", rel, logExtension)
	}
	date, file := parts[0], parts[1]
	if _, err := time.Parse(DateLayout, date); err != nil {
		return SessionKey{}, fmt.Errorf("session path %q: bad date: %w", rel, err)
	}
	if !strings.HasSuffix(file, logExtension) {
		return SessionKey{}, fmt.Errorf("session path %q: not a %s file", rel, logExtension)
	}
	sum := strings.TrimSuffix(file, logExtension)
	if !md5Pattern.MatchString(sum) {
		return SessionKey{}, fmt.Errorf("session path %q: bad md5 %q", rel, sum)
	}
	return SessionKey{Date: date, MD5: sum}, nil
}

// IsQueryHash reports whether s looks like a query md5
func IsQueryHash(s string) bool {
	return md5Pattern.MatchString(s)
}

// DateDirs lists the date directories under dataDir, newest first. A missing
// data dir yields no entries.
func DateDirs(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StorageError{Path: dataDir, Op: "read", Err: err}
	}

	var dates []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse(DateLayout, entry.Name()); err != nil {
			continue
		}
		dates = append(dates, entry.Name())
	}
	// DateLayout sorts lexically in chronological order.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

// SessionFiles lists the log file names in one date directory, sorted
func SessionFiles(dataDir, date string) ([]string, error) {
	dir := filepath.Join(dataDir, date)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &StorageError{Path: dir, Op: "read", Err: err}
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), logExtension) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// ResolveWithin joins rel onto dataDir and rejects results that escape it
func ResolveWithin(dataDir, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q must be relative to the data directory", rel)
	}
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", err
	}
	full := filepath.Join(base, filepath.FromSlash(rel))
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the data directory", rel)
	}
	return full, nil
}
