// Package activity keeps an append-only JSON-lines log of dispatches.
//
// Several hook processes can fire at once, so each append holds an exclusive
// lock on the log file for the duration of a single line write.
package activity

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ariel-frischer/hookrelay/internal/dispatch"
)

// maxLineSize bounds a single entry when reading the log back
const maxLineSize = 1 << 20

// Entry is one dispatch as stored in the activity log
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Event      string    `json:"event"`
	Tool       string    `json:"tool,omitempty"`
	Session    string    `json:"session,omitempty"`
	Recovered  bool      `json:"recovered,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Outcome is the stored form of one channel result
type Outcome struct {
	Channel    string `json:"channel"`
	Decision   string `json:"decision"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Failed reports whether any channel in the entry failed
func (e Entry) Failed() bool {
	for _, o := range e.Outcomes {
		if o.Error != "" {
			return true
		}
	}
	return false
}

// FromReport converts a dispatch report into a log entry
func FromReport(r dispatch.Report) Entry {
	entry := Entry{
		ID:         r.ID,
		Timestamp:  r.Started,
		Event:      string(r.Event.Type),
		Tool:       r.Event.ToolName,
		Session:    r.Event.SessionID,
		Recovered:  r.Event.Recovered,
		DurationMs: r.Duration.Milliseconds(),
		Outcomes:   make([]Outcome, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		entry.Outcomes = append(entry.Outcomes, Outcome{
			Channel:    o.Channel,
			Decision:   o.Decision.String(),
			Error:      o.Error,
			DurationMs: o.DurationMs(),
			Stderr:     o.Stderr,
		})
	}
	return entry
}

// Writer appends entries to the activity log file
type Writer struct {
	// Path is the activity log file
	Path string
}

// NewWriter creates a writer for path
func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Record implements dispatch.Recorder
func (w *Writer) Record(r dispatch.Report) error {
	return w.Append(FromReport(r))
}

// Append writes entry as a single line while holding an exclusive lock
func (w *Writer) Append(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding activity entry: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("creating activity log directory: %w", err)
	}

	f, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("locking activity log: %w", err)
	}
	defer unlockFile(f)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("writing activity log: %w", err)
	}
	return nil
}

// Read returns the most recent entries in file order, at most limit of them
// (all when limit <= 0). A missing file yields no entries. Lines that do not
// decode are skipped.
func Read(path string, limit int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), maxLineSize)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("reading activity log: %w", err)
	}
	return entries, nil
}
