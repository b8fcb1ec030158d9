// Package ledger keeps a JSON record of generated artifacts next to the
// output directory.
package ledger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileName is the ledger file created inside the output root.
const FileName = "generated.json"

const (
	KindAudio        = "audio"
	KindConversation = "conversation"
)

type Entry struct {
	Name            string    `json:"name"`
	Dir             string    `json:"dir,omitempty"`
	Kind            string    `json:"kind"` // "audio" or "conversation"
	Model           string    `json:"model,omitempty"`
	Voice           string    `json:"voice,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	RunID           string    `json:"run_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Ledger is safe for concurrent use within one process.
type Ledger struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
}

// New returns a ledger stored at path. Entries older than retention are
// dropped on every Add; a zero retention keeps everything.
func New(path string, retention time.Duration) *Ledger {
	return &Ledger{path: path, retention: retention}
}

// InDir returns a ledger stored as FileName inside dir.
func InDir(dir string, retention time.Duration) *Ledger {
	return New(filepath.Join(dir, FileName), retention)
}

func (l *Ledger) Path() string {
	return l.path
}

// Entries reads the recorded entries. A missing or corrupted file yields an
// empty list.
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *Ledger) read() ([]Entry, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// Corrupted file, the next Add overwrites it.
		slog.Warn("ignoring corrupted ledger", "file", l.path, "error", err)
		return []Entry{}, nil
	}
	return entries, nil
}

// Add appends e, trims expired entries and rewrites the file.
func (l *Ledger) Add(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, e)

	if l.retention > 0 {
		cutoff := time.Now().Add(-l.retention)
		recent := entries[:0]
		for _, i := range entries {
			if i.Timestamp.After(cutoff) {
				recent = append(recent, i)
			}
		}
		entries = recent
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0644)
}
