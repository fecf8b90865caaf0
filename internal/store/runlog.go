package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RunEntry records one prompt's outcome, keyed by the prompt id.
type RunEntry struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Provider  string `json:"provider,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// RunLog is a JSON object of id -> RunEntry on disk. Entries are merged into
// whatever the file already holds.
type RunLog struct {
	path string

	mu      sync.Mutex
	entries map[string]RunEntry
}

func OpenRunLog(path string) (*RunLog, error) {
	l := &RunLog{path: path, entries: map[string]RunEntry{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &l.entries); err != nil {
			return nil, err
		}
		if l.entries == nil {
			l.entries = map[string]RunEntry{}
		}
	}
	return l, nil
}

func (l *RunLog) Record(entry RunEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.ID] = entry
}

func (l *RunLog) Entry(id string) (RunEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	return e, ok
}

func (l *RunLog) Save() error {
	l.mu.Lock()
	data, err := json.MarshalIndent(l.entries, "", "    ")
	l.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}
