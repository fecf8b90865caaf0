package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
)

// Entry is one prompt of a prompt set file: [{"id": 1, "prompt": "..."}].
type Entry struct {
	ID     string
	Prompt string
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Prompt string          `json:"prompt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var id any
	if err := json.Unmarshal(raw.ID, &id); err != nil {
		return fmt.Errorf("prompt id: %w", err)
	}
	switch v := id.(type) {
	case string:
		e.ID = v
	case float64:
		e.ID = strings.TrimSpace(string(raw.ID))
	default:
		return fmt.Errorf("prompt id must be a string or number, got %s", raw.ID)
	}
	e.Prompt = raw.Prompt
	return nil
}

type Set []Entry

func LoadSet(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var set Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse prompt set %s: %w", path, err)
	}
	return set, nil
}

func (s Set) Find(id string) (Entry, bool) {
	return lo.Find(s, func(e Entry) bool { return e.ID == id })
}
