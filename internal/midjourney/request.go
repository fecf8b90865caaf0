package midjourney

import (
	"strings"

	"github.com/samber/lo"
)

// Modifier is a free-form style parameter appended to the prompt as
// "--key value", or a bare "--key" when it has no value.
type Modifier struct {
	Key   string `json:"key" toml:"key"`
	Value string `json:"value" toml:"value"`
}

func (m Modifier) String() string {
	if m.Value == "" {
		return "--" + m.Key
	}
	return "--" + m.Key + " " + m.Value
}

// GenerationRequest is built once per submission and never mutated.
type GenerationRequest struct {
	Prompt    string
	Modifiers []Modifier
	BaseURL   string
	// State is echoed back by the proxy; it is not the task identifier.
	State string
}

// Compose joins the prompt and its modifiers, in order, with single spaces.
func (r GenerationRequest) Compose() string {
	parts := append([]string{r.Prompt}, lo.Map(r.Modifiers, func(m Modifier, _ int) string {
		return m.String()
	})...)
	return strings.Join(lo.Compact(parts), " ")
}

// ParseModifier parses "key=value".
func ParseModifier(s string) (Modifier, bool) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimPrefix(strings.TrimSpace(key), "--")
	if !ok || key == "" {
		return Modifier{}, false
	}
	return Modifier{Key: key, Value: strings.TrimSpace(value)}, true
}
