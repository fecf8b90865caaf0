package prompt

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
)

var ErrNoPrompts = errors.New("no prompts configured")

// Choice is one entry of the prompt list, written "prompt",
// "provider|prompt" or "provider|model|prompt".
type Choice struct {
	Provider string
	Model    string
	Prompt   string
}

func ParseChoice(s string) Choice {
	parts := strings.SplitN(s, "|", 3)
	switch len(parts) {
	case 3:
		return Choice{Provider: parts[0], Model: parts[1], Prompt: parts[2]}
	case 2:
		return Choice{Provider: parts[0], Prompt: parts[1]}
	default:
		return Choice{Prompt: s}
	}
}

type Randomizer struct {
	prompts []string
	rnd     *rand.Rand
}

func NewRandomizer(i *do.Injector) (*Randomizer, error) {
	prompts := do.MustInvokeNamed[[]string](i, "prompts")
	return New(prompts, rand.NewSource(time.Now().UTC().Unix())), nil
}

func New(prompts []string, src rand.Source) *Randomizer {
	return &Randomizer{prompts, rand.New(src)}
}

func (r *Randomizer) Randomize(ctx context.Context) (Choice, error) {
	log.FromContextOrDiscard(ctx).WithGroup("randomizer").Info("getting random prompt", "choices", len(r.prompts))
	if len(r.prompts) == 0 {
		return Choice{}, ErrNoPrompts
	}
	return ParseChoice(r.prompts[r.rnd.Intn(len(r.prompts))]), nil
}
