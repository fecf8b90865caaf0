package image

import (
	"context"

	"github.com/dmorgan81/imagine/internal/midjourney"
)

type Params struct {
	Provider  string
	Model     string
	Prompt    string
	Seed      string
	Modifiers []midjourney.Modifier
	// TaskID and SubmitOnly only apply to asynchronous providers.
	TaskID     string
	SubmitOnly bool
}

// Artifact is what a provider produced: bytes, a URL to fetch them from, or,
// for a task that was submitted but not awaited, only its id.
type Artifact struct {
	Data        []byte
	ContentType string
	URL         string
	Seed        string
	TaskID      string
	Pending     bool
}

type Generator interface {
	Generate(context.Context, Params) (Artifact, error)
}
