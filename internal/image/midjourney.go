package image

import (
	"context"
	"net/http"
	"time"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/midjourney"
	"github.com/dmorgan81/imagine/internal/poll"
	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// MidjourneyGenerator is the one asynchronous provider: it submits a task
// and, unless asked not to, waits for the remote generator to finish it.
type MidjourneyGenerator struct {
	orchestrator *poll.Orchestrator
	baseURL      string
	modifiers    []midjourney.Modifier
	timeout      time.Duration
}

func NewMidjourneyGenerator(i *do.Injector) (Generator, error) {
	cfg := do.MustInvoke[config.Config](i).Midjourney
	client := midjourney.New(midjourney.Config{
		BaseURL:   cfg.ServerURL,
		RateLimit: cfg.RateLimit,
	}, do.MustInvoke[*http.Client](i))
	return NewMidjourney(client, cfg, nil), nil
}

// NewMidjourney builds the generator around any TaskClient. A nil wait uses
// a real timer.
func NewMidjourney(client poll.TaskClient, cfg config.MidjourneyConfig, wait poll.WaitFunc) *MidjourneyGenerator {
	return &MidjourneyGenerator{
		orchestrator: poll.New(client, poll.Options{
			Interval:      cfg.PollInterval,
			MaxPollErrors: cfg.MaxPollErrors,
			Wait:          wait,
		}),
		baseURL:   cfg.ServerURL,
		modifiers: cfg.Modifiers,
		timeout:   cfg.Timeout,
	}
}

func (g *MidjourneyGenerator) Generate(ctx context.Context, params Params) (Artifact, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("midjourney").With("prompt", params.Prompt)
	log.Info("generating image via midjourney proxy", "task", params.TaskID, "submitOnly", params.SubmitOnly)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	task, err := g.orchestrator.Run(ctx, g.request(params), poll.RunOptions{
		TaskID:     params.TaskID,
		SubmitOnly: params.SubmitOnly,
	})
	artifact := Artifact{
		URL:     task.ArtifactURL,
		Seed:    params.Seed,
		TaskID:  task.ID,
		Pending: task.Resumable(),
	}
	if err != nil {
		log.Warn("midjourney task did not succeed", "task", task.ID, "state", task.State, "error", err)
		return artifact, err
	}
	return artifact, nil
}

// request layers per-call modifiers over the configured ones; a key given
// in both keeps the per-call value at the configured position.
func (g *MidjourneyGenerator) request(params Params) midjourney.GenerationRequest {
	extra := params.Modifiers
	if params.Seed != "" {
		extra = append(lo.Filter(extra, func(m midjourney.Modifier, _ int) bool {
			return m.Key != "seed"
		}), midjourney.Modifier{Key: "seed", Value: params.Seed})
	}
	overrides := lo.SliceToMap(extra, func(m midjourney.Modifier) (string, string) {
		return m.Key, m.Value
	})

	mods := lo.Map(g.modifiers, func(m midjourney.Modifier, _ int) midjourney.Modifier {
		if v, ok := overrides[m.Key]; ok {
			m.Value = v
		}
		return m
	})
	configured := lo.SliceToMap(g.modifiers, func(m midjourney.Modifier) (string, bool) {
		return m.Key, true
	})
	mods = append(mods, lo.Reject(extra, func(m midjourney.Modifier, _ int) bool {
		return configured[m.Key]
	})...)

	return midjourney.GenerationRequest{
		Prompt:    params.Prompt,
		Modifiers: mods,
		BaseURL:   g.baseURL,
		State:     uuid.NewString(),
	}
}
