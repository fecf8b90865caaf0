package handler

import (
	"context"
	"time"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/download"
	"github.com/dmorgan81/imagine/internal/image"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/page"
	"github.com/dmorgan81/imagine/internal/prompt"
	"github.com/dmorgan81/imagine/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	StateSucceeded = "succeeded"
	StatePending   = "pending"
)

type Input struct {
	Date       string   `json:"date,omitempty"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
	Seed       string   `json:"seed,omitempty"`
	Modifiers  []string `json:"modifiers,omitempty"`
	TaskID     string   `json:"taskId,omitempty"`
	SubmitOnly bool     `json:"submitOnly,omitempty"`
}

type Output struct {
	Date     string `json:"date,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Seed     string `json:"seed,omitempty"`
	TaskID   string `json:"taskId,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	State    string `json:"state"`
}

func (i Input) toPageParams() page.Params {
	return page.Params{
		Image:    i.Date + ".png",
		Provider: i.Provider,
		Model:    i.Model,
		Prompt:   i.Prompt,
		Seed:     i.Seed,
		TaskID:   i.TaskID,
	}
}

func (i Input) toMetadata() map[string]string {
	return lo.OmitByValues(map[string]string{
		"date":     i.Date,
		"provider": i.Provider,
		"model":    i.Model,
		"prompt":   i.Prompt,
		"seed":     i.Seed,
		"task":     i.TaskID,
	}, []string{""})
}

func (i Input) output(state, url string) Output {
	return Output{
		Date:     i.Date,
		Provider: i.Provider,
		Model:    i.Model,
		Prompt:   i.Prompt,
		Seed:     i.Seed,
		TaskID:   i.TaskID,
		ImageURL: url,
		State:    state,
	}
}

type Randomizer interface {
	Randomize(context.Context) (prompt.Choice, error)
}

type Fetcher interface {
	Fetch(context.Context, string) ([]byte, string, error)
}

type Templator interface {
	Template(context.Context, page.Params) ([]byte, error)
}

// Handler generates one image, publishes it with its page, and invalidates
// the cached copies. A task that was only submitted is reported as pending
// and nothing is published.
type Handler struct {
	randomizer  Randomizer
	generator   image.Generator
	fetcher     Fetcher
	uploader    store.Uploader
	invalidator store.Invalidator
	templator   Templator
	now         func() time.Time
}

func NewHandler(i *do.Injector) (*Handler, error) {
	return &Handler{
		randomizer:  do.MustInvoke[*prompt.Randomizer](i),
		generator:   do.MustInvoke[*image.Router](i),
		fetcher:     do.MustInvoke[*download.Downloader](i),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
		templator:   do.MustInvoke[*page.Templator](i),
		now:         time.Now,
	}, nil
}

func (h *Handler) Handle(ctx context.Context, input Input) (Output, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("input", input)
	log.Info("handling lambda invocation")

	// A resumed task already has its prompt on the server.
	if input.TaskID == "" && input.Prompt == "" {
		choice, err := h.randomizer.Randomize(ctx)
		if err != nil {
			return Output{}, err
		}
		input.Provider = lo.Ternary(input.Provider != "", input.Provider, choice.Provider)
		input.Model = lo.Ternary(input.Model != "", input.Model, choice.Model)
		input.Prompt = choice.Prompt
	}

	latest := false
	if input.Date == "" {
		input.Date = h.now().UTC().Format("20060102")
		latest = true
	}

	mods, err := config.ParseModifiers(input.Modifiers)
	if err != nil {
		return Output{}, err
	}

	artifact, err := h.generator.Generate(ctx, image.Params{
		Provider:   input.Provider,
		Model:      input.Model,
		Prompt:     input.Prompt,
		Seed:       input.Seed,
		Modifiers:  mods,
		TaskID:     input.TaskID,
		SubmitOnly: input.SubmitOnly,
	})
	input.TaskID = lo.Ternary(artifact.TaskID != "", artifact.TaskID, input.TaskID)
	if err != nil {
		return input.output(lo.Ternary(artifact.Pending, StatePending, ""), ""), err
	}
	if artifact.Pending {
		log.Info("task submitted, not publishing", "task", input.TaskID)
		return input.output(StatePending, ""), nil
	}
	input.Seed = artifact.Seed

	data, contentType := artifact.Data, artifact.ContentType
	if len(data) == 0 {
		if data, contentType, err = h.fetcher.Fetch(ctx, artifact.URL); err != nil {
			return input.output("", artifact.URL), err
		}
	}
	contentType = lo.Ternary(contentType != "", contentType, "image/png")

	html, err := h.templator.Template(ctx, input.toPageParams())
	if err != nil {
		return Output{}, err
	}

	metadata := input.toMetadata()
	names := []string{input.Date}
	if latest {
		names = append(names, "latest")
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		uploads := []store.UploadParams{
			{Name: name + ".png", Data: data, ContentType: contentType, Metadata: metadata},
			{Name: name + ".html", Data: html, ContentType: "text/html", Metadata: metadata},
		}
		for _, u := range uploads {
			u := u
			group.Go(func() error {
				_, err := h.uploader.Upload(gctx, u)
				return err
			})
		}
	}
	if err := group.Wait(); err != nil {
		return Output{}, err
	}

	paths := lo.FlatMap(names, func(name string, _ int) []string {
		return []string{"/" + name + ".png", "/" + name + ".html"}
	})
	if err := h.invalidator.Invalidate(ctx, paths); err != nil {
		return Output{}, err
	}

	return input.output(StateSucceeded, artifact.URL), nil
}
