package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type DezgoGenerator struct {
	Client  *http.Client
	Key     string
	Model   string
	BaseURL string
}

func NewDezgoGenerator(i *do.Injector) (Generator, error) {
	cfg := do.MustInvoke[config.Config](i).Dezgo
	return &DezgoGenerator{
		Client:  do.MustInvoke[*http.Client](i),
		Key:     do.MustInvokeNamed[string](i, "dezgo_key"),
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
	}, nil
}

type dezgoParams struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Seed   string `json:"seed,omitempty"`
}

func (g *DezgoGenerator) Generate(ctx context.Context, params Params) (Artifact, error) {
	body := dezgoParams{
		Model:  lo.Ternary(params.Model != "", params.Model, g.Model),
		Prompt: params.Prompt,
		Seed:   params.Seed,
	}
	log := log.FromContextOrDiscard(ctx).WithGroup("dezgo").With("params", body)
	log.Info("generating image via dezgo")

	data, err := json.Marshal(body)
	if err != nil {
		return Artifact{}, err
	}

	endpoint, err := url.JoinPath(g.BaseURL, "text2image")
	if err != nil {
		return Artifact{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Artifact{}, err
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("X-Dezgo-Key", g.Key)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Artifact{}, err
	}
	defer resp.Body.Close()

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return Artifact{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Artifact{}, fmt.Errorf("dezgo text2image: status %d: %s", resp.StatusCode, bytes.TrimSpace(img))
	}

	seed := resp.Header.Get("x-input-seed")
	log.Info("received image via dezgo", "seed", seed)

	return Artifact{
		Data:        img,
		ContentType: lo.Ternary(resp.Header.Get("Content-Type") != "", resp.Header.Get("Content-Type"), "image/png"),
		Seed:        seed,
	}, nil
}
