package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var ErrDalleVersion = errors.New("dalle version must be 2 or 3")

// DalleGenerator calls the OpenAI images API and returns the hosted URL.
type DalleGenerator struct {
	client *http.Client
	cfg    config.DalleConfig
}

func NewDalleGenerator(i *do.Injector) (Generator, error) {
	cfg := do.MustInvoke[config.Config](i).Dalle
	cfg.Key = do.MustInvokeNamed[string](i, "dalle_key")
	return NewDalle(cfg, do.MustInvoke[*http.Client](i))
}

func NewDalle(cfg config.DalleConfig, client *http.Client) (*DalleGenerator, error) {
	if cfg.Version != 2 && cfg.Version != 3 {
		return nil, fmt.Errorf("%w, got %d", ErrDalleVersion, cfg.Version)
	}
	return &DalleGenerator{
		client: lo.Ternary(client != nil, client, http.DefaultClient),
		cfg:    cfg,
	}, nil
}

type dalleRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
}

type dalleResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (g *DalleGenerator) Generate(ctx context.Context, params Params) (Artifact, error) {
	body := dalleRequest{
		Model:  fmt.Sprintf("dall-e-%d", g.cfg.Version),
		Prompt: g.cfg.Prefix + params.Prompt,
		N:      1,
		Size:   g.cfg.Size,
	}
	// quality is a dall-e-3 only parameter
	if g.cfg.Version == 3 {
		body.Quality = g.cfg.Quality
	}
	log := log.FromContextOrDiscard(ctx).WithGroup("dalle").With("model", body.Model, "prompt", params.Prompt)
	log.Info("generating image via openai")

	data, err := json.Marshal(body)
	if err != nil {
		return Artifact{}, err
	}
	endpoint, err := url.JoinPath(g.cfg.BaseURL, "v1", "images", "generations")
	if err != nil {
		return Artifact{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return Artifact{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.Key)

	resp, err := g.client.Do(req)
	if err != nil {
		return Artifact{}, err
	}
	defer resp.Body.Close()

	var out dalleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Artifact{}, fmt.Errorf("decode dalle response: status %d: %w", resp.StatusCode, err)
	}
	if out.Error != nil {
		return Artifact{}, fmt.Errorf("dalle: %s: %s", out.Error.Type, out.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(out.Data) == 0 || out.Data[0].URL == "" {
		return Artifact{}, fmt.Errorf("dalle: status %d: no image returned", resp.StatusCode)
	}

	log.Info("received image url via openai", "revised", out.Data[0].RevisedPrompt)
	return Artifact{URL: out.Data[0].URL}, nil
}
