package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/midjourney"
	"github.com/dmorgan81/imagine/internal/midjourney/mjtest"
	"github.com/dmorgan81/imagine/internal/poll"
	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newMidjourney(t *testing.T, srv *mjtest.Server, mods ...midjourney.Modifier) *MidjourneyGenerator {
	t.Helper()
	t.Cleanup(srv.Close)
	cfg := config.DefaultConfig().Midjourney
	cfg.ServerURL = srv.URL
	cfg.Modifiers = mods
	return NewMidjourney(midjourney.New(midjourney.Config{BaseURL: srv.URL}, srv.Client()), cfg, noWait)
}

func TestMidjourneyGenerate(t *testing.T) {
	srv := mjtest.NewServer().
		OnSubmit(`{"code":1,"result":"T1"}`).
		OnFetch("T1", `{"status":"IN_PROGRESS"}`, `{"status":"SUCCESS","imageUrl":"https://x/img.png"}`)
	gen := newMidjourney(t, srv, midjourney.Modifier{Key: "version", Value: "6.0"})

	art, err := gen.Generate(context.Background(), Params{Prompt: "A red apple on a table"})
	require.NoError(t, err)
	assert.Equal(t, Artifact{URL: "https://x/img.png", TaskID: "T1"}, art)
	assert.Equal(t, "A red apple on a table --version 6.0", srv.Submitted[0]["prompt"])
	assert.NotEmpty(t, srv.Submitted[0]["state"])
}

func TestMidjourneySubmitOnly(t *testing.T) {
	srv := mjtest.NewServer().OnSubmit(`{"code":22,"result":"T2"}`)
	gen := newMidjourney(t, srv)

	art, err := gen.Generate(context.Background(), Params{Prompt: "cat", SubmitOnly: true})
	require.NoError(t, err)
	assert.Equal(t, Artifact{TaskID: "T2", Pending: true}, art)
	assert.Zero(t, srv.FetchCount("T2"))
}

func TestMidjourneyResume(t *testing.T) {
	srv := mjtest.NewServer().OnFetch("T3", `{"status":"SUCCESS","imageUrl":"https://x/3.png"}`)
	gen := newMidjourney(t, srv)

	art, err := gen.Generate(context.Background(), Params{TaskID: "T3"})
	require.NoError(t, err)
	assert.Equal(t, "https://x/3.png", art.URL)
	assert.Zero(t, srv.SubmitCount())
}

func TestMidjourneyFailure(t *testing.T) {
	srv := mjtest.NewServer().
		OnSubmit(`{"code":21,"result":"T4"}`).
		OnFetch("T4", `{"status":"FAILURE","failureReason":"banned prompt"}`)
	gen := newMidjourney(t, srv)

	art, err := gen.Generate(context.Background(), Params{Prompt: "cat"})
	var failure *poll.RemoteTaskFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "banned prompt", failure.Reason)
	assert.False(t, art.Pending)
	assert.Equal(t, "T4", art.TaskID)
}

func TestMidjourneyModifierLayering(t *testing.T) {
	gen := NewMidjourney(nil, config.MidjourneyConfig{
		PollInterval: time.Second,
		Modifiers: []midjourney.Modifier{
			{Key: "version", Value: "6.0"},
			{Key: "ar", Value: "1:1"},
		},
	}, noWait)

	req := gen.request(Params{
		Prompt:    "cat",
		Seed:      "42",
		Modifiers: []midjourney.Modifier{{Key: "ar", Value: "16:9"}, {Key: "stylize", Value: "250"}},
	})
	assert.Equal(t, "cat --version 6.0 --ar 16:9 --stylize 250 --seed 42", req.Compose())
}

func TestDalleGenerate(t *testing.T) {
	var got dalleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"data":[{"url":"https://oai/img.png","revised_prompt":"a cat"}]}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Dalle
	cfg.Key = "sk-test"
	cfg.BaseURL = srv.URL
	gen, err := NewDalle(cfg, srv.Client())
	require.NoError(t, err)

	art, err := gen.Generate(context.Background(), Params{Prompt: "a cat"})
	require.NoError(t, err)
	assert.Equal(t, "https://oai/img.png", art.URL)
	assert.Equal(t, "dall-e-3", got.Model)
	assert.Equal(t, config.DefaultDallePrefix+"a cat", got.Prompt)
	assert.Equal(t, "standard", got.Quality)
	assert.Equal(t, 1, got.N)
}

func TestDalleErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"content policy","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig().Dalle
	cfg.BaseURL = srv.URL
	cfg.Version = 2
	gen, err := NewDalle(cfg, srv.Client())
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Params{Prompt: "x"})
	assert.ErrorContains(t, err, "content policy")

	cfg.Version = 4
	_, err = NewDalle(cfg, nil)
	assert.ErrorIs(t, err, ErrDalleVersion)
}

func TestDezgoGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/text2image", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Dezgo-Key"))
		var body dezgoParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "epic", body.Model)
		w.Header().Set("x-input-seed", "1234")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer srv.Close()

	gen := &DezgoGenerator{Client: srv.Client(), Key: "key", Model: "epic", BaseURL: srv.URL}
	art, err := gen.Generate(context.Background(), Params{Prompt: "kitten"})
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), art.Data)
	assert.Equal(t, "1234", art.Seed)
	assert.Equal(t, "image/png", art.ContentType)
}

type stubGenerator struct {
	name string
}

func (s stubGenerator) Generate(_ context.Context, params Params) (Artifact, error) {
	return Artifact{URL: s.name + ":" + params.Prompt}, nil
}

func TestRouter(t *testing.T) {
	i := do.New()
	cfg := config.DefaultConfig()
	cfg.Provider = config.ProviderDezgo
	do.ProvideValue(i, cfg)
	do.ProvideNamedValue[Generator](i, config.ProviderMidjourney, stubGenerator{"mj"})
	do.ProvideNamedValue[Generator](i, config.ProviderDezgo, stubGenerator{"dezgo"})
	do.ProvideNamed[Generator](i, config.ProviderDalle, func(*do.Injector) (Generator, error) {
		return nil, errors.New("no key")
	})

	router, err := NewRouter(i)
	require.NoError(t, err)

	art, err := router.Generate(context.Background(), Params{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "dezgo:p", art.URL)

	art, err = router.Generate(context.Background(), Params{Provider: "midjourney", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "mj:p", art.URL)

	_, err = router.Generate(context.Background(), Params{Provider: "dalle"})
	assert.ErrorContains(t, err, "no key")

	_, err = router.Generate(context.Background(), Params{Provider: "stable"})
	assert.Error(t, err)
}
