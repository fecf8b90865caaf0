package image

import (
	"context"
	"fmt"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// Router dispatches to the generator registered under Params.Provider.
// Providers are resolved lazily so a missing key for one provider does not
// stop the others from working.
type Router struct {
	injector *do.Injector
	fallback string
}

func NewRouter(i *do.Injector) (*Router, error) {
	return &Router{injector: i, fallback: do.MustInvoke[config.Config](i).Provider}, nil
}

func (r *Router) Generate(ctx context.Context, params Params) (Artifact, error) {
	params.Provider = lo.Ternary(params.Provider != "", params.Provider, r.fallback)
	gen, err := do.InvokeNamed[Generator](r.injector, params.Provider)
	if err != nil {
		return Artifact{}, fmt.Errorf("provider %q: %w", params.Provider, err)
	}
	return gen.Generate(ctx, params)
}
