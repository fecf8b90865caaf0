package page

import (
	"bytes"
	"context"
	_ "embed"
	"html/template"
	"sync"

	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
)

//go:embed assets/latest.html
var latestTmpl string

type Params struct {
	Image    string
	Provider string
	Model    string
	Prompt   string
	Seed     string
	TaskID   string
}

// ParamsFromMetadata rebuilds page params from the object metadata written
// alongside each image.
func ParamsFromMetadata(meta map[string]string) Params {
	return Params{
		Image:    meta["date"] + ".png",
		Provider: meta["provider"],
		Model:    meta["model"],
		Prompt:   meta["prompt"],
		Seed:     meta["seed"],
		TaskID:   meta["task"],
	}
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(*do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("latest").Parse(latestTmpl))
	})

	log.FromContextOrDiscard(ctx).WithGroup("templator").Info("generating page", "image", params.Image)

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}
