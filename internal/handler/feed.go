package handler

import (
	"context"

	"github.com/dmorgan81/imagine/internal/feed"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/store"
	"github.com/samber/do"
)

const feedName = "feed.xml"

type FeedGenerator interface {
	Generate(context.Context) ([]byte, error)
}

// FeedHandler rebuilds the RSS feed from the bucket and publishes it.
type FeedHandler struct {
	generator   FeedGenerator
	uploader    store.Uploader
	invalidator store.Invalidator
}

func NewFeedHandler(i *do.Injector) (*FeedHandler, error) {
	return &FeedHandler{
		generator:   do.MustInvoke[*feed.Generator](i),
		uploader:    do.MustInvoke[store.Uploader](i),
		invalidator: do.MustInvoke[store.Invalidator](i),
	}, nil
}

func (h *FeedHandler) Handle(ctx context.Context) error {
	log.FromContextOrDiscard(ctx).WithGroup("FeedHandler").Info("handling lambda invocation")

	rss, err := h.generator.Generate(ctx)
	if err != nil {
		return err
	}
	if _, err := h.uploader.Upload(ctx, store.UploadParams{
		Name:        feedName,
		Data:        rss,
		ContentType: "application/rss+xml",
	}); err != nil {
		return err
	}
	return h.invalidator.Invalidate(ctx, []string{"/" + feedName})
}
