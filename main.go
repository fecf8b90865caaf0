package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/imagine/internal/handler"
	"github.com/dmorgan81/imagine/internal/inject"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
)

// The same binary serves every function; HANDLER picks which one.
func main() {
	ctx := log.NewContext(context.Background(), log.New(os.Stderr, log.ParseLevel(os.Getenv("LOG_LEVEL"))))
	injector := inject.Setup(ctx)

	var h any
	switch os.Getenv("HANDLER") {
	case "page":
		h = do.MustInvoke[*handler.PageHandler](injector).Handle
	case "feed":
		h = do.MustInvoke[*handler.FeedHandler](injector).Handle
	default:
		h = do.MustInvoke[*handler.Handler](injector).Handle
	}

	lambda.StartWithOptions(h, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
		_ = injector.Shutdown()
	}))
}
