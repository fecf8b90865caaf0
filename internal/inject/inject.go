package inject

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/download"
	"github.com/dmorgan81/imagine/internal/feed"
	"github.com/dmorgan81/imagine/internal/handler"
	"github.com/dmorgan81/imagine/internal/image"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/dmorgan81/imagine/internal/page"
	"github.com/dmorgan81/imagine/internal/param"
	"github.com/dmorgan81/imagine/internal/prompt"
	"github.com/dmorgan81/imagine/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

func newInjector(ctx context.Context) *do.Injector {
	log := log.FromContextOrDiscard(ctx)
	return do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			log.Debug(fmt.Sprintf(format, args...))
		},
	})
}

// provideCommon registers everything that does not depend on where the
// program runs.
func provideCommon(injector *do.Injector) {
	do.ProvideValue[*http.Client](injector, http.DefaultClient)

	do.ProvideNamed[image.Generator](injector, config.ProviderMidjourney, image.NewMidjourneyGenerator)
	do.ProvideNamed[image.Generator](injector, config.ProviderDalle, image.NewDalleGenerator)
	do.ProvideNamed[image.Generator](injector, config.ProviderDezgo, image.NewDezgoGenerator)
	do.Provide[*image.Router](injector, image.NewRouter)
	do.Provide[*download.Downloader](injector, download.NewDownloader)
	do.Provide[*page.Templator](injector, page.NewTemplator)
	do.Provide[*prompt.Randomizer](injector, prompt.NewRandomizer)
}

// Setup wires the Lambda program: settings from the environment, secrets
// and prompts from the parameter store, artifacts to S3 behind CloudFront.
func Setup(ctx context.Context) *do.Injector {
	injector := newInjector(ctx)
	provideCommon(injector)

	do.Provide[config.Config](injector, func(*do.Injector) (config.Config, error) {
		return config.FromEnv(os.Getenv)
	})
	do.Provide[aws.Config](injector, func(i *do.Injector) (aws.Config, error) {
		return awsconfig.LoadDefaultConfig(ctx)
	})
	do.Provide[*ssm.Client](injector, func(i *do.Injector) (*ssm.Client, error) {
		return ssm.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*s3.Client](injector, func(i *do.Injector) (*s3.Client, error) {
		return s3.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})
	do.Provide[*cloudfront.Client](injector, func(i *do.Injector) (*cloudfront.Client, error) {
		return cloudfront.NewFromConfig(do.MustInvoke[aws.Config](i)), nil
	})

	do.Provide[param.Fetcher](injector, param.NewParameterStoreFetcher)
	do.Provide[store.Uploader](injector, func(i *do.Injector) (store.Uploader, error) {
		if do.MustInvoke[config.Config](i).Output.Bucket == "" {
			return store.NewFileUploader(i)
		}
		return store.NewS3Uploader(i)
	})
	do.Provide[store.Invalidator](injector, store.NewCloudFrontInvalidator)
	do.Provide[*feed.Generator](injector, feed.NewS3Generator)

	do.ProvideNamed[string](injector, "dalle_key", func(i *do.Injector) (string, error) {
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, os.Getenv("DALLE_KEY_PARAM"))
	})
	do.ProvideNamed[string](injector, "dezgo_key", func(i *do.Injector) (string, error) {
		return do.MustInvoke[param.Fetcher](i).Fetch(ctx, os.Getenv("DEZGO_KEY_PARAM"))
	})
	do.ProvideNamed[[]string](injector, "prompts", func(i *do.Injector) ([]string, error) {
		return do.MustInvoke[param.Fetcher](i).FetchAll(ctx, os.Getenv("PROMPTS_PARAM"))
	})

	do.Provide[*handler.Handler](injector, handler.NewHandler)
	do.Provide[*handler.PageHandler](injector, handler.NewPageHandler)
	do.Provide[*handler.FeedHandler](injector, handler.NewFeedHandler)

	return injector
}

// SetupLocal wires the CLI: settings from cfg, keys from cfg or the
// environment, artifacts to the local output directory. Nothing touches AWS.
func SetupLocal(ctx context.Context, cfg config.Config) *do.Injector {
	injector := newInjector(ctx)
	provideCommon(injector)

	do.ProvideValue[config.Config](injector, cfg)
	do.ProvideNamedValue[string](injector, "dalle_key", lo.Ternary(cfg.Dalle.Key != "", cfg.Dalle.Key, os.Getenv("OPENAI_API_KEY")))
	do.ProvideNamedValue[string](injector, "dezgo_key", lo.Ternary(cfg.Dezgo.Key != "", cfg.Dezgo.Key, os.Getenv("DEZGO_API_KEY")))
	do.ProvideNamedValue[[]string](injector, "prompts", []string(nil))
	do.Provide[store.Uploader](injector, store.NewFileUploader)
	do.ProvideValue[store.Invalidator](injector, store.NopInvalidator{})

	return injector
}
