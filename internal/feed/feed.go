package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// BucketClient is the subset of *s3.Client the feed reads with.
type BucketClient interface {
	s3.ListObjectsV2APIClient
	s3.HeadObjectAPIClient
}

type Generator struct {
	client BucketClient
	bucket string
	site   string
}

func NewS3Generator(i *do.Injector) (*Generator, error) {
	out := do.MustInvoke[config.Config](i).Output
	return New(do.MustInvoke[*s3.Client](i), out.Bucket, out.Site), nil
}

func New(client BucketClient, bucket, site string) *Generator {
	return &Generator{client: client, bucket: bucket, site: strings.TrimRight(site, "/")}
}

// Generate lists every dated image in the bucket and renders them, oldest
// first, as RSS.
func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed").With("bucket", g.bucket)
	log.Info("generating rss feed")

	feed := feeds.Feed{
		Title:       "imagine",
		Description: "AI generated images",
		Link:        &feeds.Link{Href: g.site},
		Updated:     time.Now(),
	}

	pager := s3.NewListObjectsV2Paginator(g.client, &s3.ListObjectsV2Input{
		Bucket: &g.bucket,
	})

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			_ = group.Wait()
			return nil, err
		}

		objs := lo.Filter(page.Contents, func(o s3types.Object, _ int) bool {
			return strings.HasSuffix(*o.Key, ".png") && !strings.HasPrefix(*o.Key, "latest")
		})

		for _, obj := range objs {
			obj := obj
			group.Go(func() error {
				out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: &g.bucket,
					Key:    obj.Key,
				})
				if err != nil {
					return err
				}

				item := g.item(out.Metadata, lo.FromPtr(out.LastModified))
				mu.Lock()
				feed.Add(item)
				mu.Unlock()
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	log.Info("collected feed items", "count", len(feed.Items))

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.Before(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}

func (g *Generator) item(meta map[string]string, updated time.Time) *feeds.Item {
	title := meta["prompt"]
	if provider := meta["provider"]; provider != "" {
		title = fmt.Sprintf("%s (%s)", title, provider)
	}
	return &feeds.Item{
		Title:   title,
		Link:    &feeds.Link{Href: fmt.Sprintf("%s/%s.html", g.site, meta["date"])},
		Id:      lo.Ternary(meta["task"] != "", meta["task"], meta["date"]),
		Updated: updated,
	}
}
