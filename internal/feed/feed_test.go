package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string]map[string]string
	times   map[string]time.Time
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	return out, nil
}

func (f *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	return &s3.HeadObjectOutput{
		Metadata:     f.objects[key],
		LastModified: aws.Time(f.times[key]),
	}, nil
}

func TestGenerate(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bucket := &fakeBucket{
		objects: map[string]map[string]string{
			"20240102.png":  {"date": "20240102", "prompt": "pear", "provider": "dalle"},
			"20240101.png":  {"date": "20240101", "prompt": "apple", "provider": "midjourney", "task": "T1"},
			"20240101.html": {"date": "20240101"},
			"latest.png":    {"date": "20240102", "prompt": "pear"},
		},
		times: map[string]time.Time{
			"20240101.png": day,
			"20240102.png": day.Add(24 * time.Hour),
			"latest.png":   day.Add(24 * time.Hour),
		},
	}

	rss, err := New(bucket, "bucket", "https://imagine.example/").Generate(context.Background())
	require.NoError(t, err)

	out := string(rss)
	assert.Contains(t, out, "apple (midjourney)")
	assert.Contains(t, out, "https://imagine.example/20240102.html")
	assert.Equal(t, 2, strings.Count(out, "<item>"))
	assert.Less(t, strings.Index(out, "apple"), strings.Index(out, "pear"))
}
