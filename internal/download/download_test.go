package download_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/dmorgan81/imagine/internal/download"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	d := download.New(srv.Client())
	dest := filepath.Join(t.TempDir(), "nested", "mj-image.png")

	path, err := d.Download(context.Background(), srv.URL+"/img.png", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	path, err = d.Download(context.Background(), srv.URL+"/img.png", dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)
	assert.EqualValues(t, 1, hits.Load(), "existing file must not be fetched again")

	_, err = d.Download(context.Background(), srv.URL+"/missing.png", filepath.Join(t.TempDir(), "x.png"))
	var de *download.DownloadError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusNotFound, de.StatusCode)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	data, contentType, err := download.New(nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "image/jpeg", contentType)
}
