package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

// DownloadError reports an artifact that could not be retrieved or written.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

type Downloader struct {
	client *http.Client
}

func NewDownloader(i *do.Injector) (*Downloader, error) {
	return New(do.MustInvoke[*http.Client](i)), nil
}

func New(client *http.Client) *Downloader {
	return &Downloader{client: lo.Ternary(client != nil, client, http.DefaultClient)}
}

// Fetch returns the artifact bytes and their content type.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	log.FromContextOrDiscard(ctx).WithGroup("download").Info("fetching artifact", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", &DownloadError{URL: url, Err: err}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &DownloadError{URL: url, Err: err}
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// Download writes the artifact to dest and returns the written path. An
// existing file at dest is kept and its path returned without a request.
func (d *Downloader) Download(ctx context.Context, url, dest string) (string, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("download").With("dest", dest)

	if _, err := os.Stat(dest); err == nil {
		logger.Info("artifact already downloaded")
		return dest, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", &DownloadError{URL: url, Err: err}
	}

	data, _, err := d.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	logger.Info("artifact written", "bytes", len(data))
	return dest, nil
}
