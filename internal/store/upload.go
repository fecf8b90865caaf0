package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dmorgan81/imagine/internal/config"
	"github.com/dmorgan81/imagine/internal/log"
	"github.com/samber/do"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Uploader stores one object and returns where it ended up.
type Uploader interface {
	Upload(context.Context, UploadParams) (string, error)
}

type FileUploader struct {
	Dir string
}

func NewFileUploader(i *do.Injector) (Uploader, error) {
	return &FileUploader{Dir: do.MustInvoke[config.Config](i).Output.Dir}, nil
}

func (u *FileUploader) Upload(ctx context.Context, params UploadParams) (string, error) {
	path := filepath.Join(u.Dir, params.Name)
	log.FromContextOrDiscard(ctx).WithGroup("file").Info("writing", "file", path, "content-type", params.ContentType)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, params.Data, 0o644)
}
