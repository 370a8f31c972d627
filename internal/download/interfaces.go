package download

import (
	"context"
	"io"

	"vidfetch-backend/internal/storage"
	"vidfetch-backend/pkg/models"

	"github.com/spf13/afero"
)

// Extractor fetches media from a URL
type Extractor interface {
	Resolve(ctx context.Context, url string, opts models.ExtractOptions) (*models.MediaInfo, error)
	Download(ctx context.Context, url string, opts models.ExtractOptions, progress models.ProgressFunc) (*models.MediaInfo, error)
}

// Storage is the downloads directory
type Storage interface {
	Exists(name string) (bool, error)
	Open(name string) (afero.File, error)
	Usage() (storage.Usage, error)
}

// Archiver keeps a copy of finished downloads elsewhere
type Archiver interface {
	Archive(ctx context.Context, name string, body io.Reader) error
}
