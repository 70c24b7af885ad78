package ports

import (
	"context"
	"io"
)

// AssetUpload is one file received from a client, handed to the asset store.
type AssetUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// AssetStore persists user-owned media (avatars, cover images) in an external
// object store and serves them by public URL.
type AssetStore interface {
	Upload(ctx context.Context, asset AssetUpload) (string, error)
	Remove(ctx context.Context, url string) error
}
