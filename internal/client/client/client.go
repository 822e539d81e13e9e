package client

import (
	"context"

	"github.com/dmitrijs2005/otaverifier/internal/client/models"
)

// ProgressFunc receives the number of body bytes sent and the body size.
type ProgressFunc func(sent, total int64)

// Client is the contract the uploader needs from the OTA backend.
type Client interface {
	Ping(ctx context.Context) error
	GetPublicKey(ctx context.Context) (string, error)
	UploadBundle(ctx context.Context, req *models.UploadRequest, progress ProgressFunc) (string, error)
	ListBundles(ctx context.Context) ([]string, error)
	InstallBundle(ctx context.Context, bundleKey string) (map[string]any, error)
}
