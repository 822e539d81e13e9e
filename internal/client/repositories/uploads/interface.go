package uploads

import (
	"context"

	"github.com/dmitrijs2005/otaverifier/internal/client/models"
)

// Repository stores the outcome of every bundle submission.
type Repository interface {
	// Insert appends a finished submission.
	Insert(ctx context.Context, rec *models.UploadRecord) error

	// List returns up to limit records, newest first. A non-positive limit
	// returns everything.
	List(ctx context.Context, limit int) ([]*models.UploadRecord, error)

	// LastSuccessful returns the newest successful upload of version, or
	// common.ErrNotFound.
	LastSuccessful(ctx context.Context, version string) (*models.UploadRecord, error)
}
