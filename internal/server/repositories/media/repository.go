package media

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

// Repository reads the gallery catalog. Galleries and media are written by
// the CMS; Save* exist for seeding and tests.
type Repository interface {
	GetGallery(ctx context.Context, id string) (*models.Gallery, error)
	Get(ctx context.Context, id string) (*models.Media, error)
	ListByGallery(ctx context.Context, galleryID string) ([]*models.Media, error)
	IncrementDownloads(ctx context.Context, id string) error

	SaveGallery(ctx context.Context, g *models.Gallery) error
	Save(ctx context.Context, m *models.Media) error
}
