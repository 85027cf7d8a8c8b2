package packages

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

// Repository stores selection packages. There is no delete: packages are
// the audit trail.
type Repository interface {
	Create(ctx context.Context, p *models.SelectionPackage) error
	Get(ctx context.Context, id string) (*models.SelectionPackage, error)
	ListByGallery(ctx context.Context, galleryID string) ([]*models.SelectionPackage, error)
	ListByClient(ctx context.Context, clientID string) ([]*models.SelectionPackage, error)
	// UpdateStatus writes the status, timestamps and comments. The snapshot
	// fields are never rewritten.
	UpdateStatus(ctx context.Context, p *models.SelectionPackage) error
}
