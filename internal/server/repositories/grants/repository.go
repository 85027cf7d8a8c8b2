package grants

import (
	"context"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, galleryID, clientID string) (*models.AccessGrant, error)
	GetByCode(ctx context.Context, galleryID, code string) (*models.AccessGrant, error)
	ListByGallery(ctx context.Context, galleryID string) ([]*models.AccessGrant, error)
	ListByClient(ctx context.Context, clientID string) ([]*models.AccessGrant, error)
	SetAccessCode(ctx context.Context, g *models.AccessGrant, code string) error
	Touch(ctx context.Context, g *models.AccessGrant, at time.Time) error

	// Batch builders for multi-document writes.
	CreateOp(g *models.AccessGrant) docstore.Op
	// UpdateSettingsOp rewrites the photographer-controlled fields and leaves
	// the selection counter untouched.
	UpdateSettingsOp(g *models.AccessGrant) docstore.Op
	DeleteOp(galleryID, clientID string) docstore.Op
	AdjustCountOp(galleryID, clientID string, delta int64) docstore.Op
	SetCountOp(galleryID, clientID string, count int) docstore.Op
}
