package clients

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Client, error)
	GetByEmail(ctx context.Context, email string) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Save(ctx context.Context, c *models.Client) error

	// Batch builders for multi-document writes.
	SaveOp(c *models.Client) docstore.Op
	SetGalleriesOp(clientID string, galleryIDs []string) docstore.Op
	DeleteOp(clientID string) docstore.Op
}
