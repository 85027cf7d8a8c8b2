package selections

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, clientID, galleryID, mediaID string) (*models.SelectionFlag, error)
	// ListSelected returns the pair's flags with selected = true, oldest first.
	ListSelected(ctx context.Context, clientID, galleryID string) ([]*models.SelectionFlag, error)
	// ListPair returns every flag stored for the pair regardless of state.
	ListPair(ctx context.Context, clientID, galleryID string) ([]*models.SelectionFlag, error)
	ListByClient(ctx context.Context, clientID string) ([]*models.SelectionFlag, error)

	// Batch builders for multi-document writes.
	SaveOp(f *models.SelectionFlag) docstore.Op
	DeleteOp(clientID, galleryID, mediaID string) docstore.Op
}
