package clients

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

const Collection = "clients"

type DocumentRepository struct {
	store docstore.Store
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Client, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	return models.ClientFromDocument(doc.ID, doc.Fields)
}

// GetByEmail expects a normalized address.
func (r *DocumentRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	docs, err := r.store.Query(ctx, Collection, []docstore.Filter{docstore.Eq("email", email)}, nil)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.ErrorNotFound
	}
	if len(docs) > 1 {
		return nil, fmt.Errorf("%w: %d clients share email %q", common.ErrConflict, len(docs), email)
	}
	return models.ClientFromDocument(docs[0].ID, docs[0].Fields)
}

func (r *DocumentRepository) List(ctx context.Context) ([]*models.Client, error) {
	docs, err := r.store.Query(ctx, Collection, nil, &docstore.OrderBy{Field: "createdAt"})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Client, 0, len(docs))
	for _, d := range docs {
		c, err := models.ClientFromDocument(d.ID, d.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *DocumentRepository) Save(ctx context.Context, c *models.Client) error {
	return r.store.Set(ctx, Collection, c.ID, c.Fields())
}

func (r *DocumentRepository) SaveOp(c *models.Client) docstore.Op {
	return docstore.SetOp(Collection, c.ID, c.Fields())
}

func (r *DocumentRepository) SetGalleriesOp(clientID string, galleryIDs []string) docstore.Op {
	if galleryIDs == nil {
		galleryIDs = []string{}
	}
	return docstore.UpdateOp(Collection, clientID, map[string]any{"galleryIds": galleryIDs})
}

func (r *DocumentRepository) DeleteOp(clientID string) docstore.Op {
	return docstore.DeleteOp(Collection, clientID)
}
