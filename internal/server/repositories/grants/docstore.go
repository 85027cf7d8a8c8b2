package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/timex"
)

const Collection = "accessGrants"

type DocumentRepository struct {
	store docstore.Store
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) Get(ctx context.Context, galleryID, clientID string) (*models.AccessGrant, error) {
	id := models.GrantID(galleryID, clientID)
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	return models.GrantFromDocument(doc.ID, doc.Fields)
}

// GetByCode finds the grant holding code within a gallery. Codes are unique
// per gallery only.
func (r *DocumentRepository) GetByCode(ctx context.Context, galleryID, code string) (*models.AccessGrant, error) {
	list, err := r.query(ctx, docstore.Eq("galleryId", galleryID), docstore.Eq("accessCode", code))
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, common.ErrorNotFound
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("%w: access code shared by %d grants in gallery %q", common.ErrConflict, len(list), galleryID)
	}
}

func (r *DocumentRepository) ListByGallery(ctx context.Context, galleryID string) ([]*models.AccessGrant, error) {
	return r.query(ctx, docstore.Eq("galleryId", galleryID))
}

func (r *DocumentRepository) ListByClient(ctx context.Context, clientID string) ([]*models.AccessGrant, error) {
	return r.query(ctx, docstore.Eq("clientId", clientID))
}

func (r *DocumentRepository) query(ctx context.Context, filters ...docstore.Filter) ([]*models.AccessGrant, error) {
	docs, err := r.store.Query(ctx, Collection, filters, &docstore.OrderBy{Field: "createdAt"})
	if err != nil {
		return nil, err
	}
	out := make([]*models.AccessGrant, 0, len(docs))
	for _, d := range docs {
		g, err := models.GrantFromDocument(d.ID, d.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *DocumentRepository) SetAccessCode(ctx context.Context, g *models.AccessGrant, code string) error {
	return r.store.Update(ctx, Collection, g.ID(), map[string]any{"accessCode": code})
}

func (r *DocumentRepository) Touch(ctx context.Context, g *models.AccessGrant, at time.Time) error {
	return r.store.Update(ctx, Collection, g.ID(), map[string]any{"lastAccessed": timex.UnixMilli(at)})
}

func (r *DocumentRepository) CreateOp(g *models.AccessGrant) docstore.Op {
	return docstore.SetOp(Collection, g.ID(), g.Fields())
}

func (r *DocumentRepository) UpdateSettingsOp(g *models.AccessGrant) docstore.Op {
	return docstore.UpdateOp(Collection, g.ID(), g.SettingsFields())
}

func (r *DocumentRepository) DeleteOp(galleryID, clientID string) docstore.Op {
	return docstore.DeleteOp(Collection, models.GrantID(galleryID, clientID))
}

func (r *DocumentRepository) AdjustCountOp(galleryID, clientID string, delta int64) docstore.Op {
	return docstore.IncrementOp(Collection, models.GrantID(galleryID, clientID), "selectionCount", delta)
}

func (r *DocumentRepository) SetCountOp(galleryID, clientID string, count int) docstore.Op {
	return docstore.UpdateOp(Collection, models.GrantID(galleryID, clientID), map[string]any{"selectionCount": count})
}
