package packages

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

const Collection = "selectionPackages"

type DocumentRepository struct {
	store docstore.Store
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) Create(ctx context.Context, p *models.SelectionPackage) error {
	return r.store.Set(ctx, Collection, p.ID, p.Fields())
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.SelectionPackage, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	return models.PackageFromDocument(doc.ID, doc.Fields)
}

func (r *DocumentRepository) ListByGallery(ctx context.Context, galleryID string) ([]*models.SelectionPackage, error) {
	return r.query(ctx, docstore.Eq("galleryId", galleryID))
}

func (r *DocumentRepository) ListByClient(ctx context.Context, clientID string) ([]*models.SelectionPackage, error) {
	return r.query(ctx, docstore.Eq("clientId", clientID))
}

// query returns newest packages first.
func (r *DocumentRepository) query(ctx context.Context, filters ...docstore.Filter) ([]*models.SelectionPackage, error) {
	docs, err := r.store.Query(ctx, Collection, filters, &docstore.OrderBy{Field: "createdAt", Descending: true})
	if err != nil {
		return nil, err
	}
	out := make([]*models.SelectionPackage, 0, len(docs))
	for _, d := range docs {
		p, err := models.PackageFromDocument(d.ID, d.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, p *models.SelectionPackage) error {
	return r.store.Update(ctx, Collection, p.ID, p.StatusFields())
}
