package media

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

const (
	GalleryCollection = "galleries"
	Collection        = "media"
)

type DocumentRepository struct {
	store docstore.Store
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) GetGallery(ctx context.Context, id string) (*models.Gallery, error) {
	doc, err := r.store.Get(ctx, GalleryCollection, id)
	if err != nil {
		return nil, err
	}
	return models.GalleryFromDocument(doc.ID, doc.Fields)
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*models.Media, error) {
	doc, err := r.store.Get(ctx, Collection, id)
	if err != nil {
		return nil, err
	}
	return models.MediaFromDocument(doc.ID, doc.Fields)
}

func (r *DocumentRepository) ListByGallery(ctx context.Context, galleryID string) ([]*models.Media, error) {
	docs, err := r.store.Query(ctx, Collection, []docstore.Filter{docstore.Eq("galleryId", galleryID)}, nil)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Media, 0, len(docs))
	for _, d := range docs {
		m, err := models.MediaFromDocument(d.ID, d.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *DocumentRepository) IncrementDownloads(ctx context.Context, id string) error {
	return r.store.Increment(ctx, Collection, id, "downloadCount", 1)
}

func (r *DocumentRepository) SaveGallery(ctx context.Context, g *models.Gallery) error {
	return r.store.Set(ctx, GalleryCollection, g.ID, g.Fields())
}

func (r *DocumentRepository) Save(ctx context.Context, m *models.Media) error {
	return r.store.Set(ctx, Collection, m.ID, m.Fields())
}
