package selections

import (
	"context"

	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
)

const Collection = "selections"

type DocumentRepository struct {
	store docstore.Store
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store}
}

func (r *DocumentRepository) Get(ctx context.Context, clientID, galleryID, mediaID string) (*models.SelectionFlag, error) {
	doc, err := r.store.Get(ctx, Collection, models.FlagID(clientID, galleryID, mediaID))
	if err != nil {
		return nil, err
	}
	return models.FlagFromDocument(doc.ID, doc.Fields)
}

func (r *DocumentRepository) ListSelected(ctx context.Context, clientID, galleryID string) ([]*models.SelectionFlag, error) {
	return r.query(ctx,
		docstore.Eq("clientId", clientID),
		docstore.Eq("galleryId", galleryID),
		docstore.Eq("selected", true))
}

func (r *DocumentRepository) ListPair(ctx context.Context, clientID, galleryID string) ([]*models.SelectionFlag, error) {
	return r.query(ctx, docstore.Eq("clientId", clientID), docstore.Eq("galleryId", galleryID))
}

func (r *DocumentRepository) ListByClient(ctx context.Context, clientID string) ([]*models.SelectionFlag, error) {
	return r.query(ctx, docstore.Eq("clientId", clientID))
}

func (r *DocumentRepository) query(ctx context.Context, filters ...docstore.Filter) ([]*models.SelectionFlag, error) {
	docs, err := r.store.Query(ctx, Collection, filters, &docstore.OrderBy{Field: "selectionDate"})
	if err != nil {
		return nil, err
	}
	out := make([]*models.SelectionFlag, 0, len(docs))
	for _, d := range docs {
		f, err := models.FlagFromDocument(d.ID, d.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *DocumentRepository) SaveOp(f *models.SelectionFlag) docstore.Op {
	return docstore.SetOp(Collection, f.ID(), f.Fields())
}

func (r *DocumentRepository) DeleteOp(clientID, galleryID, mediaID string) docstore.Op {
	return docstore.DeleteOp(Collection, models.FlagID(clientID, galleryID, mediaID))
}
