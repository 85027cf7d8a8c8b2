package clients

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository_SaveGetByEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(docstore.NewMemoryStore())

	c := &models.Client{ID: "c1", Email: "ann@studio.test", Name: "Ann", CreatedAt: time.Unix(100, 0).UTC()}
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.GetByEmail(ctx, "ann@studio.test")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, []string{}, got.GalleryIDs)

	_, err = repo.GetByEmail(ctx, "bob@studio.test")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, repo.Save(ctx, &models.Client{ID: "c2", Email: "ann@studio.test"}))
	_, err = repo.GetByEmail(ctx, "ann@studio.test")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestDocumentRepository_BatchOps(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewDocumentRepository(store)

	require.NoError(t, store.RunAtomicBatch(ctx, []docstore.Op{
		repo.SaveOp(&models.Client{ID: "c1", Email: "a@b.c"}),
		repo.SetGalleriesOp("c1", []string{"g1", "g2"}),
	}))
	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2"}, got.GalleryIDs)

	require.NoError(t, store.RunAtomicBatch(ctx, []docstore.Op{repo.DeleteOp("c1")}))
	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDocumentRepository_ListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewDocumentRepository(docstore.NewMemoryStore())
	require.NoError(t, repo.Save(ctx, &models.Client{ID: "b", Email: "b@x", CreatedAt: time.Unix(20, 0)}))
	require.NoError(t, repo.Save(ctx, &models.Client{ID: "a", Email: "a@x", CreatedAt: time.Unix(30, 0)}))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
}
