package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/grants"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/selections"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectedIDs(t *testing.T, e *testEnv, clientID, galleryID string) []string {
	t.Helper()
	cur, err := e.selections.CurrentSelections(context.Background(), clientID, galleryID)
	require.NoError(t, err)
	ids := make([]string, 0, len(cur))
	for _, m := range cur {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestToggle_SelectAndUnselect(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(5))

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "crop left"))
	e.clock.Advance(time.Second)
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m2", true, ""))
	assert.Equal(t, 2, e.grantCount(t, "g1", c.ID))

	cur, err := e.selections.CurrentSelections(ctx, c.ID, "g1")
	require.NoError(t, err)
	require.Len(t, cur, 2)
	assert.Equal(t, "m1", cur[0].ID)
	assert.Equal(t, "crop left", cur[0].Comment)
	assert.Equal(t, t0, cur[0].SelectedAt)
	assert.Equal(t, "g1/m1.jpg", cur[0].StorageKey)

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", false, ""))
	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, []string{"m2"}, selectedIDs(t, e, c.ID, "g1"))

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", false, ""), "un-selecting an absent item is a no-op")
	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))
}

func TestToggle_ReselectKeepsCounterUpdatesComment(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(5))

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "first"))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "second"))

	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, 1, e.docCount(t, selections.Collection))
	cur, err := e.selections.CurrentSelections(ctx, c.ID, "g1")
	require.NoError(t, err)
	require.Len(t, cur, 1)
	assert.Equal(t, "second", cur[0].Comment)
}

func TestToggle_CapacityCheckedFirst(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2", "m3", "m4")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(3))

	for _, m := range []string{"m1", "m2", "m3"} {
		require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", m, true, ""))
	}

	err := e.selections.Toggle(ctx, c.ID, "g1", "m4", true, "")
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)
	err = e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "again")
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)

	assert.Equal(t, 3, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, 3, e.flagCount(t, c.ID, "g1"))

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m2", false, ""))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m4", true, ""))
	assert.Equal(t, []string{"m1", "m3", "m4"}, selectedIDs(t, e, c.ID, "g1"))
}

func TestToggle_Denied(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1")
	e.seedGallery(t, "g2", "Other", "x1")
	c := e.seedClient(t, "c@studio.test")

	err := e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "")
	assert.ErrorIs(t, err, common.ErrNotAuthorized)

	e.grant(t, "g1", c.ID, accessOf(models.AccessView))
	err = e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "")
	assert.ErrorIs(t, err, common.ErrNotAuthorized)

	e.grant(t, "g1", c.ID, selectAccess(5))
	err = e.selections.Toggle(ctx, c.ID, "g1", "missing", true, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	err = e.selections.Toggle(ctx, c.ID, "g1", "x1", true, "")
	assert.ErrorIs(t, err, common.ErrorNotFound, "media from another gallery")

	assert.Equal(t, 0, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, 0, e.docCount(t, selections.Collection))
}

func TestSelection_DeadlineFreezesLedger(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2")
	c := e.seedClient(t, "c@studio.test")
	deadline := t0.Add(time.Hour)
	st := models.AccessSelect
	e.grant(t, "g1", c.ID, models.GrantSettings{AccessType: &st, SelectionDeadline: &deadline})

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, ""))
	e.clock.Advance(2 * time.Hour)

	err := e.selections.Toggle(ctx, c.ID, "g1", "m2", true, "")
	assert.ErrorIs(t, err, common.ErrDeadlineExpired)
	err = e.selections.Toggle(ctx, c.ID, "g1", "m1", false, "")
	assert.ErrorIs(t, err, common.ErrDeadlineExpired)
	err = e.selections.BulkReplace(ctx, c.ID, "g1", []string{"m2"}, "")
	assert.ErrorIs(t, err, common.ErrDeadlineExpired)

	assert.Equal(t, []string{"m1"}, selectedIDs(t, e, c.ID, "g1"))
	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))
}

func TestToggle_ConcurrentKeepsCounterExact(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	media := make([]string, 10)
	for i := range media {
		media[i] = fmt.Sprintf("m%d", i)
	}
	e.seedGallery(t, "g1", "Wedding", media...)
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(4))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				m := media[(w*7+i*3)%len(media)]
				// Capacity and deadline errors are expected under contention.
				_ = e.selections.Toggle(ctx, c.ID, "g1", m, (w+i)%3 != 0, "")
			}
		}(w)
	}
	wg.Wait()

	n := e.flagCount(t, c.ID, "g1")
	assert.Equal(t, n, e.grantCount(t, "g1", c.ID))
	assert.LessOrEqual(t, n, 4)
}

func TestCurrentSelections_SkipsDeletedMedia(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(5))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, ""))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m2", true, ""))

	require.NoError(t, e.store.Delete(ctx, "media", "m1"))
	assert.Equal(t, []string{"m2"}, selectedIDs(t, e, c.ID, "g1"))
}

func TestBulkReplace(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2", "m3", "m4")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(3))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, ""))

	require.NoError(t, e.selections.BulkReplace(ctx, c.ID, "g1", []string{"m4", "m2", "m4", "m3"}, "bulk"))

	if diff := cmp.Diff([]string{"m4", "m2", "m3"}, selectedIDs(t, e, c.ID, "g1")); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, 3, e.docCount(t, selections.Collection))

	require.NoError(t, e.selections.BulkReplace(ctx, c.ID, "g1", nil, ""))
	assert.Equal(t, 0, e.grantCount(t, "g1", c.ID))
	assert.Empty(t, selectedIDs(t, e, c.ID, "g1"))
}

func TestBulkReplace_Rejections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2", "m3", "m4")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(2))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, ""))

	err := e.selections.BulkReplace(ctx, c.ID, "g1", []string{"m1", "m2", "m3", "m4"}, "")
	var capErr *common.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 2, capErr.Excess())

	err = e.selections.BulkReplace(ctx, c.ID, "g1", []string{"m2", "ghost"}, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.Equal(t, []string{"m1"}, selectedIDs(t, e, c.ID, "g1"))
	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))

	v := e.seedClient(t, "viewer@studio.test")
	e.grant(t, "g1", v.ID, accessOf(models.AccessView))
	err = e.selections.BulkReplace(ctx, v.ID, "g1", []string{"m1"}, "")
	assert.ErrorIs(t, err, common.ErrNotAuthorized)
}

func TestReconcile_RepairsDrift(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1", "m2")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(5))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "g1", "m1", true, ""))

	require.NoError(t, e.store.Update(ctx, grants.Collection, models.GrantID("g1", c.ID), map[string]any{"selectionCount": 4}))
	assert.Equal(t, 4, e.grantCount(t, "g1", c.ID))

	n, err := e.selections.Reconcile(ctx, c.ID, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.grantCount(t, "g1", c.ID))

	n, err = e.selections.Reconcile(ctx, c.ID, "g1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSelection_StoreUnavailable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "g1", "Wedding", "m1")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "g1", c.ID, selectAccess(5))

	e.store.down.Store(true)
	err := e.selections.Toggle(ctx, c.ID, "g1", "m1", true, "")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	err = e.selections.BulkReplace(ctx, c.ID, "g1", []string{"m1"}, "")
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	e.store.down.Store(false)

	assert.Equal(t, 0, e.grantCount(t, "g1", c.ID))
	assert.Equal(t, 0, e.flagCount(t, c.ID, "g1"))
}
