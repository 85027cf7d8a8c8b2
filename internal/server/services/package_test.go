package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readyPackage seeds gallery G with m1..m3 and client C holding a cap of 2
// with m1 and m2 selected.
func readyPackage(t *testing.T, e *testEnv) *models.Client {
	t.Helper()
	ctx := context.Background()
	e.seedGallery(t, "G", "Summer Wedding", "m1", "m2", "m3")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "G", c.ID, selectAccess(2))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "G", "m1", true, ""))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "G", "m2", true, ""))
	return c
}

func TestPackage_ScenarioSelectReviewDeliver(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	err := e.selections.Toggle(ctx, c.ID, "G", "m3", true, "")
	assert.ErrorIs(t, err, common.ErrCapacityExceeded)

	pkg, err := e.packages.Create(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, pkg.SelectionIDs)
	assert.Equal(t, models.StatusDraft, pkg.Status)

	pkg, err = e.packages.Transition(ctx, pkg.ID, models.StatusSubmitted, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, pkg.Status)
	assert.Empty(t, e.sink.messages())

	pkg, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "looks great")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, pkg.Status)
	msgs := e.sink.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "c@studio.test", msgs[0].To)
	assert.Contains(t, msgs[0].Subject, "approved")
	assert.Contains(t, msgs[0].Body, "Summer Wedding")

	links, err := e.packages.GenerateDownloadLinks(ctx, pkg.ID, 48)
	require.NoError(t, err)
	require.Len(t, links, 2)
	for i, id := range []string{"m1", "m2"} {
		assert.Equal(t, id, links[i].ItemID)
		assert.Equal(t, t0.Add(48*time.Hour), links[i].ExpiresAt)
		assert.Contains(t, links[i].URL, "G/"+id+".jpg")
	}
	assert.Equal(t, 48*time.Hour, e.signer.ttl)

	stored, err := e.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, stored.Status)
	assert.Equal(t, "looks great", stored.Comments)
	require.NotNil(t, stored.DeliveredAt)
	assert.Len(t, e.sink.messages(), 2)

	m1, err := e.repos.Media().Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), m1.DownloadCount)
}

func TestPackage_SnapshotIsImmutable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	pkg, err := e.packages.Create(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "G", "m1", false, ""))
	require.NoError(t, e.selections.Toggle(ctx, c.ID, "G", "m3", true, ""))

	stored, err := e.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, stored.SelectionIDs)

	second, err := e.packages.Create(ctx, "G", c.ID, "Selection 2", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"m2", "m3"}, second.SelectionIDs)
}

func TestPackage_TransitionsMoveForwardOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "please rush")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, pkg.Status)
	require.NotNil(t, pkg.SubmittedAt)
	assert.Equal(t, t0, *pkg.SubmittedAt)
	assert.Equal(t, "please rush", pkg.Comments)

	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusDraft, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusDelivered, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition)
	_, err = e.packages.Transition(ctx, pkg.ID, "archived", "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)

	e.clock.Advance(time.Hour)
	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	e.clock.Advance(time.Hour)
	again, err := e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "ignored")
	require.NoError(t, err, "same status is a no-op")
	assert.Equal(t, t0.Add(time.Hour), *again.ApprovedAt)
	assert.Equal(t, "please rush", again.Comments)
	assert.Len(t, e.sink.messages(), 1)

	_, err = e.packages.Transition(ctx, "ghost", models.StatusApproved, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPackage_RejectsBackwardAndSkippedTransitions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	draft, err := e.packages.Create(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, draft.Status)

	_, err = e.packages.Transition(ctx, draft.ID, models.StatusDelivered, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "draft -> delivered skips states")

	_, err = e.packages.Transition(ctx, draft.ID, models.StatusSubmitted, "")
	require.NoError(t, err)
	approved, err := e.packages.Transition(ctx, draft.ID, models.StatusApproved, "")
	require.NoError(t, err)

	_, err = e.packages.Transition(ctx, draft.ID, models.StatusSubmitted, "")
	assert.ErrorIs(t, err, common.ErrInvalidTransition, "approved -> submitted goes backward")

	stored, err := e.packages.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Equal(t, approved.SubmittedAt, stored.SubmittedAt)
	assert.Nil(t, stored.DeliveredAt)
}

func TestPackage_CreateRejections(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedGallery(t, "G", "Wedding", "m1")
	c := e.seedClient(t, "c@studio.test")
	e.grant(t, "G", c.ID, selectAccess(2))

	_, err := e.packages.Create(ctx, "G", c.ID, "Selection 1", "")
	assert.ErrorIs(t, err, common.ErrEmptySelection)
	_, err = e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	assert.ErrorIs(t, err, common.ErrEmptySelection)

	require.NoError(t, e.selections.Toggle(ctx, c.ID, "G", "m1", true, ""))
	_, err = e.packages.Create(ctx, "G", c.ID, "  ", "")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestPackage_NotificationFailureIsSwallowed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)
	e.sink.err = errors.New("smtp down")

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	pkg, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, pkg.Status)
	assert.Len(t, e.sink.messages(), 1)
}

func TestGenerateDownloadLinks_RequiresApproval(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)

	_, err = e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	assert.ErrorIs(t, err, common.ErrPackageNotApproved)
	_, err = e.packages.GenerateDownloadLinks(ctx, pkg.ID, 0)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
	_, err = e.packages.GenerateDownloadLinks(ctx, "ghost", 24)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, e.signer.signed)
}

func TestGenerateDownloadLinks_SkipsFailedItems(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)
	e.signer.fail["G/m1.jpg"] = true

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "")
	require.NoError(t, err)

	links, err := e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "m2", links[0].ItemID)

	m1, err := e.repos.Media().Get(ctx, "m1")
	require.NoError(t, err)
	assert.Zero(t, m1.DownloadCount)
}

func TestGenerateDownloadLinks_AllItemsFailedKeepsApproved(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)
	e.signer.fail["G/m1.jpg"] = true
	e.signer.fail["G/m2.jpg"] = true

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "")
	require.NoError(t, err)

	links, err := e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Empty(t, links)

	stored, err := e.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, stored.Status)
	assert.Nil(t, stored.DeliveredAt)
	assert.Len(t, e.sink.messages(), 1, "only the approval notice is sent")

	// signing recovers, the retry delivers
	delete(e.signer.fail, "G/m1.jpg")
	delete(e.signer.fail, "G/m2.jpg")
	links, err = e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	require.NoError(t, err)
	assert.Len(t, links, 2)
}

func TestGenerateDownloadLinks_DeliveredIsRepeatable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	pkg, err := e.packages.Submit(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	_, err = e.packages.Transition(ctx, pkg.ID, models.StatusApproved, "")
	require.NoError(t, err)

	_, err = e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	require.NoError(t, err)
	first, err := e.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	links, err := e.packages.GenerateDownloadLinks(ctx, pkg.ID, 24)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	second, err := e.packages.Get(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.DeliveredAt, *second.DeliveredAt)
	assert.Len(t, e.sink.messages(), 2, "approved and delivered notify once each")

	m2, err := e.repos.Media().Get(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m2.DownloadCount)
}

func TestPackage_Listing(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c := readyPackage(t, e)

	p1, err := e.packages.Create(ctx, "G", c.ID, "Selection 1", "")
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	p2, err := e.packages.Create(ctx, "G", c.ID, "Selection 2", "")
	require.NoError(t, err)

	byClient, err := e.packages.ListByClient(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, byClient, 2)
	assert.Equal(t, p2.ID, byClient[0].ID)
	assert.Equal(t, p1.ID, byClient[1].ID)

	byGallery, err := e.packages.ListByGallery(ctx, "G")
	require.NoError(t, err)
	assert.Len(t, byGallery, 2)
}
