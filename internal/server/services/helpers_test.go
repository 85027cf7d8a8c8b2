package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/dmitrijs2005/galleryselect/internal/server/docstore"
	"github.com/dmitrijs2005/galleryselect/internal/server/locks"
	"github.com/dmitrijs2005/galleryselect/internal/server/models"
	"github.com/dmitrijs2005/galleryselect/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// flakyStore fails every call with ErrStoreUnavailable while down is set.
// batchDelay stalls each batch to widen read-then-write windows.
type flakyStore struct {
	docstore.Store
	down       atomic.Bool
	batchDelay atomic.Int64
}

func (f *flakyStore) unavailable() error {
	return fmt.Errorf("%w: injected outage", common.ErrStoreUnavailable)
}

func (f *flakyStore) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if f.down.Load() {
		return nil, f.unavailable()
	}
	return f.Store.Get(ctx, collection, id)
}

func (f *flakyStore) Query(ctx context.Context, collection string, filters []docstore.Filter, orderBy *docstore.OrderBy) ([]*docstore.Document, error) {
	if f.down.Load() {
		return nil, f.unavailable()
	}
	return f.Store.Query(ctx, collection, filters, orderBy)
}

func (f *flakyStore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if f.down.Load() {
		return f.unavailable()
	}
	return f.Store.Set(ctx, collection, id, fields)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if f.down.Load() {
		return f.unavailable()
	}
	return f.Store.Update(ctx, collection, id, fields)
}

func (f *flakyStore) Delete(ctx context.Context, collection, id string) error {
	if f.down.Load() {
		return f.unavailable()
	}
	return f.Store.Delete(ctx, collection, id)
}

func (f *flakyStore) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if f.down.Load() {
		return f.unavailable()
	}
	return f.Store.Increment(ctx, collection, id, field, delta)
}

func (f *flakyStore) RunAtomicBatch(ctx context.Context, ops []docstore.Op) error {
	if f.down.Load() {
		return f.unavailable()
	}
	if d := f.batchDelay.Load(); d > 0 {
		time.Sleep(time.Duration(d))
	}
	return f.Store.RunAtomicBatch(ctx, ops)
}

type fakeSigner struct {
	mu     sync.Mutex
	fail   map[string]bool
	signed []string
	ttl    time.Duration
}

func (f *fakeSigner) SignURL(_ context.Context, ref string, expiration time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[ref] {
		return "", errors.New("signing backend refused " + ref)
	}
	f.signed = append(f.signed, ref)
	f.ttl = expiration
	return "https://cdn.test/" + ref + "?ttl=" + expiration.String(), nil
}

type sentMessage struct {
	To, Subject, Body string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (r *recordingSink) Send(_ context.Context, address, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{To: address, Subject: subject, Body: body})
	return r.err
}

func (r *recordingSink) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage{}, r.sent...)
}

type testEnv struct {
	store      *flakyStore
	repos      *repomanager.DocumentRepositoryManager
	clock      *fakeClock
	signer     *fakeSigner
	sink       *recordingSink
	clients    *ClientService
	access     *AccessService
	selections *SelectionService
	packages   *PackageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &flakyStore{Store: docstore.NewMemoryStore()}
	repos := repomanager.NewDocumentRepositoryManager(store)
	locker := locks.NewKeyedMutex(5 * time.Second)
	log := logging.Nop{}
	clock := &fakeClock{t: t0}

	e := &testEnv{
		store:  store,
		repos:  repos,
		clock:  clock,
		signer: &fakeSigner{fail: map[string]bool{}},
		sink:   &recordingSink{},
	}
	e.clients = NewClientService(repos, locker, log)
	e.clients.now = clock.Now
	e.access = NewAccessService(repos, locker, log)
	e.access.now = clock.Now
	e.selections = NewSelectionService(repos, e.access, locker, log)
	e.selections.now = clock.Now
	e.packages = NewPackageService(repos, e.selections, e.signer, e.sink, locker, log)
	e.packages.now = clock.Now
	return e
}

func (e *testEnv) seedGallery(t *testing.T, galleryID, name string, mediaIDs ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.repos.Media().SaveGallery(ctx, &models.Gallery{ID: galleryID, Name: name}))
	for _, id := range mediaIDs {
		require.NoError(t, e.repos.Media().Save(ctx, &models.Media{ID: id, GalleryID: galleryID, StorageKey: galleryID + "/" + id + ".jpg"}))
	}
}

func (e *testEnv) seedClient(t *testing.T, email string) *models.Client {
	t.Helper()
	c, err := e.clients.CreateOrGetByEmail(context.Background(), email, "Client "+email, "")
	require.NoError(t, err)
	return c
}

func (e *testEnv) grant(t *testing.T, galleryID, clientID string, settings models.GrantSettings) *models.AccessGrant {
	t.Helper()
	ctx := context.Background()
	_, err := e.access.Grant(ctx, galleryID, clientID, settings)
	require.NoError(t, err)
	g, err := e.access.Get(ctx, galleryID, clientID)
	require.NoError(t, err)
	return g
}

func (e *testEnv) grantCount(t *testing.T, galleryID, clientID string) int {
	t.Helper()
	g, err := e.access.Get(context.Background(), galleryID, clientID)
	require.NoError(t, err)
	return g.SelectionCount
}

func (e *testEnv) flagCount(t *testing.T, clientID, galleryID string) int {
	t.Helper()
	n, err := e.selections.Count(context.Background(), clientID, galleryID)
	require.NoError(t, err)
	return n
}

func (e *testEnv) docCount(t *testing.T, collection string) int {
	t.Helper()
	docs, err := e.store.Query(context.Background(), collection, nil, nil)
	require.NoError(t, err)
	return len(docs)
}

func selectAccess(max int) models.GrantSettings {
	st := models.AccessSelect
	return models.GrantSettings{AccessType: &st, MaxSelections: &max}
}

func accessOf(t models.AccessType) models.GrantSettings {
	return models.GrantSettings{AccessType: &t}
}
