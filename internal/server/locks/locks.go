// Package locks serializes work on a key. Selection mutations for one
// (client, gallery) pair and grant changes for one client run under a
// lock so read-check-write sequences against the store cannot interleave.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
)

// ErrLockTimeout is returned, wrapped in common.ErrStoreUnavailable, when a
// lock is not acquired within the configured wait.
var ErrLockTimeout = errors.New("lock wait timed out")

// Locker hands out exclusive locks by key. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

func SelectionKey(galleryID, clientID string) string {
	return "selection:" + galleryID + ":" + clientID
}

func ClientKey(clientID string) string {
	return "client:" + clientID
}

func EmailKey(email string) string {
	return "email:" + email
}

// CodeKey guards access-code allocation within one gallery.
func CodeKey(galleryID string) string {
	return "code:" + galleryID
}

func PackageKey(packageID string) string {
	return "package:" + packageID
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once no goroutine holds or waits for the key.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
	wait time.Duration
}

// NewKeyedMutex returns a KeyedMutex that gives up after wait. A zero wait
// blocks until the context ends.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{keys: map[string]*keyEntry{}, wait: wait}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &keyEntry{ch: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	var timeout <-chan time.Time
	if m.wait > 0 {
		timer := time.NewTimer(m.wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case e.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.ch
				m.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, fmt.Errorf("%w: lock %q: %w", common.ErrStoreUnavailable, key, ctx.Err())
	case <-timeout:
		m.release(key, e)
		return nil, fmt.Errorf("%w: lock %q: %w", common.ErrStoreUnavailable, key, ErrLockTimeout)
	}
}

func (m *KeyedMutex) release(key string, e *keyEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
