package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/galleryselect/internal/common"
	"github.com/dmitrijs2005/galleryselect/internal/logging"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client the lease lock needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// releaseScript deletes the lease only if it still carries our token, so an
// expired lease taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// renewScript extends the lease only while it still carries our token.
var renewScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// RedisLocker is a Locker shared by every server instance. Locks are leases
// (SET NX PX) that expire after ttl if the holder dies. While held, a lease
// is extended every ttl/3 until unlock.
type RedisLocker struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	log    logging.Logger
}

func NewRedisLocker(client RedisClient, ttl, wait time.Duration, log logging.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "galleryselect:lock:",
		ttl:    ttl,
		wait:   wait,
		retry:  10 * time.Millisecond,
		log:    log.With("module", "redis_locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("lock token: %w", err)
	}
	leaseKey := l.prefix + key

	var deadline <-chan time.Time
	if l.wait > 0 {
		timer := time.NewTimer(l.wait)
		defer timer.Stop()
		deadline = timer.C
	}

	backoff := l.retry
	for {
		ok, err := l.client.SetNX(ctx, leaseKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: lock %q: %v", common.ErrStoreUnavailable, key, err)
		}
		if ok {
			return l.hold(leaseKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: lock %q: %w", common.ErrStoreUnavailable, key, ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("%w: lock %q: %w", common.ErrStoreUnavailable, key, ErrLockTimeout)
		case <-time.After(backoff):
		}
		if backoff < 100*time.Millisecond {
			backoff *= 2
		}
	}
}

// hold keeps the lease alive and returns the unlock func.
func (l *RedisLocker) hold(leaseKey, token string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(leaseKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(leaseKey, token)
		})
	}
}

func (l *RedisLocker) renew(leaseKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := l.ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(ctx, l.client, []string{leaseKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			l.log.Warn(ctx, "lease renewal failed", "key", leaseKey, "error", err)
		case n == 0:
			l.log.Error(ctx, "lease lost before unlock", "key", leaseKey)
			return
		}
	}
}

func (l *RedisLocker) release(leaseKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{leaseKey}, token).Err(); err != nil {
		l.log.Warn(ctx, "lease release failed", "key", leaseKey, "error", err)
	}
}

// NewRedisClient connects to addr and pings it with a short timeout.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
