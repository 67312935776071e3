package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/redis/go-redis/v9"
)

// EventLocker serializes seat-changing work per event. Different events
// never contend.
type EventLocker interface {
	Lock(ctx context.Context, eventID uuid.UUID) (unlock func(), err error)
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process keyed mutex. Entries live only while a
// holder or waiter references them.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[uuid.UUID]*lockEntry)}
}

func (l *LocalLocker) acquire(id uuid.UUID) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.locks[id] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) release(id uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
}

func (l *LocalLocker) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	e := l.acquire(eventID)
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(eventID, e)
		return nil, lockWaitErr(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(eventID, e)
		})
	}, nil
}

// held reports how many events currently have a holder or waiter.
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

const (
	lockKeyPrefix     = "eventease:lock:event:"
	defaultLockTTL    = 10 * time.Second
	defaultLockWait   = 5 * time.Second
	defaultLockRetry  = 25 * time.Millisecond
	lockReleaseBudget = 2 * time.Second
)

// releaseScript deletes the key only when it still holds our token, so an
// expired holder never frees a lock that has since been taken by someone else.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

var ErrLockTimeout = errors.New("timed out waiting for event lock")

// lockWaitErr reports a caller deadline hit while waiting as a lock timeout.
// Cancellation is returned as is.
func lockWaitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", models.ErrStorageUnavailable, ErrLockTimeout, err)
	}
	return err
}

// RedisLocker is an EventLocker shared by every instance pointing at the same
// Redis. A holder that dies keeps the lock for at most ttl.
type RedisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	token  func() string
	logger *slog.Logger
}

func NewRedisLocker(client redis.Cmdable, ttl, wait time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  defaultLockRetry,
		token:  func() string { return uuid.NewString() },
		logger: logger,
	}
}

func lockKey(eventID uuid.UUID) string {
	return lockKeyPrefix + eventID.String()
}

func (l *RedisLocker) Lock(ctx context.Context, eventID uuid.UUID) (func(), error) {
	key := lockKey(eventID)
	token := l.token()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		ok, err := l.client.SetNX(waitCtx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, lockWaitErr(ctx.Err())
			}
			if waitCtx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, ErrLockTimeout)
			}
			return nil, fmt.Errorf("acquire event lock: %w: %v", models.ErrStorageUnavailable, err)
		}
		if ok {
			return l.unlockFunc(key, token), nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, lockWaitErr(ctx.Err())
			}
			return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, ErrLockTimeout)
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) unlockFunc(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), lockReleaseBudget)
			defer cancel()
			if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
				l.logger.Error("failed to release event lock", "key", key, "error", err)
			}
		})
	}
}
