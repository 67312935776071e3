package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventease/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerSerializesSameEvent(t *testing.T) {
	locker := NewLocalLocker()
	id := uuid.New()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, locker.held())
}

func TestLocalLockerIndependentEvents(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, uuid.New())
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, uuid.New())
	require.NoError(t, err)
	unlockB()
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	id := uuid.New()

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	_, err = locker.Lock(cancelled, id)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, models.ErrStorageUnavailable)

	unlock()
	unlock()
	assert.Zero(t, locker.held())
}

func newTestRedisLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	locker := NewRedisLocker(db, 5*time.Second, time.Second, testLogger())
	locker.retry = time.Millisecond
	locker.token = func() string { return "token-1" }
	return locker, mock
}

func TestRedisLockerAcquireAndRelease(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	id := uuid.New()
	key := lockKey(id)

	mock.ExpectSetNX(key, "token-1", 5*time.Second).SetVal(false)
	mock.ExpectSetNX(key, "token-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{key}, "token-1").SetVal(int64(1))

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerConnectionFailure(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	id := uuid.New()

	mock.ExpectSetNX(lockKey(id), "token-1", 5*time.Second).SetErr(errors.New("dial tcp: connection refused"))

	_, err := locker.Lock(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerWaitBudget(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	locker.wait = 30 * time.Millisecond
	locker.retry = time.Hour
	id := uuid.New()

	mock.ExpectSetNX(lockKey(id), "token-1", 5*time.Second).SetVal(false)

	_, err := locker.Lock(context.Background(), id)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerCallerDeadline(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	locker.retry = time.Hour
	id := uuid.New()

	mock.ExpectSetNX(lockKey(id), "token-1", 5*time.Second).SetVal(false)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := locker.Lock(ctx, id)
	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.ErrorIs(t, err, models.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLockerReleaseFailureIsLogged(t *testing.T) {
	locker, mock := newTestRedisLocker(t)
	id := uuid.New()
	key := lockKey(id)

	mock.ExpectSetNX(key, "token-1", 5*time.Second).SetVal(true)
	mock.ExpectEval(releaseScript, []string{key}, "token-1").SetErr(errors.New("connection reset"))

	unlock, err := locker.Lock(context.Background(), id)
	require.NoError(t, err)
	assert.NotPanics(t, unlock)
	assert.NoError(t, mock.ExpectationsWereMet())
}
