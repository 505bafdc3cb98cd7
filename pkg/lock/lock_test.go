package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"event-booking/pkg/apperror"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKeyed_SerialisesSameKey(t *testing.T) {
	k := NewKeyed(time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := k.WithExclusive(ctx, "ticket-1", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.Len(), "entries must be dropped once idle")
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	k := NewKeyed(50 * time.Millisecond)
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = k.WithExclusive(ctx, "ticket-a", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := k.WithExclusive(ctx, "ticket-b", func(context.Context) error { return nil })
	close(done)

	require.NoError(t, err)
}

func TestKeyed_TimeoutIsTransient(t *testing.T) {
	k := NewKeyed(20 * time.Millisecond)
	ctx := context.Background()

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = k.WithExclusive(ctx, "ticket-1", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	called := false
	err := k.WithExclusive(ctx, "ticket-1", func(context.Context) error {
		called = true
		return nil
	})
	close(done)

	require.Error(t, err)
	assert.True(t, apperror.Retryable(err))
	assert.False(t, called)
}

func TestKeyed_PropagatesCallbackError(t *testing.T) {
	k := NewKeyed(time.Second)
	boom := errors.New("boom")

	err := k.WithExclusive(context.Background(), "ticket-1", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, k.Len())
}

func TestKeyed_AcquireHoldsUntilReleased(t *testing.T) {
	k := NewKeyed(30 * time.Millisecond)
	ctx := context.Background()

	release, err := k.Acquire(ctx, "ticket-1")
	require.NoError(t, err)

	_, err = k.Acquire(ctx, "ticket-1")
	assert.True(t, apperror.IsKind(err, apperror.KindTransient))

	release()
	release()
	assert.Equal(t, 0, k.Len())

	again, err := k.Acquire(ctx, "ticket-1")
	require.NoError(t, err)
	again()
}

func TestChain_OrderAndPassThrough(t *testing.T) {
	var order []string
	mk := func(name string) Locker {
		return LockerFunc(func(ctx context.Context, key string, fn func(ctx context.Context) error) error {
			order = append(order, name+":"+key)
			return fn(ctx)
		})
	}

	err := Chain(mk("outer"), mk("inner")).WithExclusive(context.Background(), "k", func(context.Context) error {
		order = append(order, "fn")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"outer:k", "inner:k", "fn"}, order)
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "lock:ticket:", time.Second, zap.NewNop(),
		WithTTL(5*time.Second),
		WithTokenFunc(func() string { return "token-1" }),
	)

	mock.ExpectSetNX("lock:ticket:t1", "token-1", 5*time.Second).SetVal(true)
	mock.ExpectEvalSha(unlockScript.Hash(), []string{"lock:ticket:t1"}, "token-1").SetVal(int64(1))

	called := false
	err := l.WithExclusive(context.Background(), "t1", func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_BusyLockTimesOut(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "lock:ticket:", 10*time.Millisecond, zap.NewNop(),
		WithPollInterval(50*time.Millisecond),
		WithTokenFunc(func() string { return "token-2" }),
	)

	mock.ExpectSetNX("lock:ticket:t1", "token-2", defaultLockTTL).SetVal(false)

	err := l.WithExclusive(context.Background(), "t1", func(context.Context) error {
		t.Fatal("callback must not run without the lock")
		return nil
	})

	require.Error(t, err)
	assert.True(t, apperror.Retryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_BackendErrorIsNotTransient(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedis(db, "lock:ticket:", time.Second, zap.NewNop(),
		WithTokenFunc(func() string { return "token-3" }),
	)

	mock.ExpectSetNX("lock:ticket:t1", "token-3", defaultLockTTL).SetErr(errors.New("connection refused"))

	err := l.WithExclusive(context.Background(), "t1", func(context.Context) error { return nil })

	require.Error(t, err)
	assert.False(t, apperror.Retryable(err))
	assert.Contains(t, err.Error(), "connection refused")
}
