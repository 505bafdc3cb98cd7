package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"event-booking/pkg/apperror"
)

// Keyed is an in-process lock table. Entries are reference counted and
// dropped once nobody holds or waits on them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
	timeout time.Duration
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyed(timeout time.Duration) *Keyed {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Keyed{
		entries: make(map[string]*keyedEntry),
		timeout: timeout,
	}
}

func (k *Keyed) WithExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	release, err := k.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx)
}

// Acquire takes key and returns the func that gives it back. It is for
// holders whose critical section outlives one call, such as row locks kept
// until a unit of work ends. Calling release more than once is safe.
func (k *Keyed) Acquire(ctx context.Context, key string) (func(), error) {
	e := k.acquireRef(key)

	timer := time.NewTimer(k.timeout)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
	case <-timer.C:
		k.releaseRef(key, e)
		return nil, apperror.Transient(fmt.Sprintf("lock wait for %s exceeded %s", key, k.timeout), nil)
	case <-ctx.Done():
		k.releaseRef(key, e)
		return nil, apperror.Transient(fmt.Sprintf("lock wait for %s cancelled", key), ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.releaseRef(key, e)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed) acquireRef(key string) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Keyed) releaseRef(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}
