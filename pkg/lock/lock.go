// Package lock provides per-key mutual exclusion with a bounded wait.
//
// A Locker never serialises two different keys against each other. A wait
// that exceeds the configured timeout fails with an apperror Transient error
// so callers can tell "try again" apart from business rejections.
package lock

import (
	"context"
	"time"
)

const DefaultTimeout = 3 * time.Second

type Locker interface {
	WithExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LockerFunc adapts a function to Locker.
type LockerFunc func(ctx context.Context, key string, fn func(ctx context.Context) error) error

func (f LockerFunc) WithExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	return f(ctx, key, fn)
}

// Chain nests lockers: the first is acquired outermost. Used to put a
// distributed lock in front of a storage row lock.
func Chain(lockers ...Locker) Locker {
	return LockerFunc(func(ctx context.Context, key string, fn func(ctx context.Context) error) error {
		return chain(ctx, lockers, key, fn)
	})
}

func chain(ctx context.Context, lockers []Locker, key string, fn func(ctx context.Context) error) error {
	if len(lockers) == 0 {
		return fn(ctx)
	}
	return lockers[0].WithExclusive(ctx, key, func(ctx context.Context) error {
		return chain(ctx, lockers[1:], key, fn)
	})
}
