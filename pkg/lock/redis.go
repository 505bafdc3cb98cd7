package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"event-booking/pkg/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLockTTL      = 10 * time.Second
	defaultPollInterval = 25 * time.Millisecond
)

// unlockScript deletes the key only when it still holds our token, so an
// expired holder never releases a lock somebody else has since taken.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a distributed per-key lock (SET NX PX + token-checked release).
type Redis struct {
	client  redis.Cmdable
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	poll    time.Duration
	token   func() string
	log     *zap.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithPollInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.poll = d
		}
	}
}

func WithTokenFunc(fn func() string) RedisOption {
	return func(r *Redis) {
		if fn != nil {
			r.token = fn
		}
	}
}

func NewRedis(client redis.Cmdable, prefix string, timeout time.Duration, log *zap.Logger, opts ...RedisOption) *Redis {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Redis{
		client:  client,
		prefix:  prefix,
		ttl:     defaultLockTTL,
		timeout: timeout,
		poll:    defaultPollInterval,
		token:   uuid.NewString,
		log:     log.With(zap.String("lock", "redis")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) WithExclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := r.prefix + key
	token := r.token()

	if err := r.acquire(ctx, redisKey, token); err != nil {
		return err
	}
	defer func() {
		// release on a fresh context so a cancelled request still unlocks
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := unlockScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
			r.log.Error("Failed to release lock", zap.String("key", redisKey), zap.Error(err))
		}
	}()

	return fn(ctx)
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(r.timeout)
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return apperror.Transient(fmt.Sprintf("lock wait for %s cancelled", key), err)
			}
			return fmt.Errorf("acquire redis lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		if time.Now().Add(r.poll).After(deadline) {
			return apperror.Transient(fmt.Sprintf("lock wait for %s exceeded %s", key, r.timeout), nil)
		}

		select {
		case <-time.After(r.poll):
		case <-ctx.Done():
			return apperror.Transient(fmt.Sprintf("lock wait for %s cancelled", key), ctx.Err())
		}
	}
}
