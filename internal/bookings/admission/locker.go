package admission

import (
	"agenda/internal/bookings/repository"
	mongotx "agenda/pkg/db/mongo"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("admission lock not acquired")

// Locker guards a critical section across service instances.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// LockOptions bound how long a holder keeps a lock and how long a waiter polls.
type LockOptions struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxWait       time.Duration
}

// acquire polls try until it succeeds, fails hard, or MaxWait elapses.
func acquire(ctx context.Context, opts LockOptions, try func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(opts.MaxWait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockNotAcquired
		}

		wait := time.NewTimer(opts.RetryInterval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// releaseContext detaches from the caller so a cancelled request still frees its lock.
func releaseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

type mongoLocker struct {
	repo repository.AdmissionLockRepository
	opts LockOptions
	log  *logger.Logger
}

func NewMongoLocker(repo repository.AdmissionLockRepository, opts LockOptions, log *logger.Logger) Locker {
	return &mongoLocker{repo: repo, opts: opts, log: log.Component("admission")}
}

func (l *mongoLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	owner := uuid.NewString()

	err := acquire(ctx, l.opts, func(ctx context.Context) (bool, error) {
		now := time.Now().UTC()
		lock := &model.AdmissionLock{ID: key, Owner: owner, ExpiresAt: now.Add(l.opts.TTL)}
		err := l.repo.Create(ctx, lock)
		if err == nil {
			return true, nil
		}
		if !mongotx.IsDuplicateKey(err) {
			return false, fmt.Errorf("acquire admission lock: %w", err)
		}
		// The TTL monitor runs about once a minute; clear an overrun lease ourselves.
		if err := l.repo.DeleteExpired(ctx, key, now); err != nil {
			l.log.Warn("Failed to clear expired admission lock", "key", key, "error", err)
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	defer func() {
		rctx, cancel := releaseContext(ctx)
		defer cancel()
		if err := l.repo.Delete(rctx, key, owner); err != nil {
			l.log.Warn("Failed to release admission lock", "key", key, "error", err)
		}
	}()

	fnCtx, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()
	return fn(fnCtx)
}

type redisLocker struct {
	client *redis.Client
	opts   LockOptions
	log    *logger.Logger
}

func NewRedisLocker(client *redis.Client, opts LockOptions, log *logger.Logger) Locker {
	return &redisLocker{client: client, opts: opts, log: log.Component("admission")}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	redisKey := "agenda:lock:" + key
	token := uuid.NewString()

	err := acquire(ctx, l.opts, func(ctx context.Context) (bool, error) {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.opts.TTL).Result()
		if err != nil {
			return false, fmt.Errorf("acquire admission lock: %w", err)
		}
		return ok, nil
	})
	if err != nil {
		return err
	}

	defer func() {
		rctx, cancel := releaseContext(ctx)
		defer cancel()
		_, err := unlockScript.Run(rctx, l.client, []string{redisKey}, token).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			l.log.Warn("Failed to release admission lock", "key", key, "error", err)
		}
	}()

	fnCtx, cancel := context.WithTimeout(ctx, l.opts.TTL)
	defer cancel()
	return fn(fnCtx)
}

// LocalLocker is a no-op Locker for single-instance deployments and tests; the
// Gate alone serializes admission within one process.
type LocalLocker struct{}

func (LocalLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
