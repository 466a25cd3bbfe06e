package judge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker serializes work on a key across processes.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// keyedMutex serializes work on a key inside the process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (m *keyedMutex) Lock(key string) func() {
	m.mu.Lock()
	if m.locks == nil {
		m.locks = map[string]*keyLock{}
	}
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

var ErrLockTimeout = errors.New("failed to acquire provisioning lock")

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// RedisLocker is a SETNX lock with a TTL, released by compare-and-delete.
type RedisLocker struct {
	logger *zap.Logger
	client *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedisLocker(logger *zap.Logger, client *redis.Client, prefix string, ttl, retry time.Duration) *RedisLocker {
	return &RedisLocker{logger: logger, client: client, prefix: prefix, ttl: ttl, retry: retry}
}

// Lock waits until the lock is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = l.prefix + key
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ErrLockTimeout
		case <-time.After(l.retry):
		}
	}

	return func() {
		// the caller's context may be gone by now
		deleted, err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Int64()
		if err != nil {
			l.logger.Error("lock release failed", zap.String("key", key), zap.Error(err))
		} else if deleted != 1 {
			l.logger.Warn("lock expired before release", zap.String("key", key))
		}
	}, nil
}
