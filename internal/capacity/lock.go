package capacity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"match-ticketing/utils"
)

// MatchLocker serializes the capacity-check-and-issue critical section per
// match. Two purchases racing for the last seat must run the section one
// after the other.
type MatchLocker interface {
	// Lock blocks until the per-match lock is held or ctx is done. The
	// returned function releases the lock.
	Lock(ctx context.Context, matchID string) (unlock func(), err error)
}

const (
	lockTTL        = 5 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired by another node is never released
// by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements MatchLocker on a shared Redis, for multi-node
// deployments. Key schema follows lock:match:{id}.
type RedisLocker struct {
	redis *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{redis: client}
}

func (l *RedisLocker) Lock(ctx context.Context, matchID string) (func(), error) {
	key := fmt.Sprintf("lock:match:%s", matchID)
	token, err := utils.GenerateCode(8)
	if err != nil {
		return nil, err
	}

	for {
		ok, err := l.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("capacity: acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return func() {
		releaseScript.Run(context.Background(), l.redis, []string{key}, token)
	}, nil
}

// LocalLocker implements MatchLocker with per-match in-process mutexes, for
// single-node deployments and tests.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Lock(_ context.Context, matchID string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[matchID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[matchID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
