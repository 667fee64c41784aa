package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when a lock cannot be obtained before the
// caller's context expires.
var ErrNotAcquired = errors.New("lock: not acquired")

// ConversationLocker serialises sendMessage calls against the same
// conversation id. A successful Acquire returns the release func.
type ConversationLocker interface {
	Acquire(ctx context.Context, conversationID string) (func(), error)
}

// LocalLocker is a keyed in-process mutex, used when no Redis address is
// configured. It only protects against races within a single process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*localEntry)}
}

func (l *LocalLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[conversationID]
	if !ok {
		entry = &localEntry{}
		l.locks[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine above will still take the mutex eventually; hand it
		// straight back so the refcount stays balanced.
		go func() {
			<-acquired
			l.release(conversationID, entry)
		}()
		return nil, fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.release(conversationID, entry)
		})
	}, nil
}

func (l *LocalLocker) release(conversationID string, entry *localEntry) {
	entry.mu.Unlock()

	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, conversationID)
	}
	l.mu.Unlock()
}

const (
	redisLockPrefix   = "chathub:conv_lock:"
	redisLockTTL      = 30 * time.Second
	redisRetryBackoff = 50 * time.Millisecond
)

// releaseScript deletes the lock key only when still held by this owner.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements the lock as a Redis SET NX key with a TTL so a
// crashed holder cannot wedge a conversation forever.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// NewRedisClient dials Redis and verifies connectivity.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("lock: redis address is empty")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("lock: ping redis: %w", err)
	}

	return client, nil
}

func (r *RedisLocker) Acquire(ctx context.Context, conversationID string) (func(), error) {
	key := redisLockPrefix + conversationID
	owner := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, owner, redisLockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", conversationID, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrNotAcquired, ctx.Err())
		case <-time.After(redisRetryBackoff):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, r.client, []string{key}, owner).Err()
		})
	}, nil
}
