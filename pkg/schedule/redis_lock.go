package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisLockPrefix = "schedule_lock:"

// Deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLockProvider implements LockProvider using Redis SET NX
type RedisLockProvider struct {
	client redis.UniversalClient

	mu     sync.Mutex
	tokens map[string]string
}

func NewRedisLockProvider(client redis.UniversalClient) *RedisLockProvider {
	return &RedisLockProvider{client: client, tokens: make(map[string]string)}
}

func (r *RedisLockProvider) GetLock(ctx context.Context, name string, duration time.Duration) (bool, error) {
	token := uuid.NewString()
	success, err := r.client.SetNX(ctx, redisLockPrefix+name, token, duration).Result()
	if err != nil {
		return false, err
	}
	if success {
		r.mu.Lock()
		r.tokens[name] = token
		r.mu.Unlock()
	}
	return success, nil
}

// ReleaseLock leaves locks that expired and were taken by someone else alone.
func (r *RedisLockProvider) ReleaseLock(ctx context.Context, name string) error {
	r.mu.Lock()
	token, ok := r.tokens[name]
	delete(r.tokens, name)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return releaseScript.Run(ctx, r.client, []string{redisLockPrefix + name}, token).Err()
}
