package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// releaseScript deletes the key only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a best-effort mutual exclusion across replicas: SET NX with a TTL so a crashed
// holder cannot keep it forever.
type RedisLock struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

func NewRedisLock(client *redis.Client, key, owner string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, owner: owner, ttl: ttl}
}

// TryLock reports whether the lock was acquired. It never blocks.
func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err()
}
