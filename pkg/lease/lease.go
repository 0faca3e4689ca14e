// Package lease provides a Redis-backed mutual-exclusion lease so that only
// one replica runs a periodic job at a time.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Locker struct {
	client *redis.Client
	prefix string
	owner  string
}

// New connects to redisURL and verifies the connection.
func New(redisURL string) (*Locker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient builds a Locker on an existing client. Each Locker has its own owner id.
func NewWithClient(client *redis.Client) *Locker {
	return &Locker{
		client: client,
		prefix: "lease:",
		owner:  uuid.New().String(),
	}
}

// TryAcquire takes the lease for ttl. It returns false if another owner holds it.
// Re-acquiring a lease this Locker already holds extends it.
func (l *Locker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	if ok {
		return true, nil
	}

	holder, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read lease %s: %w", name, err)
	}
	if holder != l.owner {
		return false, nil
	}
	if err := l.client.PExpire(ctx, key, ttl).Err(); err != nil {
		return false, fmt.Errorf("extend lease %s: %w", name, err)
	}
	return true, nil
}

// Release gives the lease up if this Locker holds it.
func (l *Locker) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	return nil
}

func (l *Locker) Close() error {
	return l.client.Close()
}
