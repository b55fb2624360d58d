package ledger

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// Dedup remembers which events were already mirrored.
type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type RedisDedup struct {
	Redis   *redis.Client
	Service string
}

func (d *RedisDedup) key(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, d.Service, eventID)
}

func (d *RedisDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return redisx.Exists(ctx, d.Redis, d.key(eventID))
}

func (d *RedisDedup) Mark(ctx context.Context, eventID string) error {
	return d.Redis.Set(ctx, d.key(eventID), "1", redisx.TTLDedup).Err()
}
