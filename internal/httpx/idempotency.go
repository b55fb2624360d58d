package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

type ClaimState int

const (
	ClaimAcquired ClaimState = iota
	ClaimInFlight
	ClaimDone
	// ClaimMismatch means the key was first used for a different request.
	ClaimMismatch
)

// IdempotencyStore guards POST /orders/bulk against client retries. A key is
// bound to the fingerprint of the request that first used it.
type IdempotencyStore interface {
	// Claim either reserves key for a new checkout, reports that another
	// request holds it, returns the group id of the finished checkout, or
	// reports that key belongs to a different request.
	Claim(ctx context.Context, key, fingerprint string) (ClaimState, string, error)
	Complete(ctx context.Context, key, fingerprint, groupID string) error
	Release(ctx context.Context, key string) error
}

type idemRecord struct {
	Fingerprint string `json:"fp"`
	GroupID     string `json:"group,omitempty"`
}

// RedisIdempotency stores an idemRecord per key. PendingTTL bounds an
// in-flight claim and must outlive the checkout timeout.
type RedisIdempotency struct {
	Redis      *redis.Client
	PendingTTL time.Duration
}

func (s *RedisIdempotency) Claim(ctx context.Context, key, fingerprint string) (ClaimState, string, error) {
	k := fmt.Sprintf(redisx.KeyIdemCheckout, key)
	pending, _ := json.Marshal(idemRecord{Fingerprint: fingerprint})
	for i := 0; i < 3; i++ {
		ok, err := s.Redis.SetNX(ctx, k, pending, s.pendingTTL()).Result()
		if err != nil {
			return ClaimAcquired, "", err
		}
		if ok {
			return ClaimAcquired, "", nil
		}
		v, found, err := redisx.Get(ctx, s.Redis, k)
		if err != nil {
			return ClaimAcquired, "", err
		}
		if !found {
			// expired between SETNX and GET
			continue
		}
		var rec idemRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return ClaimAcquired, "", fmt.Errorf("decode idempotency record %s: %w", key, err)
		}
		return classifyClaim(rec, fingerprint)
	}
	return ClaimAcquired, "", fmt.Errorf("idempotency key %s kept expiring", key)
}

func classifyClaim(rec idemRecord, fingerprint string) (ClaimState, string, error) {
	switch {
	case rec.Fingerprint != fingerprint:
		return ClaimMismatch, "", nil
	case rec.GroupID == "":
		return ClaimInFlight, "", nil
	default:
		return ClaimDone, rec.GroupID, nil
	}
}

func (s *RedisIdempotency) Complete(ctx context.Context, key, fingerprint, groupID string) error {
	b, _ := json.Marshal(idemRecord{Fingerprint: fingerprint, GroupID: groupID})
	return s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, key), b, redisx.TTLIdempotency).Err()
}

func (s *RedisIdempotency) Release(ctx context.Context, key string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, key)).Err()
}

func (s *RedisIdempotency) pendingTTL() time.Duration {
	if s.PendingTTL > 0 {
		return s.PendingTTL
	}
	return redisx.IdemPendingTTL(defaultCheckoutTimeout)
}

// StatusCache is a read-through cache in front of order status lookups.
type StatusCache interface {
	Get(ctx context.Context, orderID string) (orders.Status, bool)
	Set(ctx context.Context, orderID string, s orders.Status)
	Invalidate(ctx context.Context, orderID string)
}

type RedisStatusCache struct {
	Redis *redis.Client
}

type cachedStatus struct {
	Status orders.Status `json:"status"`
}

func (c *RedisStatusCache) Get(ctx context.Context, orderID string) (orders.Status, bool) {
	s, ok, err := redisx.Get(ctx, c.Redis, fmt.Sprintf(redisx.KeyOrderStatus, orderID))
	if err != nil || !ok {
		return "", false
	}
	var v cachedStatus
	if json.Unmarshal([]byte(s), &v) != nil || v.Status == "" {
		return "", false
	}
	return v.Status, true
}

func (c *RedisStatusCache) Set(ctx context.Context, orderID string, s orders.Status) {
	b, _ := json.Marshal(cachedStatus{Status: s})
	_ = c.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID), b, redisx.TTLStatusCache).Err()
}

func (c *RedisStatusCache) Invalidate(ctx context.Context, orderID string) {
	_ = c.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
