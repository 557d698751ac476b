package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a JSON cache over Redis. Postgres stays the source of truth; a
// miss or a Redis failure both read as "not cached".
type Cache struct {
	RDB            redis.Cmdable
	ViewTTL        time.Duration
	IdempotencyTTL time.Duration
}

// OrderViewKey never stores the guest token itself.
func OrderViewKey(orderNumber, guestToken string) string {
	sum := sha256.Sum256([]byte(guestToken))
	return fmt.Sprintf(KeyOrderView, orderNumber, hex.EncodeToString(sum[:]))
}

func IdempotencyKey(key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, key)
}

func (c *Cache) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	b, err := c.RDB.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, key, b, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.RDB.Del(ctx, key).Err()
}

func (c *Cache) viewTTL() time.Duration {
	if c.ViewTTL > 0 {
		return c.ViewTTL
	}
	return TTLOrderView
}

func (c *Cache) idemTTL() time.Duration {
	if c.IdempotencyTTL > 0 {
		return c.IdempotencyTTL
	}
	return TTLIdempotency
}

func (c *Cache) GetOrderView(ctx context.Context, orderNumber, guestToken string, out any) (bool, error) {
	return c.GetJSON(ctx, OrderViewKey(orderNumber, guestToken), out)
}

func (c *Cache) SetOrderView(ctx context.Context, orderNumber, guestToken string, v any) error {
	return c.SetJSON(ctx, OrderViewKey(orderNumber, guestToken), v, c.viewTTL())
}

func (c *Cache) InvalidateOrderView(ctx context.Context, orderNumber, guestToken string) error {
	return c.Delete(ctx, OrderViewKey(orderNumber, guestToken))
}

func (c *Cache) GetIdempotent(ctx context.Context, key string, out any) (bool, error) {
	return c.GetJSON(ctx, IdempotencyKey(key), out)
}

func (c *Cache) SetIdempotent(ctx context.Context, key string, v any) error {
	return c.SetJSON(ctx, IdempotencyKey(key), v, c.idemTTL())
}
