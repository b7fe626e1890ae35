package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

// Client keeps checkout idempotency records and per-customer checkout locks.
// Stock never lives here; the database is the only source of truth for it.
type Client struct {
	rdb         *redis.Client
	releaseLock *redis.Script
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return New(rdb), nil
}

// New wraps an existing connection
func New(rdb *redis.Client) *Client {
	return &Client{
		rdb:         rdb,
		releaseLock: redis.NewScript(releaseLockScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func checkoutLockKey(customerID int64) string {
	return fmt.Sprintf("lock:checkout:%d", customerID)
}

func checkoutIdempotencyKey(customerID int64, key string) string {
	return fmt.Sprintf("idempotency:checkout:%d:%s", customerID, key)
}

// AcquireCheckoutLock takes the customer's checkout lock. The returned token
// must be passed to ReleaseCheckoutLock; ok is false when another checkout
// holds the lock.
func (c *Client) AcquireCheckoutLock(ctx context.Context, customerID int64, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, checkoutLockKey(customerID), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	return token, ok, nil
}

// ReleaseCheckoutLock deletes the lock only if token still owns it
func (c *Client) ReleaseCheckoutLock(ctx context.Context, customerID int64, token string) error {
	if err := c.releaseLock.Run(ctx, c.rdb, []string{checkoutLockKey(customerID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release checkout lock: %w", err)
	}
	return nil
}

// RememberCheckout records the order produced for an idempotency key
func (c *Client) RememberCheckout(ctx context.Context, customerID int64, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, checkoutIdempotencyKey(customerID, key), orderID, ttl).Err()
}

// LookupCheckout returns the order recorded for an idempotency key
func (c *Client) LookupCheckout(ctx context.Context, customerID int64, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, checkoutIdempotencyKey(customerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read idempotency key: %w", err)
	}

	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency record %q: %w", val, err)
	}
	return orderID, true, nil
}
