package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/salazarroman429-ui/proveedor-tienda-pwa/internal/util"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const defaultRetryInterval = 25 * time.Millisecond

type Client struct {
	rdb            *redis.Client
	releaseScript  *redis.Script
	lockTTL        time.Duration
	idempotencyTTL time.Duration
	retryInterval  time.Duration
	newToken       func() string
	logger         *zap.Logger
}

// NewClient creates a new Redis client and checks the connection
func NewClient(addr, password string, db int, lockTTL, idempotencyTTL time.Duration) (*Client, error) {
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

	return NewClientWithRedis(rdb, lockTTL, idempotencyTTL), nil
}

// NewClientWithRedis wraps an existing redis client
func NewClientWithRedis(rdb *redis.Client, lockTTL, idempotencyTTL time.Duration) *Client {
	return &Client{
		rdb:            rdb,
		releaseScript:  redis.NewScript(releaseLockScript),
		lockTTL:        lockTTL,
		idempotencyTTL: idempotencyTTL,
		retryInterval:  defaultRetryInterval,
		newToken:       uuid.NewString,
		logger:         util.GetLogger(),
	}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Lock acquires a distributed lock, polling until it is free or ctx ends.
// The lock expires after lockTTL so a crashed holder cannot block forever;
// release only deletes the key while this caller still owns it.
func (c *Client) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	token := c.newToken()

	for {
		ok, err := c.rdb.SetNX(ctx, lockKey, token, c.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey}, token).Err(); err != nil {
			c.logger.Warn("Failed to release lock",
				zap.String("key", lockKey),
				zap.Error(err))
		}
	}, nil
}

// LookupRequest returns the request id stored under an idempotency key
func (c *Client) LookupRequest(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %s: %w", key, err)
	}
	return id, true, nil
}

// RememberRequest stores the request id created for an idempotency key
func (c *Client) RememberRequest(ctx context.Context, key string, requestID int64) error {
	return c.rdb.Set(ctx, idempotencyKey(key), strconv.FormatInt(requestID, 10), c.idempotencyTTL).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:solicitud:%s", key)
}
