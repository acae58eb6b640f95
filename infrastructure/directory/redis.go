package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/decision-ledger/domain/actor"
	"github.com/felixgeelhaar/decision-ledger/infrastructure/logging"
)

// RedisConfig holds the cache connection configuration.
type RedisConfig struct {
	// Address is the Redis server address (host:port).
	Address string

	// Password for authentication (optional).
	Password string

	// DB selects the Redis database index.
	DB int

	// MaxRetries is the maximum number of retries before giving up.
	// A negative value disables retries.
	MaxRetries int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// KeyPrefix is prepended to all keys.
	KeyPrefix string

	// TTL is how long a resolved actor stays cached.
	TTL time.Duration
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Address:      "localhost:6379",
		MaxRetries:   1,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		KeyPrefix:    "ledger:actor:",
		TTL:          5 * time.Minute,
	}
}

// RedisOption configures the cache.
type RedisOption func(*RedisConfig)

// WithAddress sets the Redis server address.
func WithAddress(addr string) RedisOption {
	return func(c *RedisConfig) {
		c.Address = addr
	}
}

// WithPassword sets the authentication password.
func WithPassword(password string) RedisOption {
	return func(c *RedisConfig) {
		c.Password = password
	}
}

// WithDB sets the database index.
func WithDB(db int) RedisOption {
	return func(c *RedisConfig) {
		c.DB = db
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.KeyPrefix = prefix
	}
}

// WithTTL sets the cache lifetime of a resolved actor.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.TTL = ttl
	}
}

// WithTimeouts sets the dial, read and write timeouts.
func WithTimeouts(dial, read, write time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.DialTimeout = dial
		c.ReadTimeout = read
		c.WriteTimeout = write
	}
}

// WithMaxRetries sets the retry count. Negative disables retries.
func WithMaxRetries(n int) RedisOption {
	return func(c *RedisConfig) {
		c.MaxRetries = n
	}
}

// RedisCache caches resolved actors in Redis in front of another directory.
// Cache failures never fail a lookup: the wrapped directory is the source of
// truth and Redis is only consulted to save a round trip.
type RedisCache struct {
	client *redis.Client
	next   actor.Directory
	prefix string
	ttl    time.Duration
	logger *bolt.Logger
}

// NewRedisCache wraps next with a Redis client. The connection is lazy;
// call Ping to verify it.
func NewRedisCache(next actor.Directory, opts ...RedisOption) *RedisCache {
	cfg := DefaultRedisConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	return &RedisCache{
		client: client,
		next:   next,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		logger: logging.OrDefault(nil),
	}
}

// NewRedisCacheFromClient wraps next using an existing client.
func NewRedisCacheFromClient(client *redis.Client, next actor.Directory, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		next:   next,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.OrDefault(nil),
	}
}

// WithLogger sets the logger used for cache failures.
func (c *RedisCache) WithLogger(logger *bolt.Logger) *RedisCache {
	c.logger = logging.OrDefault(logger)
	return c
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Resolve returns the cached actor or resolves and caches it.
func (c *RedisCache) Resolve(ctx context.Context, id string) (actor.Actor, error) {
	key := c.key(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a actor.Actor
		jerr := json.Unmarshal(data, &a)
		if jerr == nil {
			return a, nil
		}
		c.warn("decode", id, jerr)
	case !errors.Is(err, redis.Nil):
		c.warn("get", id, err)
	}

	a, err := c.next.Resolve(ctx, id)
	if err != nil {
		return actor.Actor{}, err
	}

	if data, err := json.Marshal(a); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.warn("set", id, err)
		}
	}
	return a, nil
}

// ListByRoles delegates to the wrapped directory. Role listings are not cached.
func (c *RedisCache) ListByRoles(ctx context.Context, roles []actor.Role) ([]actor.Actor, error) {
	lister, ok := c.next.(actor.Lister)
	if !ok {
		return nil, errors.New("directory cannot list actors by role")
	}
	return lister.ListByRoles(ctx, roles)
}

// Invalidate drops the cached entry for id.
func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(id string) string {
	return c.prefix + id
}

func (c *RedisCache) warn(op, id string, err error) {
	logging.NewEvent(c.logger.Warn()).
		Add(logging.Component("directory.redis")).
		Add(logging.Operation(op)).
		Add(logging.ActorID(id)).
		Add(logging.ErrorField(err)).
		Msg("actor cache unavailable")
}

var (
	_ actor.Directory = (*RedisCache)(nil)
	_ actor.Lister    = (*RedisCache)(nil)
)
