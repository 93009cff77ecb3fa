package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StatementCache is an advisory cache of party statements. It only ever
// serves as a read shortcut: the allocation engine recomputes balances
// from the ledger and invalidates entries on every write.
type StatementCache interface {
	// Get returns the cached statement for a party, or nil on a miss
	Get(ctx context.Context, partyID uuid.UUID) (*settlement.Statement, error)

	// Set stores a statement with the given TTL
	Set(ctx context.Context, statement *settlement.Statement, ttl time.Duration) error

	// Invalidate drops the cached statement for a party
	Invalidate(ctx context.Context, partyID uuid.UUID) error

	// Close releases cache resources
	Close() error
}

// RedisConfig holds the Redis connection settings for caches
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStatementCache implements StatementCache using Redis
type RedisStatementCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	logger     *zap.Logger
}

// RedisStatementCacheOption is a functional option for configuring the cache
type RedisStatementCacheOption func(*RedisStatementCache)

// WithStatementCacheLogger sets the logger for the cache
func WithStatementCacheLogger(logger *zap.Logger) RedisStatementCacheOption {
	return func(c *RedisStatementCache) {
		c.logger = logger
	}
}

// NewRedisStatementCache creates a new Redis-based statement cache
func NewRedisStatementCache(cfg RedisConfig, opts ...RedisStatementCacheOption) (*RedisStatementCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisStatementCache{
		client:     client,
		ownsClient: true,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisStatementCacheWithClient creates a cache with an existing Redis client.
// The caller retains ownership of the client and is responsible for closing it.
func NewRedisStatementCacheWithClient(client *redis.Client, opts ...RedisStatementCacheOption) *RedisStatementCache {
	cache := &RedisStatementCache{
		client:     client,
		ownsClient: false,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// statementKey generates the cache key for a party statement
func (c *RedisStatementCache) statementKey(partyID uuid.UUID) string {
	return fmt.Sprintf("statement:%s", partyID.String())
}

// Get retrieves a statement from cache
func (c *RedisStatementCache) Get(ctx context.Context, partyID uuid.UUID) (*settlement.Statement, error) {
	key := c.statementKey(partyID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss for statement", zap.String("party_id", partyID.String()))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to get statement from cache",
			zap.String("party_id", partyID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get statement from cache: %w", err)
	}

	var statement settlement.Statement
	if err := json.Unmarshal(data, &statement); err != nil {
		c.logger.Error("Failed to unmarshal statement",
			zap.String("party_id", partyID.String()),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, key)
		return nil, fmt.Errorf("failed to unmarshal statement: %w", err)
	}

	c.logger.Debug("Cache hit for statement", zap.String("party_id", partyID.String()))
	return &statement, nil
}

// Set stores a statement in cache
func (c *RedisStatementCache) Set(ctx context.Context, statement *settlement.Statement, ttl time.Duration) error {
	if statement == nil {
		return nil
	}

	data, err := json.Marshal(statement)
	if err != nil {
		return fmt.Errorf("failed to marshal statement: %w", err)
	}

	key := c.statementKey(statement.PartyID)
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to set statement in cache",
			zap.String("party_id", statement.PartyID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to set statement in cache: %w", err)
	}

	return nil
}

// Invalidate drops the cached statement for a party
func (c *RedisStatementCache) Invalidate(ctx context.Context, partyID uuid.UUID) error {
	key := c.statementKey(partyID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Error("Failed to invalidate statement cache",
			zap.String("party_id", partyID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to invalidate statement cache: %w", err)
	}
	return nil
}

// Close closes the Redis client if this cache owns it
func (c *RedisStatementCache) Close() error {
	if !c.ownsClient {
		return nil
	}
	return c.client.Close()
}
