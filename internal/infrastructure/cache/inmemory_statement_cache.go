package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gestion/backend/internal/domain/settlement"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Constants for in-memory cache configuration
const (
	defaultCleanupInterval = 30 * time.Second
)

// InMemoryStatementCache implements StatementCache using in-memory storage.
// Intended for single-process deployments and tests where Redis is not
// available.
type InMemoryStatementCache struct {
	statements sync.Map // map[uuid.UUID]*statementEntry
	logger     *zap.Logger
	stopCh     chan struct{} // Channel to stop the cleanup goroutine
	stopped    int32         // Atomic flag to track if cache is stopped

	// Stats for monitoring
	hits   int64
	misses int64
}

// statementEntry wraps a cached statement with expiration time
type statementEntry struct {
	statement *settlement.Statement
	expiresAt time.Time
}

// isExpired checks if the cache entry has expired
func (e *statementEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryStatementCacheOption is a functional option for configuring the cache
type InMemoryStatementCacheOption func(*InMemoryStatementCache)

// WithInMemoryStatementCacheLogger sets the logger for the cache
func WithInMemoryStatementCacheLogger(logger *zap.Logger) InMemoryStatementCacheOption {
	return func(c *InMemoryStatementCache) {
		c.logger = logger
	}
}

// NewInMemoryStatementCache creates a new in-memory statement cache
func NewInMemoryStatementCache(opts ...InMemoryStatementCacheOption) *InMemoryStatementCache {
	cache := &InMemoryStatementCache{
		logger: zap.NewNop(),
		stopCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(cache)
	}

	// Start background cleanup goroutine
	go cache.cleanupExpired()

	return cache
}

// Get retrieves a statement from cache
func (c *InMemoryStatementCache) Get(ctx context.Context, partyID uuid.UUID) (*settlement.Statement, error) {
	if value, ok := c.statements.Load(partyID); ok {
		entry := value.(*statementEntry)
		if !entry.isExpired() {
			atomic.AddInt64(&c.hits, 1)
			c.logger.Debug("Cache hit for statement", zap.String("party_id", partyID.String()))
			return entry.statement, nil
		}
		// Expired, remove from cache
		c.statements.Delete(partyID)
	}

	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("Cache miss for statement", zap.String("party_id", partyID.String()))
	return nil, nil
}

// Set stores a statement in cache
func (c *InMemoryStatementCache) Set(ctx context.Context, statement *settlement.Statement, ttl time.Duration) error {
	if statement == nil {
		return nil
	}

	entry := &statementEntry{
		statement: statement,
		expiresAt: time.Now().Add(ttl),
	}

	c.statements.Store(statement.PartyID, entry)
	c.logger.Debug("Cached statement",
		zap.String("party_id", statement.PartyID.String()),
		zap.Duration("ttl", ttl))
	return nil
}

// Invalidate drops the cached statement for a party
func (c *InMemoryStatementCache) Invalidate(ctx context.Context, partyID uuid.UUID) error {
	c.statements.Delete(partyID)
	c.logger.Debug("Invalidated statement cache", zap.String("party_id", partyID.String()))
	return nil
}

// Close stops the background cleanup goroutine
func (c *InMemoryStatementCache) Close() error {
	// Only close once
	if atomic.CompareAndSwapInt32(&c.stopped, 0, 1) {
		close(c.stopCh)
	}
	return nil
}

// GetStats returns cache statistics
func (c *InMemoryStatementCache) GetStats() (hits, misses int64) {
	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses)
}

// Count returns the number of entries in the cache
func (c *InMemoryStatementCache) Count() int {
	count := 0
	c.statements.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

// cleanupExpired periodically removes expired entries from the cache
func (c *InMemoryStatementCache) cleanupExpired() {
	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						c.logger.Error("Panic in cache cleanup",
							zap.Any("panic", r))
					}
				}()
				c.doCleanup()
			}()
		}
	}
}

// doCleanup removes expired entries
func (c *InMemoryStatementCache) doCleanup() {
	removed := 0
	c.statements.Range(func(key, value any) bool {
		entry := value.(*statementEntry)
		if entry.isExpired() {
			c.statements.Delete(key)
			removed++
		}
		return true
	})

	if removed > 0 {
		c.logger.Debug("Cleaned up expired statement cache entries",
			zap.Int("removed", removed))
	}
}

// Ensure both implementations satisfy StatementCache
var (
	_ StatementCache = (*RedisStatementCache)(nil)
	_ StatementCache = (*InMemoryStatementCache)(nil)
)
