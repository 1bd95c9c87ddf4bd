package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const reprobeInterval = time.Minute

// FailoverCache serves from the primary (Redis) until it errors, then from
// the fallback, re-probing the primary once a minute.
type FailoverCache struct {
	primary   Store
	fallback  Store
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time

	// prefixes invalidated while the primary was unreachable; cleared on
	// the primary before it serves again.
	mu    sync.Mutex
	stale map[string]struct{}
}

func NewFailoverCache(primary, fallback Store, logger *zerolog.Logger) *FailoverCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
		stale:    make(map[string]struct{}),
	}
}

// usePrimary reports whether the next call should go to the primary.
func (c *FailoverCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	return c.now().Sub(time.Unix(0, c.lastCheck.Load())) > reprobeInterval
}

// primaryReady is usePrimary plus replaying invalidations missed during an
// outage. A failed replay counts as a primary failure.
func (c *FailoverCache) primaryReady(ctx context.Context) bool {
	if !c.usePrimary() {
		return false
	}
	if err := c.flushStale(ctx); err != nil {
		c.observe(err)
		return false
	}
	return true
}

func (c *FailoverCache) flushStale(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for prefix := range c.stale {
		if err := c.primary.DeletePrefix(ctx, prefix); err != nil {
			return err
		}
		delete(c.stale, prefix)
		c.logger.Info().Str("prefix", prefix).Msg("replayed cache invalidation on primary")
	}
	return nil
}

func (c *FailoverCache) markStale(prefix string) {
	c.mu.Lock()
	c.stale[prefix] = struct{}{}
	c.mu.Unlock()
}

func (c *FailoverCache) observe(err error) {
	if err == nil {
		if c.isDown.Swap(false) {
			c.logger.Info().Msg("primary cache recovered")
		}
		return
	}
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("primary cache failed, falling back to memory")
	}
	c.lastCheck.Store(c.now().UnixNano())
}

// Degraded reports whether the fallback is currently serving.
func (c *FailoverCache) Degraded() bool { return c.isDown.Load() }

func (c *FailoverCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.primaryReady(ctx) {
		val, ok, err := c.primary.Get(ctx, key)
		c.observe(err)
		if err == nil {
			return val, ok, nil
		}
	}
	return c.fallback.Get(ctx, key)
}

func (c *FailoverCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.primaryReady(ctx) {
		err := c.primary.Set(ctx, key, value, ttl)
		c.observe(err)
		if err == nil {
			return nil
		}
	}
	return c.fallback.Set(ctx, key, value, ttl)
}

// DeletePrefix always clears the fallback too so stale entries written
// during an outage do not outlive it. When the primary cannot be reached the
// prefix is remembered and cleared there on recovery.
func (c *FailoverCache) DeletePrefix(ctx context.Context, prefix string) error {
	cleared := false
	if c.primaryReady(ctx) {
		err := c.primary.DeletePrefix(ctx, prefix)
		c.observe(err)
		cleared = err == nil
	}
	if !cleared {
		c.markStale(prefix)
	}
	return c.fallback.DeletePrefix(ctx, prefix)
}

func (c *FailoverCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if c.primaryReady(ctx) {
		allowed, err := c.primary.CheckRateLimit(ctx, key, limit, window)
		c.observe(err)
		if err == nil {
			return allowed, nil
		}
	}
	return c.fallback.CheckRateLimit(ctx, key, limit, window)
}
