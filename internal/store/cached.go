package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/redis"
)

// DefaultAccountCacheTTL bounds how stale a cached account may get. Role or
// active-flag changes take effect at the latest after this window.
const DefaultAccountCacheTTL = 60 * time.Second

// CachedAccountLookup decorates an auth.AccountLookup with a Redis
// read-through cache. Cache failures degrade to the underlying store, never
// to a request failure.
type CachedAccountLookup struct {
	next  auth.AccountLookup
	cache *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedAccountLookup wraps next with a Redis cache. A zero ttl uses
// DefaultAccountCacheTTL.
func NewCachedAccountLookup(next auth.AccountLookup, cache *redis.Client, ttl time.Duration, log *logger.Logger) *CachedAccountLookup {
	if ttl <= 0 {
		ttl = DefaultAccountCacheTTL
	}
	return &CachedAccountLookup{
		next:  next,
		cache: cache,
		ttl:   ttl,
		log:   log.WithComponent("account_cache"),
	}
}

// FindByID implements auth.AccountLookup.
func (c *CachedAccountLookup) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	return c.lookup(ctx, "sealbox:account:id:"+id, func() (*auth.Account, error) {
		return c.next.FindByID(ctx, id)
	})
}

// FindByTelegramID implements auth.AccountLookup.
func (c *CachedAccountLookup) FindByTelegramID(ctx context.Context, telegramID string) (*auth.Account, error) {
	return c.lookup(ctx, "sealbox:account:tg:"+telegramID, func() (*auth.Account, error) {
		return c.next.FindByTelegramID(ctx, telegramID)
	})
}

func (c *CachedAccountLookup) lookup(ctx context.Context, key string, load func() (*auth.Account, error)) (*auth.Account, error) {
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var a auth.Account
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			return &a, nil
		}
	} else if !redis.IsNil(err) {
		c.log.Warn("Account cache read failed", logger.Fields(logger.FieldError, err.Error()))
	}

	a, err := load()
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(a); err == nil {
		if err := c.cache.Set(ctx, key, encoded, c.ttl); err != nil {
			c.log.Warn("Account cache write failed", logger.Fields(logger.FieldError, err.Error()))
		}
	}
	return a, nil
}

var _ auth.AccountLookup = (*CachedAccountLookup)(nil)
