package revocation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
)

// CachedLedger fronts a Ledger with a bounded cache of ids known to be
// not revoked. Positive answers always come from the underlying ledger.
type CachedLedger struct {
	next       Ledger
	notRevoked *lru.LRU[string, struct{}]
	metrics    *observability.Metrics

	// mu orders cache fills against revocations; epoch counts revocations.
	mu    sync.Mutex
	epoch uint64

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
	HitRate float64
}

// NewCachedLedger wraps next with a cache of at most size ids, each kept for ttl
func NewCachedLedger(next Ledger, size int, ttl time.Duration, metrics *observability.Metrics) *CachedLedger {
	if size <= 0 {
		size = 10000
	}
	return &CachedLedger{
		next:       next,
		notRevoked: lru.NewLRU[string, struct{}](size, nil, ttl),
		metrics:    metrics,
	}
}

// Revoke writes through and drops the id from the cache once committed
func (c *CachedLedger) Revoke(ctx context.Context, entry Entry) (bool, error) {
	c.notRevoked.Remove(entry.TokenID)

	newly, err := c.next.Revoke(ctx, entry)

	c.mu.Lock()
	c.epoch++
	c.notRevoked.Remove(entry.TokenID)
	c.mu.Unlock()

	return newly, err
}

// IsRevoked answers from cache for ids recently seen as not revoked
func (c *CachedLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if _, ok := c.notRevoked.Get(tokenID); ok {
		c.hits.Add(1)
		c.metrics.RecordRevocationCacheLookup(true)
		return false, nil
	}
	c.misses.Add(1)
	c.metrics.RecordRevocationCacheLookup(false)

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	revoked, err := c.next.IsRevoked(ctx, tokenID)
	if err != nil || revoked {
		return revoked, err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.notRevoked.Add(tokenID, struct{}{})
	}
	c.mu.Unlock()

	return false, nil
}

// PurgeExpired delegates to the underlying ledger
func (c *CachedLedger) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return c.next.PurgeExpired(ctx, now)
}

// PurgeByOwner delegates to the underlying ledger
func (c *CachedLedger) PurgeByOwner(ctx context.Context, ownerID int64) (int64, error) {
	return c.next.PurgeByOwner(ctx, ownerID)
}

// PurgeRevokedBefore delegates to the underlying ledger
func (c *CachedLedger) PurgeRevokedBefore(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error) {
	return c.next.PurgeRevokedBefore(ctx, ownerID, cutoff)
}

// Stats returns hit and miss counts
func (c *CachedLedger) Stats() CacheStats {
	stats := CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.notRevoked.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// RegisterGauges exposes Stats as adlbuilder_revocation_cache_entries and
// adlbuilder_revocation_cache_hit_ratio on reg.
func (c *CachedLedger) RegisterGauges(reg prometheus.Registerer) error {
	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "adlbuilder_revocation_cache_entries",
			Help: "Token ids currently cached as not revoked",
		}, func() float64 { return float64(c.Stats().Entries) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "adlbuilder_revocation_cache_hit_ratio",
			Help: "Share of revocation lookups answered from the cache",
		}, func() float64 { return c.Stats().HitRate }),
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil {
			return err
		}
	}
	return nil
}
