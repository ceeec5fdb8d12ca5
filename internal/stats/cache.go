package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/metrics"
)

// Cached memoises per-selection statistics of another Service.
type Cached struct {
	next  Service
	cache *ttlcache.Cache[string, ChannelStats]
}

// NewCached wraps next with a cache whose entries expire ttl after they are
// stored. Expired entries are evicted in the background until Close.
func NewCached(next Service, ttl time.Duration) *Cached {
	c := &Cached{
		next: next,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, ChannelStats](ttl),
			ttlcache.WithDisableTouchOnHit[string, ChannelStats](),
		),
	}
	go c.cache.Start()
	return c
}

// Close stops background eviction.
func (c *Cached) Close() {
	c.cache.Stop()
}

func (c *Cached) ChannelStats(ctx context.Context, l loader.Loader, selections []dims.Selection) ([]ChannelStats, error) {
	url := l.Metadata().URL
	if url == "" {
		return c.next.ChannelStats(ctx, l, selections)
	}
	out := make([]ChannelStats, len(selections))
	var (
		missIdx []int
		missSel []dims.Selection
	)
	for i, sel := range selections {
		if item := c.cache.Get(cacheKey(url, sel)); item != nil {
			metrics.RecordStatsCache("hit")
			out[i] = item.Value()
			continue
		}
		metrics.RecordStatsCache("miss")
		missIdx = append(missIdx, i)
		missSel = append(missSel, sel)
	}
	if len(missSel) == 0 {
		return out, nil
	}
	fresh, err := c.next.ChannelStats(ctx, l, missSel)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missSel) {
		return nil, fmt.Errorf("stats: %d results for %d selections", len(fresh), len(missSel))
	}
	for j, i := range missIdx {
		out[i] = fresh[j]
		c.cache.Set(cacheKey(url, missSel[j]), fresh[j], ttlcache.DefaultTTL)
	}
	return out, nil
}

// Len is the number of live entries.
func (c *Cached) Len() int { return c.cache.Len() }

func cacheKey(url string, sel dims.Selection) string {
	return url + "|" + sel.Key()
}
