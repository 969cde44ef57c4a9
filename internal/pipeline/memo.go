package pipeline

import (
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

// Memo wraps the pure pipeline functions with per-selector LRU caches so
// that repeated reads of an unchanged store state return the identical
// cached result. Keys combine the store's revision counter with the
// filter fingerprint; the revision acts as the content hash of the
// collection. Concurrent misses for the same key are collapsed with
// singleflight.
//
// Cached values are shared: callers must treat returned slices as
// read-only.
type Memo struct {
	filtered   cache.Cache[[]core.Transaction]
	categories cache.Cache[[]string]
	summaries  cache.Cache[core.Summary]
	byCategory cache.Cache[[]core.CategoryTotal]
	trends     cache.Cache[[]core.TrendPoint]

	cleaners []cache.Cleaner
	group    singleflight.Group
}

// Config holds memoization cache sizing.
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultConfig returns sensible defaults: enough entries for a handful
// of filter combinations per revision, expiring well after the UI has
// moved on.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 64,
		TTL:        5 * time.Minute,
	}
}

// NewMemo creates a memoized pipeline.
func NewMemo(cfg Config) *Memo {
	if cfg.MaxEntries <= 0 || cfg.TTL <= 0 {
		cfg = DefaultConfig()
	}

	filtered := cache.NewLRUCache[[]core.Transaction](cfg.MaxEntries, cfg.TTL)
	categories := cache.NewLRUCache[[]string](cfg.MaxEntries, cfg.TTL)
	summaries := cache.NewLRUCache[core.Summary](cfg.MaxEntries, cfg.TTL)
	byCategory := cache.NewLRUCache[[]core.CategoryTotal](cfg.MaxEntries, cfg.TTL)
	trends := cache.NewLRUCache[[]core.TrendPoint](cfg.MaxEntries, cfg.TTL)

	return &Memo{
		filtered:   filtered,
		categories: categories,
		summaries:  summaries,
		byCategory: byCategory,
		trends:     trends,
		cleaners:   []cache.Cleaner{filtered, categories, summaries, byCategory, trends},
	}
}

// RegisterWith adds all selector caches to a cleanup manager.
func (m *Memo) RegisterWith(mgr *cache.Manager) {
	for _, c := range m.cleaners {
		mgr.Register(c)
	}
}

// lookup returns the cached value for key, computing and caching it on a
// miss. Concurrent misses for the same key compute once.
func lookup[T any](c cache.Cache[T], g *singleflight.Group, key string, compute func() T) T {
	if v, ok := c.Get(key); ok {
		return v
	}
	v, _, _ := g.Do(key, func() (any, error) {
		out := compute()
		c.Set(key, out)
		return out, nil
	})
	return v.(T)
}

// Filtered returns the memoized filtered subset for the given revision
// and filter state.
func (m *Memo) Filtered(rev uint64, all []core.Transaction, f core.Filters) []core.Transaction {
	key := "filtered|" + strconv.FormatUint(rev, 10) + "|" + f.Fingerprint()
	return lookup(m.filtered, &m.group, key, func() []core.Transaction {
		return Filter(all, f)
	})
}

// Categories returns the memoized category list. It depends only on the
// revision: filter changes never invalidate it.
func (m *Memo) Categories(rev uint64, all []core.Transaction) []string {
	key := "categories|" + strconv.FormatUint(rev, 10)
	return lookup(m.categories, &m.group, key, func() []string {
		return Categories(all)
	})
}

// Summary returns the memoized totals over the filtered set.
func (m *Memo) Summary(rev uint64, all []core.Transaction, f core.Filters) core.Summary {
	key := "summary|" + strconv.FormatUint(rev, 10) + "|" + f.Fingerprint()
	return lookup(m.summaries, &m.group, key, func() core.Summary {
		return Summarize(m.Filtered(rev, all, f))
	})
}

// CategoryChart returns the memoized per-category aggregation.
func (m *Memo) CategoryChart(rev uint64, all []core.Transaction, f core.Filters) []core.CategoryTotal {
	key := "bycat|" + strconv.FormatUint(rev, 10) + "|" + f.Fingerprint()
	return lookup(m.byCategory, &m.group, key, func() []core.CategoryTotal {
		return CategoryChart(m.Filtered(rev, all, f))
	})
}

// TimeSeries returns the memoized trend aggregation for the bucket.
// Transactions skipped for an unparseable date are logged here, the
// non-pure shell around the aggregation.
func (m *Memo) TimeSeries(rev uint64, all []core.Transaction, f core.Filters, bucket core.Bucket) []core.TrendPoint {
	key := "trend|" + strconv.FormatUint(rev, 10) + "|" + f.Fingerprint() + "|" + string(bucket)
	return lookup(m.trends, &m.group, key, func() []core.TrendPoint {
		out, skipped := TimeSeries(m.Filtered(rev, all, f), bucket)
		if skipped > 0 {
			slog.Warn("Transactions excluded from trend aggregation",
				"skipped", skipped,
				"bucket", string(bucket),
				"reason", "unparseable date")
		}
		return out
	})
}
