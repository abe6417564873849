// Package strategy implements the three caching strategies: cache-first,
// network-first with optional offline fallback, and
// stale-while-revalidate. All of them share one read/write contract
// against the store abstraction and one propagation policy: store-write
// failures are swallowed, store-read failures degrade to misses, and a
// network failure never blocks the caller when any cached entry exists.
package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/router"
	"nimbus-gateway/internal/task"
)

// Resolver maps a logical container name ("static", "dynamic", "api")
// to the live versioned container name. The lifecycle manager is the
// production implementation.
type Resolver interface {
	Resolve(logical string) string
}

// Source records where a served entry came from.
type Source string

const (
	SourceCache    Source = "cache"
	SourceNetwork  Source = "network"
	SourceFallback Source = "fallback"
)

// Result is what a strategy hands back to the gateway.
type Result struct {
	Entry  *cache.Entry
	Source Source

	// Stale marks a cached entry older than its class max-age. Stale
	// entries are still served; availability wins over freshness.
	Stale bool
}

// Strategy serves one intercepted request according to its routing
// decision.
type Strategy interface {
	Serve(ctx context.Context, req router.Request, d router.Decision) (*Result, error)
}

// Deps carries the collaborators every strategy needs.
type Deps struct {
	Store    cache.Store
	Resolver Resolver
	Fetcher  fetch.Fetcher
	Tasks    *task.Group

	// Limits maps logical container names to their max entry counts.
	// Absent or non-positive means unbounded.
	Limits map[string]int

	// FallbackFingerprint locates the offline fallback entry seeded
	// into the static container at install time.
	FallbackFingerprint string

	// BackgroundTimeout bounds fire-and-forget fetches and writes.
	BackgroundTimeout time.Duration

	Logger  *zap.Logger
	Metrics *observability.Collector
}

func (d *Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// lookup reads an entry from a logical container. Store-read failures
// are logged and degrade to a cache miss.
func (d *Deps) lookup(ctx context.Context, logical, fingerprint string) (*cache.Entry, bool) {
	c, err := d.Store.Open(ctx, d.Resolver.Resolve(logical))
	if err != nil {
		d.logger().Warn("open container failed", zap.String("container", logical), zap.Error(err))
		return nil, false
	}
	entry, found, err := c.Get(ctx, fingerprint)
	if err != nil {
		d.logger().Warn("cache read failed, treating as miss",
			zap.String("container", logical),
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return nil, false
	}
	if found {
		d.Metrics.CacheHits.WithLabelValues(logical).Inc()
	} else {
		d.Metrics.CacheMisses.WithLabelValues(logical).Inc()
	}
	return entry, found
}

// store writes an entry into a logical container, stamping the
// fingerprint and StoredAt, then enforces the container's FIFO bound.
// Failures are swallowed: caching is best-effort and must never fail
// the primary request path.
func (d *Deps) store(ctx context.Context, logical, fingerprint string, entry *cache.Entry) {
	c, err := d.Store.Open(ctx, d.Resolver.Resolve(logical))
	if err != nil {
		d.logger().Warn("open container failed", zap.String("container", logical), zap.Error(err))
		return
	}

	stored := entry.Clone()
	stored.Fingerprint = fingerprint
	stored.StoredAt = time.Now()

	if err := c.Put(ctx, fingerprint, stored); err != nil {
		d.Metrics.StoreWriteFailures.Inc()
		d.logger().Warn("cache write failed",
			zap.String("container", logical),
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return
	}

	evicted, err := cache.EnforceLimit(ctx, c, d.Limits[logical], d.logger())
	if err != nil {
		d.logger().Warn("eviction pass failed", zap.String("container", logical), zap.Error(err))
	}
	if evicted > 0 {
		d.Metrics.EvictionsTotal.WithLabelValues(logical).Add(float64(evicted))
	}
}

// storeAsync performs the write on the task group, detached from the
// caller's return path but still tracked until completion.
func (d *Deps) storeAsync(logical, fingerprint string, entry *cache.Entry) {
	launched := d.Tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.BackgroundTimeout)
		defer cancel()
		d.store(ctx, logical, fingerprint, entry)
	})
	if !launched {
		d.logger().Debug("background cache write skipped, task group saturated",
			zap.String("fingerprint", fingerprint),
		)
	}
}

// fallback fetches the offline fallback entry seeded at install time.
func (d *Deps) fallback(ctx context.Context) (*cache.Entry, bool) {
	if d.FallbackFingerprint == "" {
		return nil, false
	}
	return d.lookup(ctx, router.ContainerStatic, d.FallbackFingerprint)
}

func (d *Deps) countOutcome(kind router.StrategyKind, outcome string) {
	d.Metrics.InterceptTotal.WithLabelValues(string(kind), outcome).Inc()
}
