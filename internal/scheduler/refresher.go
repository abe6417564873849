// Package scheduler keeps a tracked subset of cached entries warm,
// independent of live interception traffic.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/router"
	"nimbus-gateway/internal/strategy"
)

// Refresher periodically re-fetches the api-container entries whose
// URLs match the tracked patterns and overwrites them on success. Each
// entry is refreshed independently: one failure never aborts the rest
// of the tick, and a failed tick never stops the schedule.
type Refresher struct {
	store    cache.Store
	resolver strategy.Resolver
	fetcher  fetch.Fetcher
	interval time.Duration
	patterns []string
	maxAPI   int
	logger   *zap.Logger
	metrics  *observability.Collector

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRefresher builds a refresher from the refresh configuration.
func NewRefresher(
	cfg config.Refresh,
	maxAPIEntries int,
	store cache.Store,
	resolver strategy.Resolver,
	fetcher fetch.Fetcher,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		store:    store,
		resolver: resolver,
		fetcher:  fetcher,
		interval: cfg.Interval.Std(),
		patterns: cfg.TrackedPatterns,
		maxAPI:   maxAPIEntries,
		logger:   logger,
		metrics:  metrics,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop. It is a no-op when the interval is
// not positive.
func (r *Refresher) Start() {
	if r.interval <= 0 {
		return
	}
	r.wg.Add(1)
	go r.loop()
}

// Stop terminates the loop and waits for an in-flight tick.
func (r *Refresher) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			r.Tick(context.Background())
		}
	}
}

// Tick runs one refresh pass. Exported so the control surface and tests
// can trigger a pass without waiting for the timer.
func (r *Refresher) Tick(ctx context.Context) {
	c, err := r.store.Open(ctx, r.resolver.Resolve(router.ContainerAPI))
	if err != nil {
		r.logger.Warn("refresh tick could not open api container", zap.Error(err))
		return
	}

	keys, err := c.ListKeys(ctx)
	if err != nil {
		r.logger.Warn("refresh tick could not list keys", zap.Error(err))
		return
	}

	refreshed := 0
	for _, fingerprint := range keys {
		select {
		case <-r.stopCh:
			return
		default:
		}
		if r.refreshOne(ctx, c, fingerprint) {
			refreshed++
		}
	}

	if refreshed > 0 {
		r.logger.Debug("refresh tick complete",
			zap.Int("tracked", refreshed),
			zap.Int("total_keys", len(keys)),
		)
	}
}

// refreshOne re-fetches a single tracked entry. All failures are local:
// logged, counted, skipped.
func (r *Refresher) refreshOne(ctx context.Context, c cache.Container, fingerprint string) bool {
	method, rawURL, ok := cache.SplitFingerprint(fingerprint)
	if !ok {
		return false
	}
	if !r.tracked(rawURL) {
		return false
	}

	entry, err := r.fetcher.Do(ctx, method, rawURL)
	if err != nil {
		r.metrics.RefreshTotal.WithLabelValues("failure").Inc()
		r.logger.Warn("background refresh failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return true
	}
	if !entry.Cacheable() {
		r.metrics.RefreshTotal.WithLabelValues("skipped").Inc()
		return true
	}

	entry.Fingerprint = fingerprint
	entry.StoredAt = time.Now()
	if err := c.Put(ctx, fingerprint, entry); err != nil {
		r.metrics.RefreshTotal.WithLabelValues("failure").Inc()
		r.logger.Warn("background refresh write failed",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return true
	}
	if _, err := cache.EnforceLimit(ctx, c, r.maxAPI, r.logger); err != nil {
		r.logger.Warn("eviction pass failed after refresh", zap.Error(err))
	}

	r.metrics.RefreshTotal.WithLabelValues("success").Inc()
	return true
}

// tracked implements simple wildcard matching against the URL part of
// a fingerprint: "*x" suffix, "x*" prefix, "*x*" substring, otherwise
// exact.
func (r *Refresher) tracked(rawURL string) bool {
	for _, pattern := range r.patterns {
		if matchPattern(rawURL, pattern) {
			return true
		}
	}
	return false
}

func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*")
	trimmed := strings.Trim(pattern, "*")
	switch {
	case leading && trailing:
		return strings.Contains(str, trimmed)
	case leading:
		return strings.HasSuffix(str, trimmed)
	case trailing:
		return strings.HasPrefix(str, trimmed)
	default:
		return str == pattern
	}
}
