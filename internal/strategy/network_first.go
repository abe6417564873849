package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/router"
	appErrors "nimbus-gateway/pkg/errors"
)

// NetworkFirst fetches fresh data first and falls back to the cache on
// network failure. Any cached entry, however old, beats failing the
// caller; for navigation requests the seeded offline page is the last
// resort.
type NetworkFirst struct {
	Deps
}

// NewNetworkFirst creates the network-first strategy.
func NewNetworkFirst(deps Deps) *NetworkFirst {
	return &NetworkFirst{Deps: deps}
}

// Serve implements Strategy.
func (s *NetworkFirst) Serve(ctx context.Context, req router.Request, d router.Decision) (*Result, error) {
	fingerprint, err := cache.Fingerprint(req.Method, req.URL)
	if err != nil {
		return nil, err
	}

	entry, fetchErr := s.Fetcher.Do(ctx, req.Method, req.URL)
	if fetchErr == nil {
		if entry.Cacheable() {
			// Synchronous write plus eviction; failures are swallowed
			// inside store.
			s.store(ctx, d.Container, fingerprint, entry)
		}
		s.countOutcome(d.Strategy, "network")
		return &Result{Entry: entry, Source: SourceNetwork}, nil
	}

	if cached, found := s.lookup(ctx, d.Container, fingerprint); found {
		stale := cache.IsStale(cached, d.MaxAge, time.Now())
		if stale {
			// Documented policy: availability over freshness. The stale
			// entry is served, the condition is only flagged.
			s.logger().Warn("serving stale cached entry while offline",
				zap.String("fingerprint", fingerprint),
				zap.Time("stored_at", cached.StoredAt),
				zap.Duration("max_age", d.MaxAge),
			)
		}
		s.countOutcome(d.Strategy, "cache")
		return &Result{Entry: cached, Source: SourceCache, Stale: stale}, nil
	}

	if d.WithFallback {
		if fb, ok := s.fallback(ctx); ok {
			s.countOutcome(d.Strategy, "fallback")
			return &Result{Entry: fb, Source: SourceFallback}, nil
		}
	}

	s.countOutcome(d.Strategy, "error")
	return nil, appErrors.NewNoFallback("no cached entry and no offline fallback", fetchErr)
}
