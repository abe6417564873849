package strategy

import (
	"context"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/router"
)

// CacheFirst serves static assets: once an entry exists it is returned
// without ever touching the network again. Entries are replaced only by
// a full version activation.
type CacheFirst struct {
	Deps
}

// NewCacheFirst creates the cache-first strategy.
func NewCacheFirst(deps Deps) *CacheFirst {
	return &CacheFirst{Deps: deps}
}

// Serve implements Strategy.
func (s *CacheFirst) Serve(ctx context.Context, req router.Request, d router.Decision) (*Result, error) {
	fingerprint, err := cache.Fingerprint(req.Method, req.URL)
	if err != nil {
		return nil, err
	}

	if entry, found := s.lookup(ctx, d.Container, fingerprint); found {
		s.countOutcome(d.Strategy, "hit")
		return &Result{Entry: entry, Source: SourceCache}, nil
	}

	entry, err := s.Fetcher.Do(ctx, req.Method, req.URL)
	if err != nil {
		if fb, ok := s.fallback(ctx); ok {
			s.countOutcome(d.Strategy, "fallback")
			return &Result{Entry: fb, Source: SourceFallback}, nil
		}
		s.countOutcome(d.Strategy, "error")
		return nil, err
	}

	if entry.Cacheable() {
		// The caller gets the response without waiting on the write.
		s.storeAsync(d.Container, fingerprint, entry)
	}

	s.countOutcome(d.Strategy, "network")
	return &Result{Entry: entry, Source: SourceNetwork}, nil
}
