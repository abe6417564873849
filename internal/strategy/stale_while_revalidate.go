package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/router"
)

// StaleWhileRevalidate returns the cached entry immediately when one
// exists and refreshes it in the background; the caller never waits on
// the revalidation. Only a cache miss makes the caller wait on the
// network.
type StaleWhileRevalidate struct {
	Deps
}

// NewStaleWhileRevalidate creates the stale-while-revalidate strategy.
func NewStaleWhileRevalidate(deps Deps) *StaleWhileRevalidate {
	return &StaleWhileRevalidate{Deps: deps}
}

// Serve implements Strategy.
func (s *StaleWhileRevalidate) Serve(ctx context.Context, req router.Request, d router.Decision) (*Result, error) {
	fingerprint, err := cache.Fingerprint(req.Method, req.URL)
	if err != nil {
		return nil, err
	}

	if cached, found := s.lookup(ctx, d.Container, fingerprint); found {
		s.revalidate(req, d, fingerprint)
		s.countOutcome(d.Strategy, "hit")
		return &Result{
			Entry:  cached,
			Source: SourceCache,
			Stale:  cache.IsStale(cached, d.MaxAge, time.Now()),
		}, nil
	}

	// Nothing cached: the caller waits on the network result.
	entry, err := s.Fetcher.Do(ctx, req.Method, req.URL)
	if err != nil {
		s.countOutcome(d.Strategy, "error")
		return nil, err
	}
	if entry.Cacheable() {
		s.store(ctx, d.Container, fingerprint, entry)
	}
	s.countOutcome(d.Strategy, "network")
	return &Result{Entry: entry, Source: SourceNetwork}, nil
}

// revalidate refreshes the entry on the task group. The task is
// tracked, its failure is logged, and it never reaches the caller.
func (s *StaleWhileRevalidate) revalidate(req router.Request, d router.Decision, fingerprint string) {
	launched := s.Tasks.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.BackgroundTimeout)
		defer cancel()

		entry, err := s.Fetcher.Do(ctx, req.Method, req.URL)
		if err != nil {
			s.logger().Warn("background revalidation failed",
				zap.String("fingerprint", fingerprint),
				zap.Error(err),
			)
			return
		}
		if !entry.Cacheable() {
			s.logger().Debug("background revalidation returned non-2xx, keeping cached entry",
				zap.String("fingerprint", fingerprint),
				zap.Int("status", entry.Status),
			)
			return
		}
		s.store(ctx, d.Container, fingerprint, entry)
	})
	if !launched {
		s.logger().Debug("revalidation skipped, task group saturated",
			zap.String("fingerprint", fingerprint),
		)
	}
}
