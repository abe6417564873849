// Package gateway ties the router, strategies, lifecycle manager and
// refresher into the single object the host application talks to.
// It is constructed once at process start with injected configuration;
// there are no package-level globals.
package gateway

import (
	"context"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/lifecycle"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/router"
	"nimbus-gateway/internal/scheduler"
	"nimbus-gateway/internal/strategy"
	"nimbus-gateway/internal/task"
)

// Request is the interception event as seen by callers of the gateway.
type Request = router.Request

// Gateway is the interception boundary: one instance owns the store,
// the strategy table and the background machinery.
type Gateway struct {
	store      cache.Store
	router     *router.Router
	strategies map[router.StrategyKind]strategy.Strategy
	lifecycle  *lifecycle.Manager
	refresher  *scheduler.Refresher
	fetcher    fetch.Fetcher
	tasks      *task.Group
	logger     *zap.Logger
	metrics    *observability.Collector
}

// New assembles a gateway from its collaborators.
func New(
	store cache.Store,
	rt *router.Router,
	strategies map[router.StrategyKind]strategy.Strategy,
	lm *lifecycle.Manager,
	refresher *scheduler.Refresher,
	fetcher fetch.Fetcher,
	tasks *task.Group,
	logger *zap.Logger,
	metrics *observability.Collector,
) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		store:      store,
		router:     rt,
		strategies: strategies,
		lifecycle:  lm,
		refresher:  refresher,
		fetcher:    fetcher,
		tasks:      tasks,
		logger:     logger,
		metrics:    metrics,
	}
}

// Intercept handles one outgoing request from the host application.
// Requests the router rejects pass straight through to the origin with
// no caching on either side.
func (g *Gateway) Intercept(ctx context.Context, req router.Request) (*strategy.Result, error) {
	decision := g.router.Classify(req)

	if decision.Bypass {
		entry, err := g.fetcher.Do(ctx, req.Method, req.URL)
		if err != nil {
			g.metrics.InterceptTotal.WithLabelValues("bypass", "error").Inc()
			return nil, err
		}
		g.metrics.InterceptTotal.WithLabelValues("bypass", "network").Inc()
		return &strategy.Result{Entry: entry, Source: strategy.SourceNetwork}, nil
	}

	return g.strategies[decision.Strategy].Serve(ctx, req, decision)
}

// Initialize handles the host's "initialize" lifecycle signal.
func (g *Gateway) Initialize(ctx context.Context) error {
	return g.lifecycle.Install(ctx)
}

// ActivatePending handles the host's "activate-pending-version" signal.
func (g *Gateway) ActivatePending(ctx context.Context) error {
	return g.lifecycle.Activate(ctx)
}

// ActivateNow is the control-channel command that skips the normal
// transition delay. Idempotent.
func (g *Gateway) ActivateNow(ctx context.Context) error {
	g.logger.Info("activate-now requested")
	return g.lifecycle.Activate(ctx)
}

// PurgeAll is the control-channel full reset: every container of every
// version is deleted. Idempotent.
func (g *Gateway) PurgeAll(ctx context.Context) error {
	g.logger.Info("purge-all requested")
	return g.lifecycle.PurgeAll(ctx)
}

// Status describes the gateway for the status endpoint.
type Status struct {
	State      lifecycle.State `json:"state"`
	Containers []string        `json:"containers"`
}

// Status reports the lifecycle state and the live container set.
func (g *Gateway) Status(ctx context.Context) (*Status, error) {
	containers, err := g.lifecycle.Containers(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{State: g.lifecycle.State(), Containers: containers}, nil
}

// StartBackground launches the refresh scheduler.
func (g *Gateway) StartBackground() {
	if g.refresher != nil {
		g.refresher.Start()
	}
}

// RefreshNow triggers one refresh pass outside the schedule.
func (g *Gateway) RefreshNow(ctx context.Context) {
	if g.refresher != nil {
		g.refresher.Tick(ctx)
	}
}

// Close stops the scheduler, waits for all fire-and-forget work and
// closes the store.
func (g *Gateway) Close() error {
	if g.refresher != nil {
		g.refresher.Stop()
	}
	g.tasks.Close()
	return g.store.Close()
}
