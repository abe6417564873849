// Package di wires the gateway's components together. Construction is
// explicit and happens exactly once at process start; every dependency
// is passed down, never reached through a global.
package di

import (
	"fmt"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/gateway"
	"nimbus-gateway/internal/lifecycle"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/router"
	"nimbus-gateway/internal/scheduler"
	"nimbus-gateway/internal/strategy"
	"nimbus-gateway/internal/task"
)

// backgroundTaskLimit bounds concurrent fire-and-forget work
// (stale-while-revalidate refreshes and detached cache writes).
const backgroundTaskLimit = 32

// Container holds the fully constructed object graph.
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *observability.Collector
	Store     cache.Store
	Fetcher   *fetch.Client
	Router    *router.Router
	Lifecycle *lifecycle.Manager
	Tasks     *task.Group
	Refresher *scheduler.Refresher
	Gateway   *gateway.Gateway
}

// NewContainer constructs the whole gateway from configuration.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	metrics := observability.NewCollector("nimbus")

	store, err := newStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewClient(cfg.Fetch, logger, metrics)
	rt := router.New(cfg.Routing, cfg.Staleness)

	lm, err := lifecycle.NewManager(cfg.Version, cfg.Baseline, store, fetcher, logger)
	if err != nil {
		return nil, err
	}

	tasks := task.NewGroup(backgroundTaskLimit)

	deps := strategy.Deps{
		Store:    store,
		Resolver: lm,
		Fetcher:  fetcher,
		Tasks:    tasks,
		Limits: map[string]int{
			router.ContainerDynamic: cfg.Containers.DynamicMaxEntries,
			router.ContainerAPI:     cfg.Containers.APIMaxEntries,
		},
		FallbackFingerprint: lm.FallbackFingerprint(),
		BackgroundTimeout:   cfg.Fetch.Timeout.Std(),
		Logger:              logger,
		Metrics:             metrics,
	}

	strategies := map[router.StrategyKind]strategy.Strategy{
		router.StrategyCacheFirst:           strategy.NewCacheFirst(deps),
		router.StrategyNetworkFirst:         strategy.NewNetworkFirst(deps),
		router.StrategyStaleWhileRevalidate: strategy.NewStaleWhileRevalidate(deps),
	}

	var refresher *scheduler.Refresher
	if cfg.Refresh.Enabled {
		refresher = scheduler.NewRefresher(
			cfg.Refresh,
			cfg.Containers.APIMaxEntries,
			store,
			lm,
			fetcher,
			logger,
			metrics,
		)
	}

	gw := gateway.New(store, rt, strategies, lm, refresher, fetcher, tasks, logger, metrics)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Store:     store,
		Fetcher:   fetcher,
		Router:    rt,
		Lifecycle: lm,
		Tasks:     tasks,
		Refresher: refresher,
		Gateway:   gw,
	}, nil
}

// Shutdown tears the graph down in reverse order.
func (c *Container) Shutdown() error {
	return c.Gateway.Close()
}

func newStore(cfg config.Store, logger *zap.Logger) (cache.Store, error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemoryStore(logger), nil
	case "leveldb":
		return cache.NewLevelDBStore(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
