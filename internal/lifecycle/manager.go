// Package lifecycle owns the versioned cache containers. It is the only
// component that creates or deletes containers; every other component
// just reads and writes entries within one.
package lifecycle

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/router"
)

// State is the lifecycle state of the current version. Moves are
// one-way; there is no rollback path.
type State string

const (
	StateNew           State = "new"
	StateInstalling    State = "installing"
	StateActivePending State = "active_pending"
	StateActive        State = "active"
)

// Manager installs and activates cache versions. Container names are
// "<prefix>-<tag>-<logical>"; during the transition window containers
// of a superseded version remain reachable, and activation deletes
// every container not carrying the current version tag.
type Manager struct {
	mu      sync.Mutex
	state   State
	store   cache.Store
	fetcher fetch.Fetcher
	logger  *zap.Logger

	prefix   string
	tag      string
	baseline config.Baseline

	fallbackFingerprint string
}

// NewManager builds a manager for the configured version.
func NewManager(version config.Version, baseline config.Baseline, store cache.Store, fetcher fetch.Fetcher, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fallbackFP, err := cache.Fingerprint("GET", baseline.OfflineURL)
	if err != nil {
		return nil, err
	}

	return &Manager{
		state:               StateNew,
		store:               store,
		fetcher:             fetcher,
		logger:              logger,
		prefix:              version.Prefix,
		tag:                 version.Tag,
		baseline:            baseline,
		fallbackFingerprint: fallbackFP,
	}, nil
}

// Resolve maps a logical container name to the live versioned name.
func (m *Manager) Resolve(logical string) string {
	return m.prefix + "-" + m.tag + "-" + logical
}

// FallbackFingerprint is the key of the seeded offline fallback entry.
func (m *Manager) FallbackFingerprint() string {
	return m.fallbackFingerprint
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Install seeds the current version's baseline entries: the offline
// fallback page from configuration, always, plus a best-effort
// pre-fetch of the configured precache URLs. A single failing baseline
// entry never aborts the install.
func (m *Manager) Install(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateInstalling
	m.mu.Unlock()

	static, err := m.store.Open(ctx, m.Resolve(router.ContainerStatic))
	if err != nil {
		return err
	}

	fallback := &cache.Entry{
		Fingerprint: m.fallbackFingerprint,
		Status:      200,
		Headers:     map[string]string{"Content-Type": m.baseline.OfflineContentType},
		Body:        []byte(m.baseline.OfflineBody),
		StoredAt:    time.Now(),
	}
	if err := static.Put(ctx, m.fallbackFingerprint, fallback); err != nil {
		// Without the fallback page offline navigation has nothing to
		// show; this one is fatal to the install.
		return err
	}

	for _, rawURL := range m.baseline.PrecacheURLs {
		if err := m.precache(ctx, static, rawURL); err != nil {
			m.logger.Warn("baseline precache failed, skipping entry",
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}
	}

	m.mu.Lock()
	m.state = StateActivePending
	m.mu.Unlock()

	m.logger.Info("install complete",
		zap.String("version", m.tag),
		zap.Int("precache_urls", len(m.baseline.PrecacheURLs)),
	)
	return nil
}

func (m *Manager) precache(ctx context.Context, static cache.Container, rawURL string) error {
	fingerprint, err := cache.Fingerprint("GET", rawURL)
	if err != nil {
		return err
	}
	entry, err := m.fetcher.Do(ctx, "GET", rawURL)
	if err != nil {
		return err
	}
	if !entry.Cacheable() {
		m.logger.Warn("baseline precache returned non-2xx, skipping entry",
			zap.String("url", rawURL),
			zap.Int("status", entry.Status),
		)
		return nil
	}
	entry.Fingerprint = fingerprint
	entry.StoredAt = time.Now()
	return static.Put(ctx, fingerprint, entry)
}

// Activate deletes every container that does not belong to the current
// version and marks the version active. Calling it again without an
// intervening install is a no-op with respect to container membership.
func (m *Manager) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.store.ListContainers(ctx)
	if err != nil {
		return err
	}

	livePrefix := m.prefix + "-" + m.tag + "-"
	for _, name := range names {
		if strings.HasPrefix(name, livePrefix) {
			continue
		}
		if err := m.store.DeleteContainer(ctx, name); err != nil {
			m.logger.Warn("failed to delete superseded container",
				zap.String("container", name),
				zap.Error(err),
			)
			continue
		}
		m.logger.Info("deleted superseded container", zap.String("container", name))
	}

	m.state = StateActive
	return nil
}

// PurgeAll deletes every container regardless of version. Used for a
// full reset; idempotent.
func (m *Manager) PurgeAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names, err := m.store.ListContainers(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := m.store.DeleteContainer(ctx, name); err != nil {
			return err
		}
	}
	m.logger.Info("purged all containers", zap.Int("count", len(names)))
	return nil
}

// Containers lists the containers currently holding data.
func (m *Manager) Containers(ctx context.Context) ([]string, error) {
	return m.store.ListContainers(ctx)
}
