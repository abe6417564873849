package cache

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory Store implementation. It is thread-safe
// and suitable for tests and single-instance deployments that do not
// need the cache to survive a restart.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]*memoryContainer
	logger     *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		containers: make(map[string]*memoryContainer),
		logger:     logger,
	}
}

func (s *MemoryStore) Open(ctx context.Context, name string) (Container, error) {
	return &memoryContainer{store: s, name: name}, nil
}

func (s *MemoryStore) ListContainers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.containers))
	for name := range s.containers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) DeleteContainer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.containers[name]; ok {
		delete(s.containers, name)
		s.logger.Debug("deleted container", zap.String("container", name))
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// materialize returns the backing state for a container, creating it on
// first use. Containers come into being on the first write.
func (s *MemoryStore) materialize(name string) *memoryContainer {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.containers[name]
	if !ok {
		c = &memoryContainer{store: s, name: name}
		c.init()
		s.containers[name] = c
	}
	return c
}

func (s *MemoryStore) lookup(name string) (*memoryContainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[name]
	return c, ok
}

// memoryContainer holds entries plus a separate order slice tracking
// insertion order for FIFO eviction. A handle returned by Open proxies
// to the registered instance so that handles created before the first
// write still observe later state.
type memoryContainer struct {
	store *MemoryStore
	name  string

	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

func (c *memoryContainer) init() {
	c.entries = make(map[string]*Entry)
}

func (c *memoryContainer) Name() string { return c.name }

func (c *memoryContainer) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	backing, ok := c.store.lookup(c.name)
	if !ok {
		return nil, false, nil
	}

	backing.mu.RLock()
	defer backing.mu.RUnlock()

	e, ok := backing.entries[fingerprint]
	if !ok {
		return nil, false, nil
	}
	return e.Clone(), true, nil
}

func (c *memoryContainer) Put(ctx context.Context, fingerprint string, entry *Entry) error {
	backing := c.store.materialize(c.name)

	backing.mu.Lock()
	defer backing.mu.Unlock()

	if _, exists := backing.entries[fingerprint]; exists {
		backing.removeFromOrder(fingerprint)
	}
	backing.entries[fingerprint] = entry.Clone()
	backing.order = append(backing.order, fingerprint)
	return nil
}

func (c *memoryContainer) Delete(ctx context.Context, fingerprint string) error {
	backing, ok := c.store.lookup(c.name)
	if !ok {
		return nil
	}

	backing.mu.Lock()
	defer backing.mu.Unlock()

	if _, exists := backing.entries[fingerprint]; exists {
		delete(backing.entries, fingerprint)
		backing.removeFromOrder(fingerprint)
	}
	return nil
}

func (c *memoryContainer) ListKeys(ctx context.Context) ([]string, error) {
	backing, ok := c.store.lookup(c.name)
	if !ok {
		return nil, nil
	}

	backing.mu.RLock()
	defer backing.mu.RUnlock()

	keys := make([]string, len(backing.order))
	copy(keys, backing.order)
	return keys, nil
}

// removeFromOrder must be called with the write lock held.
func (c *memoryContainer) removeFromOrder(fingerprint string) {
	for i, k := range c.order {
		if k == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
