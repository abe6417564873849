package cache

import "context"

// Store is the only shared mutable resource in the gateway. Every
// component reaches the underlying storage exclusively through these
// operations; nobody holds a direct reference to the backing medium.
//
// Containers are created lazily on the first write and are listed only
// once they hold data. Creating and deleting containers is the
// lifecycle manager's exclusive privilege; strategies only read and
// write entries within one.
type Store interface {
	// Open returns a handle for the named container. Opening never
	// creates anything on its own.
	Open(ctx context.Context, name string) (Container, error)

	// ListContainers returns the names of all containers that currently
	// hold at least one entry.
	ListContainers(ctx context.Context) ([]string, error)

	// DeleteContainer removes a container and all of its entries.
	// Deleting an absent container is a no-op.
	DeleteContainer(ctx context.Context, name string) error

	Close() error
}

// Container is a named cache namespace keyed by request fingerprint.
//
// Put is atomic per entry: a concurrent reader observes either the
// previous entry or the new one, never a torn write. Put of an existing
// fingerprint re-inserts it at the back of the insertion order, so an
// overwrite counts as the most recent insertion for FIFO eviction.
//
// Get, Put, Delete and ListKeys are safe under concurrent invocation.
type Container interface {
	Name() string

	// Get returns the entry for the fingerprint, or found=false when
	// absent.
	Get(ctx context.Context, fingerprint string) (entry *Entry, found bool, err error)

	// Put stores the entry under the fingerprint, overwriting any
	// previous value.
	Put(ctx context.Context, fingerprint string, entry *Entry) error

	// Delete removes the fingerprint. Deleting an absent key is a no-op.
	Delete(ctx context.Context, fingerprint string) error

	// ListKeys returns all fingerprints in insertion order, oldest
	// first.
	ListKeys(ctx context.Context) ([]string, error)
}
