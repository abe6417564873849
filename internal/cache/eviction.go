package cache

import (
	"context"

	"go.uber.org/zap"
)

// EnforceLimit bounds a container to maxEntries using strict FIFO:
// when the container holds more, the oldest-inserted keys are deleted
// first until the bound holds. Insertion time, not last access,
// determines the order. maxEntries <= 0 leaves the container unbounded.
//
// Strategies call this synchronously after every successful write to a
// bounded container. It returns the number of evicted entries.
func EnforceLimit(ctx context.Context, c Container, maxEntries int, logger *zap.Logger) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	keys, err := c.ListKeys(ctx)
	if err != nil {
		return 0, err
	}
	excess := len(keys) - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	evicted := 0
	for _, key := range keys[:excess] {
		if err := c.Delete(ctx, key); err != nil {
			logger.Warn("eviction delete failed",
				zap.String("container", c.Name()),
				zap.String("fingerprint", key),
				zap.Error(err),
			)
			continue
		}
		evicted++
	}
	if evicted > 0 {
		logger.Debug("evicted oldest entries",
			zap.String("container", c.Name()),
			zap.Int("count", evicted),
		)
	}
	return evicted, nil
}
