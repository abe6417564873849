package strategy_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/strategy"
	"nimbus-gateway/internal/task"
	appErrors "nimbus-gateway/pkg/errors"
)

const offlineURL = "app:///offline"

// stubFetcher is a scriptable Fetcher. Responses are keyed by URL; an
// optional gate blocks every fetch until released, which lets tests
// prove a code path never waited on the network.
type stubFetcher struct {
	mu        sync.Mutex
	calls     int
	responses map[string]*cache.Entry
	err       error
	gate      chan struct{}
}

func (f *stubFetcher) Do(ctx context.Context, method, rawURL string) (*cache.Entry, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.responses[rawURL]; ok {
		return e.Clone(), nil
	}
	return &cache.Entry{Status: 404}, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func networkDown() error {
	return appErrors.NewNetwork("fetch", errors.New("connection refused"))
}

// versionResolver maps logical names the way the lifecycle manager
// does, with a fixed version tag.
type versionResolver struct{}

func (versionResolver) Resolve(logical string) string { return "nimbus-v1-" + logical }

func newDeps(t *testing.T, store cache.Store, fetcher *stubFetcher) strategy.Deps {
	t.Helper()

	fallbackFP, err := cache.Fingerprint("GET", offlineURL)
	require.NoError(t, err)

	return strategy.Deps{
		Store:    store,
		Resolver: versionResolver{},
		Fetcher:  fetcher,
		Tasks:    task.NewGroup(8),
		Limits: map[string]int{
			"dynamic": 50,
			"api":     100,
		},
		FallbackFingerprint: fallbackFP,
		BackgroundTimeout:   5 * time.Second,
		Logger:              zap.NewNop(),
		Metrics:             observability.NewCollector("test"),
	}
}

func seedFallback(t *testing.T, store cache.Store) {
	t.Helper()

	ctx := context.Background()
	fallbackFP, err := cache.Fingerprint("GET", offlineURL)
	require.NoError(t, err)

	c, err := store.Open(ctx, versionResolver{}.Resolve("static"))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, fallbackFP, &cache.Entry{
		Fingerprint: fallbackFP,
		Status:      200,
		Headers:     map[string]string{"Content-Type": "text/html"},
		Body:        []byte("offline page"),
		StoredAt:    time.Now(),
	}))
}

func seedEntry(t *testing.T, store cache.Store, logical, method, rawURL, body string, storedAt time.Time) string {
	t.Helper()

	ctx := context.Background()
	fp, err := cache.Fingerprint(method, rawURL)
	require.NoError(t, err)

	c, err := store.Open(ctx, versionResolver{}.Resolve(logical))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, fp, &cache.Entry{
		Fingerprint: fp,
		Status:      200,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        []byte(body),
		StoredAt:    storedAt,
	}))
	return fp
}

func containerEntry(t *testing.T, store cache.Store, logical, fp string) (*cache.Entry, bool) {
	t.Helper()

	ctx := context.Background()
	c, err := store.Open(ctx, versionResolver{}.Resolve(logical))
	require.NoError(t, err)
	e, found, err := c.Get(ctx, fp)
	require.NoError(t, err)
	return e, found
}

func containerKeys(t *testing.T, store cache.Store, logical string) []string {
	t.Helper()

	ctx := context.Background()
	c, err := store.Open(ctx, versionResolver{}.Resolve(logical))
	require.NoError(t, err)
	keys, err := c.ListKeys(ctx)
	require.NoError(t, err)
	return keys
}
