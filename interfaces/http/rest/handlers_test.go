package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus-gateway/interfaces/http/rest"
	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/gateway"
	"nimbus-gateway/internal/lifecycle"
	"nimbus-gateway/internal/observability"
	"nimbus-gateway/internal/router"
	"nimbus-gateway/internal/strategy"
	"nimbus-gateway/internal/task"
	"nimbus-gateway/pkg/api"
	appErrors "nimbus-gateway/pkg/errors"
)

type stubFetcher struct {
	mu        sync.Mutex
	responses map[string]*cache.Entry
	err       error
}

func (f *stubFetcher) Do(ctx context.Context, method, rawURL string) (*cache.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if e, ok := f.responses[rawURL]; ok {
		return e.Clone(), nil
	}
	return &cache.Entry{Status: 404}, nil
}

func (f *stubFetcher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type harness struct {
	handler http.Handler
	store   cache.Store
	tasks   *task.Group
}

func newHarness(t *testing.T, fetcher *stubFetcher) *harness {
	t.Helper()

	cfg := config.Default()
	store := cache.NewMemoryStore(nil)
	metrics := observability.NewCollector("test")
	rt := router.New(cfg.Routing, cfg.Staleness)

	lm, err := lifecycle.NewManager(cfg.Version, cfg.Baseline, store, fetcher, nil)
	require.NoError(t, err)

	tasks := task.NewGroup(8)
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
		BackgroundTimeout:   5 * time.Second,
		Metrics:             metrics,
	}

	strategies := map[router.StrategyKind]strategy.Strategy{
		router.StrategyCacheFirst:           strategy.NewCacheFirst(deps),
		router.StrategyNetworkFirst:         strategy.NewNetworkFirst(deps),
		router.StrategyStaleWhileRevalidate: strategy.NewStaleWhileRevalidate(deps),
	}

	gw := gateway.New(store, rt, strategies, lm, nil, fetcher, tasks, nil, metrics)

	return &harness{
		handler: rest.NewRouter(gw, metrics, nil),
		store:   store,
		tasks:   tasks,
	}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_")
}

func TestInterceptServesAndCaches(t *testing.T) {
	const url = "https://app.example.com/assets/app.js"
	fetcher := &stubFetcher{responses: map[string]*cache.Entry{
		url: {Status: 200, Headers: map[string]string{"Content-Type": "text/javascript"}, Body: []byte("asset")},
	}}
	h := newHarness(t, fetcher)

	body := api.InterceptRequest{Method: "GET", URL: url, Destination: "script"}

	rec := h.do(t, http.MethodPost, "/v1/intercept", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "asset", rec.Body.String())
	assert.Equal(t, "text/javascript", rec.Header().Get("Content-Type"))
	assert.Equal(t, "network", rec.Header().Get("X-Nimbus-Cache"))

	h.tasks.Close()

	rec = h.do(t, http.MethodPost, "/v1/intercept", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cache", rec.Header().Get("X-Nimbus-Cache"))
}

func TestInterceptStaleHeader(t *testing.T) {
	const url = "https://app.example.com/api/settings"
	fetcher := &stubFetcher{err: appErrors.NewNetwork("fetch", errors.New("connection refused"))}
	h := newHarness(t, fetcher)

	// Seed an entry far past the api class max age.
	ctx := context.Background()
	fp, err := cache.Fingerprint("GET", url)
	require.NoError(t, err)
	c, err := h.store.Open(ctx, "nimbus-v1.0.0-api")
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, fp, &cache.Entry{
		Fingerprint: fp,
		Status:      200,
		Body:        []byte("old settings"),
		StoredAt:    time.Now().Add(-48 * time.Hour),
	}))

	rec := h.do(t, http.MethodPost, "/v1/intercept", api.InterceptRequest{Method: "GET", URL: url})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "old settings", rec.Body.String())
	assert.Equal(t, "cache, stale", rec.Header().Get("X-Nimbus-Cache"))
}

func TestInterceptValidation(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	req := httptest.NewRequest(http.MethodPost, "/v1/intercept", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/intercept", api.InterceptRequest{Method: "GET"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterceptOfflineWithoutCacheIs503(t *testing.T) {
	fetcher := &stubFetcher{err: appErrors.NewNetwork("fetch", errors.New("connection refused"))}
	h := newHarness(t, fetcher)

	rec := h.do(t, http.MethodPost, "/v1/intercept", api.InterceptRequest{
		Method: "GET",
		URL:    "https://app.example.com/api/settings",
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Error)
}

func TestInterceptBypassNetworkErrorIs502(t *testing.T) {
	fetcher := &stubFetcher{err: appErrors.NewNetwork("fetch", errors.New("connection refused"))}
	h := newHarness(t, fetcher)

	rec := h.do(t, http.MethodPost, "/v1/intercept", api.InterceptRequest{
		Method: "POST",
		URL:    "https://app.example.com/api/submit",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestLifecycleEndpoints(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodPost, "/v1/lifecycle/initialize", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var status gateway.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, lifecycle.StateActivePending, status.State)
	assert.Contains(t, status.Containers, "nimbus-v1.0.0-static")

	rec = h.do(t, http.MethodPost, "/v1/lifecycle/activate", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/v1/status", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, lifecycle.StateActive, status.State)
}

func TestControlCommands(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodPost, "/v1/lifecycle/initialize", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/control", api.ControlRequest{Type: api.ControlActivateNow})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/control", api.ControlRequest{Type: api.ControlPurgeAll})
	assert.Equal(t, http.StatusOK, rec.Code)

	var status gateway.Status
	rec = h.do(t, http.MethodGet, "/v1/status", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Empty(t, status.Containers)

	rec = h.do(t, http.MethodPost, "/v1/control", api.ControlRequest{Type: "reboot"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodPost, "/v1/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	h := newHarness(t, &stubFetcher{})

	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
