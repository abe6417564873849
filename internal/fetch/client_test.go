package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/fetch"
	"nimbus-gateway/internal/observability"
	appErrors "nimbus-gateway/pkg/errors"
)

func testFetchConfig() config.Fetch {
	return config.Fetch{
		Timeout: config.Duration(5 * time.Second),
		Breaker: config.Breaker{
			MaxRequests:      5,
			Interval:         config.Duration(30 * time.Second),
			Timeout:          config.Duration(60 * time.Second),
			FailureThreshold: 0.8,
			// High enough that single-failure tests never trip it.
			MinRequests: 100,
		},
	}
}

func newClient(t *testing.T) *fetch.Client {
	t.Helper()
	return fetch.NewClient(testFetchConfig(), nil, observability.NewCollector("test"))
}

func TestClientReturnsEntry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Add("X-Multi", "first")
		w.Header().Add("X-Multi", "second")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"temp":21}`))
	}))
	defer srv.Close()

	c := newClient(t)
	entry, err := c.Do(context.Background(), "get", srv.URL+"/v1/forecast")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, []byte(`{"temp":21}`), entry.Body)
	assert.Equal(t, "application/json", entry.Headers["Content-Type"])
	// Multi-value headers keep their first value.
	assert.Equal(t, "first", entry.Headers["X-Multi"])
	// Content-Length is dropped; the body may be re-served differently.
	_, ok := entry.Headers["Content-Length"]
	assert.False(t, ok)
	assert.True(t, entry.Cacheable())
}

func TestClientNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(t)
	entry, err := c.Do(context.Background(), "GET", srv.URL+"/missing")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, entry.Status)
	assert.False(t, entry.Cacheable())
}

func TestClientTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing is listening any more

	c := newClient(t)
	_, err := c.Do(context.Background(), "GET", srv.URL+"/v1/forecast")
	require.Error(t, err)
	assert.True(t, appErrors.IsNetwork(err))
}

func TestClientHonorsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	cfg := testFetchConfig()
	cfg.Timeout = config.Duration(50 * time.Millisecond)
	c := fetch.NewClient(cfg, nil, observability.NewCollector("test"))

	start := time.Now()
	_, err := c.Do(context.Background(), "GET", srv.URL+"/slow")
	require.Error(t, err)
	assert.True(t, appErrors.IsNetwork(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	cfg := testFetchConfig()
	cfg.Breaker.MinRequests = 3
	cfg.Breaker.FailureThreshold = 0.5
	c := fetch.NewClient(cfg, nil, observability.NewCollector("test"))

	// Every failure, open circuit included, surfaces as a network error.
	for i := 0; i < 6; i++ {
		_, err := c.Do(context.Background(), "GET", srv.URL+"/v1/forecast")
		require.Error(t, err)
		assert.True(t, appErrors.IsNetwork(err))
	}
}
