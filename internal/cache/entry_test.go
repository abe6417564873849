package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nimbus-gateway/internal/cache"
)

func TestFingerprintNormalization(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   string
	}{
		{
			name:   "lowercases scheme and host",
			method: "get",
			url:    "HTTPS://API.Open-Meteo.COM/v1/forecast",
			want:   "GET https://api.open-meteo.com/v1/forecast",
		},
		{
			name:   "strips default https port",
			method: "GET",
			url:    "https://example.com:443/data",
			want:   "GET https://example.com/data",
		},
		{
			name:   "strips default http port",
			method: "GET",
			url:    "http://example.com:80/data",
			want:   "GET http://example.com/data",
		},
		{
			name:   "keeps non-default port",
			method: "GET",
			url:    "http://example.com:8080/data",
			want:   "GET http://example.com:8080/data",
		},
		{
			name:   "drops fragment",
			method: "GET",
			url:    "https://example.com/page#section",
			want:   "GET https://example.com/page",
		},
		{
			name:   "defaults empty path",
			method: "HEAD",
			url:    "https://example.com",
			want:   "HEAD https://example.com/",
		},
		{
			name:   "preserves query",
			method: "GET",
			url:    "https://example.com/v1/forecast?lat=52.52&lon=13.41",
			want:   "GET https://example.com/v1/forecast?lat=52.52&lon=13.41",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cache.Fingerprint(tt.method, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	a, err := cache.Fingerprint("GET", "https://Example.com:443/data#x")
	require.NoError(t, err)
	b, err := cache.Fingerprint("get", "https://example.com/data")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestSplitFingerprint(t *testing.T) {
	fp, err := cache.Fingerprint("GET", "https://example.com/v1/forecast?lat=1")
	require.NoError(t, err)

	method, rawURL, ok := cache.SplitFingerprint(fp)
	require.True(t, ok)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "https://example.com/v1/forecast?lat=1", rawURL)

	_, _, ok = cache.SplitFingerprint("garbage")
	assert.False(t, ok)
}

func TestMethodCacheable(t *testing.T) {
	assert.True(t, cache.MethodCacheable("GET"))
	assert.True(t, cache.MethodCacheable("get"))
	assert.True(t, cache.MethodCacheable("HEAD"))
	assert.False(t, cache.MethodCacheable("POST"))
	assert.False(t, cache.MethodCacheable("PUT"))
	assert.False(t, cache.MethodCacheable("DELETE"))
}

func TestIsStale(t *testing.T) {
	now := time.Now()

	fresh := &cache.Entry{StoredAt: now.Add(-time.Minute)}
	old := &cache.Entry{StoredAt: now.Add(-2 * time.Hour)}
	unstamped := &cache.Entry{}

	assert.False(t, cache.IsStale(fresh, time.Hour, now))
	assert.True(t, cache.IsStale(old, time.Hour, now))

	// Entries without a stored timestamp are infinitely stale.
	assert.True(t, cache.IsStale(unstamped, time.Hour, now))
	assert.True(t, cache.IsStale(nil, time.Hour, now))

	// A class without staleness semantics never reports stale, except
	// for the missing-timestamp case.
	assert.False(t, cache.IsStale(old, 0, now))
	assert.True(t, cache.IsStale(unstamped, 0, now))
}

func TestEntryClone(t *testing.T) {
	original := &cache.Entry{
		Fingerprint: "GET https://example.com/",
		Status:      200,
		Headers:     map[string]string{"Content-Type": "application/json"},
		Body:        []byte(`{"temp":21}`),
		StoredAt:    time.Now(),
	}

	clone := original.Clone()
	clone.Headers["Content-Type"] = "text/plain"
	clone.Body[0] = 'X'

	assert.Equal(t, "application/json", original.Headers["Content-Type"])
	assert.Equal(t, byte('{'), original.Body[0])
}

func TestEntryCacheable(t *testing.T) {
	assert.True(t, (&cache.Entry{Status: 200}).Cacheable())
	assert.True(t, (&cache.Entry{Status: 204}).Cacheable())
	assert.False(t, (&cache.Entry{Status: 301}).Cacheable())
	assert.False(t, (&cache.Entry{Status: 404}).Cacheable())
	assert.False(t, (&cache.Entry{Status: 500}).Cacheable())
}
