// Package fetch performs origin fetches on behalf of the strategies and
// the background refresher.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nimbus-gateway/internal/cache"
	"nimbus-gateway/internal/config"
	"nimbus-gateway/internal/observability"
	appErrors "nimbus-gateway/pkg/errors"
)

// Fetcher is the origin-fetch contract. Strategies and the refresher
// depend on this interface so tests can stub the network.
type Fetcher interface {
	// Do performs the request and returns the response as an entry.
	// Transport failures, timeouts and an open circuit breaker all
	// surface as NETWORK errors. Non-2xx responses are not errors; the
	// entry is returned and its Cacheable method reports false.
	Do(ctx context.Context, method, rawURL string) (*cache.Entry, error)
}

// Client is the production Fetcher: an http.Client guarded by a
// per-request timeout and a circuit breaker.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Collector
}

// NewClient builds a Client from the fetch configuration.
func NewClient(cfg config.Fetch, logger *zap.Logger, metrics *observability.Collector) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "origin",
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval.Std(),
		Timeout:     cfg.Breaker.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.Breaker.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &Client{
		http:    &http.Client{},
		breaker: breaker,
		timeout: cfg.Timeout.Std(),
		logger:  logger,
		metrics: metrics,
	}
}

// Do implements Fetcher.
func (c *Client) Do(ctx context.Context, method, rawURL string) (*cache.Entry, error) {
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		rctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(rctx, strings.ToUpper(method), rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "identity")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		return &cache.Entry{
			Status:  resp.StatusCode,
			Headers: flattenHeader(resp.Header),
			Body:    body,
		}, nil
	})

	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		c.metrics.FetchTotal.WithLabelValues("error").Inc()
		c.logger.Debug("origin fetch failed",
			zap.String("method", method),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return nil, appErrors.NewNetwork(fmt.Sprintf("fetch %s %s", method, rawURL), err)
	}

	entry := result.(*cache.Entry)
	c.metrics.FetchTotal.WithLabelValues(statusClass(entry.Status)).Inc()
	return entry, nil
}

// flattenHeader keeps the first value of each header and drops
// Content-Length, which no longer matches once the body is re-served.
func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
