// Package rest is the HTTP surface of the gateway: the interception
// boundary, the lifecycle signals, the control channel and the
// observability endpoints.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"nimbus-gateway/internal/gateway"
	"nimbus-gateway/internal/observability"
)

// NewRouter builds the chi router for the gateway.
func NewRouter(gw *gateway.Gateway, metrics *observability.Collector, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandlers(gw, logger)

	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Nimbus-Cache", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/intercept", h.Intercept)
		r.Post("/control", h.Control)
		r.Post("/refresh", h.Refresh)
		r.Get("/status", h.GetStatus)
		r.Route("/lifecycle", func(r chi.Router) {
			r.Post("/initialize", h.Initialize)
			r.Post("/activate", h.Activate)
		})
	})

	return r
}
