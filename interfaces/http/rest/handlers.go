package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"nimbus-gateway/internal/gateway"
	"nimbus-gateway/internal/strategy"
	"nimbus-gateway/pkg/api"
	appErrors "nimbus-gateway/pkg/errors"
)

// Handlers exposes the gateway over HTTP.
type Handlers struct {
	gateway *gateway.Gateway
	logger  *zap.Logger
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(gw *gateway.Gateway, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{gateway: gw, logger: logger}
}

// Intercept handles POST /v1/intercept. The served entry is written
// back as a raw HTTP response: the entry's headers, status and body,
// plus an X-Nimbus-Cache header describing where it came from.
func (h *Handlers) Intercept(w http.ResponseWriter, r *http.Request) {
	var req api.InterceptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid intercept request body")
		return
	}
	if req.Method == "" || req.URL == "" {
		api.Error(w, http.StatusBadRequest, "method and url are required")
		return
	}

	result, err := h.gateway.Intercept(r.Context(), gateway.Request{
		Method:       req.Method,
		URL:          req.URL,
		Destination:  req.Destination,
		IsNavigation: req.IsNavigation,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	for k, v := range result.Entry.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("X-Nimbus-Cache", cacheHeader(result))
	w.WriteHeader(result.Entry.Status)
	_, _ = w.Write(result.Entry.Body)
}

// Control handles POST /v1/control: the out-of-band command channel.
func (h *Handlers) Control(w http.ResponseWriter, r *http.Request) {
	var req api.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid control request body")
		return
	}

	var err error
	switch req.Type {
	case api.ControlActivateNow:
		err = h.gateway.ActivateNow(r.Context())
	case api.ControlPurgeAll:
		err = h.gateway.PurgeAll(r.Context())
	default:
		api.Error(w, http.StatusBadRequest, "unknown control command type")
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "ok"})
}

// Initialize handles POST /v1/lifecycle/initialize.
func (h *Handlers) Initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.Initialize(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "installed"})
}

// Activate handles POST /v1/lifecycle/activate.
func (h *Handlers) Activate(w http.ResponseWriter, r *http.Request) {
	if err := h.gateway.ActivatePending(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "active"})
}

// Refresh handles POST /v1/refresh: one refresh pass outside the
// schedule.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	h.gateway.RefreshNow(r.Context())
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "refreshed"})
}

// GetStatus handles GET /v1/status.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.gateway.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.Success(w, http.StatusOK, status)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, api.StatusResponse{Status: "healthy"})
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsValidation(err):
		api.Error(w, http.StatusBadRequest, err.Error())
	case appErrors.IsNetwork(err):
		api.Error(w, http.StatusBadGateway, "origin unreachable")
	case appErrors.IsNoFallback(err):
		api.Error(w, http.StatusServiceUnavailable, "no cached entry and origin unreachable")
	default:
		h.logger.Error("request failed", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func cacheHeader(result *strategy.Result) string {
	out := string(result.Source)
	if result.Stale {
		out += ", stale"
	}
	return out
}
