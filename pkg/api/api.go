// Package api defines the contracts for the gateway's HTTP surface.
// It decouples the wire structure from the internal types.
package api

import (
	"encoding/json"
	"net/http"
)

// InterceptRequest is the body of POST /v1/intercept: the
// "intercept-request" event from the host application.
type InterceptRequest struct {
	Method       string `json:"method"`
	URL          string `json:"url"`
	Destination  string `json:"destination,omitempty"`
	IsNavigation bool   `json:"isNavigation,omitempty"`
}

// ControlRequest is the body of POST /v1/control.
type ControlRequest struct {
	Type string `json:"type"`
}

// Control command types.
const (
	ControlActivateNow = "activate-now"
	ControlPurgeAll    = "purge-all"
)

// ErrorResponse is a standardized error message for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse acknowledges a control or lifecycle command.
type StatusResponse struct {
	Status string `json:"status"`
}

// Success formats a successful JSON response.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// Error formats a JSON error response.
func Error(w http.ResponseWriter, statusCode int, message string) {
	Success(w, statusCode, ErrorResponse{Error: message})
}
