package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bft-labs/taverna/pkg/lifecycle"
)

// StateSource reports the bot lifecycle state.
type StateSource interface {
	State() lifecycle.State
}

// ReadinessSource reports per-extension readiness.
type ReadinessSource interface {
	AllReady() bool
	Snapshot() map[string]bool
}

// StoreChecker pings the datastore.
type StoreChecker interface {
	Healthcheck(ctx context.Context) error
}

// Response is the body of every health endpoint.
type Response struct {
	Status     string          `json:"status"`
	State      string          `json:"state,omitempty"`
	Extensions map[string]bool `json:"extensions,omitempty"`
	Latency    string          `json:"latency,omitempty"`
	Error      string          `json:"error,omitempty"`
}

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Handler serves the health endpoints.
type Handler struct {
	state     StateSource
	readiness ReadinessSource
	store     StoreChecker
}

// NewHandler creates a handler. Any source may be nil, in which case the
// matching probe reports unhealthy.
func NewHandler(state StateSource, readiness ReadinessSource, store StoreChecker) *Handler {
	return &Handler{state: state, readiness: readiness, store: store}
}

// Liveness handles GET /health.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	resp := Response{Status: statusHealthy}
	if h.state != nil {
		resp.State = h.state.State().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Readiness handles GET /health/ready. It succeeds only while the bot is
// serving and every extension is ready.
func (h *Handler) Readiness(w http.ResponseWriter, _ *http.Request) {
	if h.state == nil || h.readiness == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Status: statusUnhealthy, Error: "bot not initialized"})
		return
	}

	state := h.state.State()
	resp := Response{
		State:      state.String(),
		Extensions: h.readiness.Snapshot(),
	}
	switch {
	case state != lifecycle.StateServing:
		resp.Status = statusUnhealthy
		resp.Error = "bot not serving"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case !h.readiness.AllReady():
		resp.Status = statusUnhealthy
		resp.Error = "extensions not ready"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		resp.Status = statusHealthy
		writeJSON(w, http.StatusOK, resp)
	}
}

// Store handles GET /health/store.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Status: statusUnhealthy, Error: "store not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.store.Healthcheck(ctx)
	latency := time.Since(start).String()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Status: statusUnhealthy, Latency: latency, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Response{Status: statusHealthy, Latency: latency})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
