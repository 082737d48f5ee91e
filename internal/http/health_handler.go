package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	store     Pinger
	cached    func() int
	timeout   time.Duration
	responder responder
	logger    *slog.Logger
}

// NewHealthHandler builds a health handler. store and cached may be nil.
func NewHealthHandler(store Pinger, cached func() int, logger *slog.Logger) *HealthHandler {
	base := defaultLogger(logger)
	return &HealthHandler{store: store, cached: cached, timeout: 2 * time.Second, responder: newResponder(base), logger: base}
}

type healthResponse struct {
	Status        string `json:"status"`
	CachedTenants *int   `json:"cached_tenants,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := healthResponse{Status: "ok"}
	if h.cached != nil {
		count := h.cached()
		response.CachedTenants = &count
	}

	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			handlerLogger(r.Context(), h.logger, "HealthHandler", "Check").WarnContext(r.Context(), "store ping failed", "error", err)
			response.Status = "unavailable"
			h.responder.writeJSON(r.Context(), w, http.StatusServiceUnavailable, response)
			return
		}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, response)
}
