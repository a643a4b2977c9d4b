package http

import (
	"net/http"
	"time"

	"github.com/haneul-labs/keyshare/internal/api/store"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

// HealthHandler reports process liveness and database reachability.
type HealthHandler struct {
	Store     store.Store
	StartTime time.Time
	Version   string
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, code, map[string]any{
		"status":         status,
		"version":        h.Version,
		"uptime_seconds": int64(time.Since(h.StartTime).Seconds()),
	})
}
