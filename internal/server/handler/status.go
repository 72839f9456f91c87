package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves live book state (mode, market count, pool) for
// dashboards.
type StatusHandler struct {
	Mode          string
	StartedAt     time.Time
	ActiveMarkets func() int
	PoolBalance   func() int64
}

// NewStatusHandler creates a StatusHandler over the given state probes.
func NewStatusHandler(mode string, startedAt time.Time, activeMarkets func() int, pool func() int64) *StatusHandler {
	return &StatusHandler{
		Mode:          mode,
		StartedAt:     startedAt,
		ActiveMarkets: activeMarkets,
		PoolBalance:   pool,
	}
}

// GetStatus responds with the current mode, non-terminal market count,
// house pool balance, and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"active_markets": h.ActiveMarkets(),
		"pool":           h.PoolBalance(),
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
