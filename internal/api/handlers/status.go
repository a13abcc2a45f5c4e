package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nichind/fastapi/internal/perf"
)

// slowThreshold is the average delay over the last 100 store operations
// above which the database endpoint reports "slow".
const slowThreshold = 0.09

// StatusHandler serves the public health and telemetry endpoints.
type StatusHandler struct {
	meter   *perf.Meter
	version string
	startAt time.Time
}

func NewStatusHandler(meter *perf.Meter, version string) *StatusHandler {
	return &StatusHandler{meter: meter, version: version, startAt: time.Now()}
}

func (h *StatusHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"current_version": h.version,
		"uptime":          time.Since(h.startAt).String(),
		"server_time":     time.Now().Format(time.RFC3339),
	})
}

// Database reports the store's rolling latency aggregates.
func (h *StatusHandler) Database(c *gin.Context) {
	s := h.meter.Summary()

	status := "ok"
	if s.Last100 >= slowThreshold {
		status = "slow"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        status,
		"total_actions": s.Count,
		"delays": gin.H{
			"all_time":   s.AllTime,
			"last_1":     s.Last1,
			"last_10":    s.Last10,
			"last_100":   s.Last100,
			"last_1000":  s.Last1k,
			"last_10000": s.Last10k,
		},
	})
}
