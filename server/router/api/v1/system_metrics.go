package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/pharmacontrol/server/internal/observability"
)

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status      string                         `json:"status"`
	Version     string                         `json:"version,omitempty"`
	Mode        string                         `json:"mode,omitempty"`
	Uptime      string                         `json:"uptime"`
	SuccessRate float64                        `json:"success_rate"`
	NextReport  *time.Time                     `json:"next_report,omitempty"`
	ChatClients int                            `json:"chat_clients"`
	Metrics     *observability.MetricsSnapshot `json:"metrics"`
}

// Health returns liveness and turn metrics.
// GET /health
func (s *APIV1Service) Health(c echo.Context) error {
	snap := s.Metrics.Snapshot()
	resp := HealthResponse{
		Status:      "ok",
		Uptime:      time.Since(s.startedAt).Round(time.Second).String(),
		SuccessRate: snap.SuccessRate(),
		Metrics:     snap,
	}
	if s.Profile != nil {
		resp.Version = s.Profile.Version
		resp.Mode = s.Profile.Mode
	}
	if s.Limiter != nil {
		resp.ChatClients = s.Limiter.Len()
	}
	if s.Scheduler != nil {
		if next := s.Scheduler.NextRun(); !next.IsZero() {
			resp.NextReport = &next
		}
	}
	return c.JSON(http.StatusOK, resp)
}
