// Package health contiene el controller para health checks.
package health

import (
	"net/http"
	"strconv"

	"github.com/dropDatabas3/policyreg/internal/http/dto"
	"github.com/dropDatabas3/policyreg/internal/http/helpers"
	"github.com/dropDatabas3/policyreg/internal/observability/logger"
	"github.com/dropDatabas3/policyreg/internal/policy"
)

// Source estado local que reporta /readyz.
type Source interface {
	LocalID() string
	IsLeader() bool
	LeaderID() string
	Current() *policy.Snapshot
}

// PendingCounter registros de acks vivos (opcional).
type PendingCounter interface {
	Pending() int
}

type Controller struct {
	src     Source
	pending PendingCounter
}

func NewController(src Source, pending PendingCounter) *Controller {
	return &Controller{src: src, pending: pending}
}

// Readyz maneja GET /readyz. Sin líder conocido el nodo sigue sirviendo
// lecturas pero no escrituras: "degraded".
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	snap := c.src.Current()
	resp := dto.HealthResponse{
		Status:     "ready",
		NodeID:     c.src.LocalID(),
		Leader:     c.src.LeaderID(),
		IsLeader:   c.src.IsLeader(),
		Version:    snap.Version(),
		Policies:   snap.Len(),
		Components: map[string]string{"coordinator": "follower"},
	}
	if resp.IsLeader {
		resp.Components["coordinator"] = "leader"
	}
	if resp.Leader == "" {
		resp.Status = "degraded"
		resp.Components["coordinator"] = "unavailable"
	}
	if c.pending != nil {
		resp.Components["acks_pending"] = strconv.Itoa(c.pending.Pending())
	}

	log.Debug("health check completed", logger.String("status", resp.Status))
	helpers.WriteJSON(w, http.StatusOK, resp)
}
