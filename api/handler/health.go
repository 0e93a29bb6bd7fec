package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rendergate/models"
)

// Version is reported by GET /health.
const Version = "0.1.0"

// PoolStatter reports tab utilisation.
type PoolStatter interface {
	Stats() models.PoolStats
}

// Health returns a handler for GET /health.
//
// Reports tab utilisation and degrades status when > 80% of tabs are open.
func Health(ps PoolStatter, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := ps.Stats()

		status := "healthy"
		if stats.MaxTabs > 0 && stats.ActiveTabs > int(float64(stats.MaxTabs)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
