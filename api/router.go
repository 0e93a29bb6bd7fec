package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/rendergate/api/handler"
	"github.com/use-agent/rendergate/api/middleware"
	"github.com/use-agent/rendergate/config"
	"github.com/use-agent/rendergate/models"
)

// Renderer is the session layer as seen by the router.
type Renderer interface {
	handler.Renderer
	Stats() models.PoolStats
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger
//	Gateway: RateLimit
//
// Health and metrics sit outside the rate limit so monitoring probes always work.
func NewRouter(r Renderer, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(middleware.RequestID())
	e.Use(gin.Logger())

	e.GET("/health", handler.Health(r, startTime))
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))

	gateway := e.Group("/")
	gateway.Use(middleware.RateLimit(cfg.RateLimit))

	render := handler.Render(r, cfg.Server.MaxBodyBytes)
	gateway.GET("/", render)
	gateway.POST("/", render)

	return e
}
