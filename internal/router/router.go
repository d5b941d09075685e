package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/wasilisafish/proposal-builder/internal/handler"
	"github.com/wasilisafish/proposal-builder/internal/metrics"
	"github.com/wasilisafish/proposal-builder/internal/middleware"
)

// Deps are the handlers and cross-cutting pieces the router wires together.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Limiter        *middleware.ClientLimiter
	AllowedOrigins []string

	Extraction *handler.ExtractionHandler
	Export     *handler.ExportHandler
	Health     *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(d Deps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.CORS(d.AllowedOrigins))
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// Health checks
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)

	throttle := middleware.RateLimit(d.Limiter, d.Extraction.RejectRateLimited)

	api := r.Group("/api")
	api.POST("/extract-policy", throttle, d.Extraction.Extract)

	v1 := api.Group("/v1")
	v1.POST("/extractions", throttle, d.Extraction.Extract)
	v1.POST("/extractions/export", d.Export.Export)

	return r
}
