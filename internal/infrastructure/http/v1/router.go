// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/http/v1/handlers"
	"farmacia/internal/infrastructure/http/v1/middleware"
	"farmacia/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Service *pricing.Service
	Logger  *logger.Logger

	// HealthChecks are pinged by /health/ready.
	HealthChecks map[string]handlers.Pinger

	// Idempotency is applied to mutating pricing routes when non-nil.
	Idempotency middleware.IdempotencyKeys

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Debug bool
}

// NewRouter creates and configures the gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// order matters: ErrorHandler must see errors from everything after it
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	health := handlers.NewHealthHandler(cfg.HealthChecks)
	router.GET("/health/live", health.Live)
	router.GET("/health/ready", health.Ready)

	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.UserContext())

	pricingGroup := api.Group("/pricing")
	if cfg.Idempotency != nil {
		pricingGroup.Use(middleware.Idempotency(cfg.Idempotency))
	}
	handlers.NewPricingHandler(handlers.NewBaseHandler(), cfg.Service).RegisterRoutes(pricingGroup)

	return router
}
