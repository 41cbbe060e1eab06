// Package router assembles the gin engine.
package router

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turtacn/ccs/internal/config"
	"github.com/turtacn/ccs/internal/infrastructure/monitoring"
	"github.com/turtacn/ccs/internal/interfaces/http/handlers"
	"github.com/turtacn/ccs/internal/interfaces/http/middleware"
	"github.com/turtacn/ccs/pkg/logger"
)

// New builds the HTTP router with the full middleware chain.
func New(
	cfg *config.Config,
	chatHandler *handlers.ChatHandler,
	healthHandler *handlers.HealthHandler,
	metrics *monitoring.Metrics,
	log logger.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Observability(metrics, log))

	// The widget is embedded on tenant sites, so cross-origin is the norm.
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-Request-ID")
	corsCfg.ExposeHeaders = []string{
		"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After",
		"X-Total-Time-Ms", "X-DB-Time-Ms", "X-Generation-Time-Ms", "X-First-Token-Ms",
	}
	engine.Use(cors.New(corsCfg))

	engine.POST("/chat", chatHandler.Chat)
	engine.GET("/greeting", chatHandler.Greeting)
	engine.GET("/messages", chatHandler.Messages)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.Monitoring.PprofEnabled {
		pprof.Register(engine)
	}

	return engine
}
