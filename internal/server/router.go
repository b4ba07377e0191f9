// Package server exposes the widget backend over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"solana-lend-widget/internal/action"
	"solana-lend-widget/internal/endpoint"
	"solana-lend-widget/internal/market"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/session"
	"solana-lend-widget/internal/tokenlist"
)

// Dependencies are the components served by the router. The RPC resolution
// is done once at startup and shared by every request.
type Dependencies struct {
	Resolution *endpoint.Resolution
	Metadata   *tokenlist.Cache
	Loader     *market.Loader
	Dispatcher *action.Dispatcher
	Sessions   *session.Registry

	// AllowedOrigins may open the market stream websocket.
	AllowedOrigins []string
}

// NewRouter builds the gin engine. env "prod"/"production" enables release mode.
func NewRouter(env string, logger *zap.Logger, deps Dependencies) *gin.Engine {
	if env == "prod" || env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	health := NewHealthHandler(deps.Resolution)
	meta := NewMetadataHandler(deps.Metadata)
	markets := NewMarketHandler(deps.Loader, deps.Sessions, deps.Resolution, deps.AllowedOrigins, logger.Named("markets"))
	actions := NewActionHandler(deps.Dispatcher, deps.Sessions)

	r.GET("/health", health.Health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.GET("/metadata", meta.Lookup)

	v1 := r.Group("/v1")
	v1.GET("/rpc", health.RPC)
	v1.GET("/markets", markets.List)
	v1.GET("/markets/stream", markets.Stream)
	v1.GET("/markets/:bank/history", markets.History)
	v1.POST("/accounts", actions.CreateAccount)
	v1.POST("/actions", actions.Dispatch)
	v1.DELETE("/sessions/:wallet", actions.CloseSession)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not_found"})
	})

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
