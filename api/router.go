package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dealscout/api/handler"
	"github.com/use-agent/dealscout/api/middleware"
	"github.com/use-agent/dealscout/config"
	"github.com/use-agent/dealscout/models"
)

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Searcher handler.Searcher

	// Browser is nil when pages never come from a browser.
	Browser handler.BrowserStats
	Cache   handler.CacheStats

	StartTime time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → AccessLog → CORS
//	Search:  Auth (if enabled) → RateLimit
//
// Health and placeholder images stay outside auth so probes and <img> tags
// always work. ctx bounds the rate limiter's background eviction.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.CustomRecovery(recovered))
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	searchHandler := handler.Search(deps.Searcher)
	health := handler.Health(deps.Browser, deps.Cache, deps.StartTime)

	guard := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		guard = append(guard, middleware.Auth(cfg.Auth.APIKeys))
	}
	guard = append(guard, middleware.RateLimit(ctx, cfg.RateLimit))
	searchChain := append(guard, searchHandler)

	for _, prefix := range []string{"/api", "/api/v1"} {
		g := r.Group(prefix)
		g.GET("/health", health)
		g.GET("/search", searchChain...)
	}

	r.GET("/api/placeholder/:w/:h", handler.Placeholder())

	return r
}

func recovered(c *gin.Context, err any) {
	slog.Error("panic in request handler", "panic", err, "path", c.Request.URL.Path)
	c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: "An error occurred while searching for products",
		Code:  models.ErrCodeInternal,
	})
}
