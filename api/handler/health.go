package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dealscout/models"
)

// BrowserStats reports the shared browser. *browser.Manager satisfies it.
type BrowserStats interface {
	Stats() models.BrowserStats
}

// CacheStats reports the result cache. *cache.Cache satisfies it.
type CacheStats interface {
	Stats() models.CacheStats
}

// Health returns a handler for GET /api/health.
//
// Status degrades when a browser that was running has gone away and has
// not been relaunched yet. browser may be nil when pages come from plain
// HTTP only.
func Health(browser BrowserStats, cache CacheStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:  "healthy",
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Cache:   cache.Stats(),
			Version: models.Version,
		}
		if browser != nil {
			resp.Browser = browser.Stats()
			if resp.Browser.State == "absent" && resp.Browser.Launches > 0 {
				resp.Status = "degraded"
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
