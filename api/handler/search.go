package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dealscout/models"
	"github.com/use-agent/dealscout/search"
)

// Searcher runs one aggregation. *search.Aggregator satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, platforms []models.Platform) (search.Result, error)
}

const internalErrorMessage = "An error occurred while searching for products"

// Search returns a handler for GET /api/search.
//
// Query parameters:
//
//	query      required, the search text
//	platforms  optional comma-separated list; defaults to the configured set
//
// The body is always a JSON array of records on success, possibly empty.
// X-Cache reports HIT or MISS.
func Search(s Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// ── 1. Validate ─────────────────────────────────────────────
		query := strings.TrimSpace(c.Query("query"))
		if query == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "Query parameter is required",
				Code:  models.ErrCodeInvalidRequest,
			})
			return
		}

		// ── 2. Platforms ────────────────────────────────────────────
		raw, named := c.GetQuery("platforms")
		platforms, unknown := search.ParsePlatforms(raw)
		if len(unknown) > 0 {
			slog.Warn("ignoring unknown platforms", "query", query, "unknown", unknown)
		}
		if named && strings.TrimSpace(raw) != "" && len(platforms) == 0 {
			c.Header("X-Cache", "MISS")
			c.JSON(http.StatusOK, []models.ProductRecord{})
			return
		}

		slog.Info("search request received", "query", query, "platforms", raw)

		// ── 3. Aggregate ────────────────────────────────────────────
		res, err := s.Search(c.Request.Context(), query, platforms)
		if err != nil {
			respondError(c, err)
			return
		}

		if res.CacheHit {
			c.Header("X-Cache", "HIT")
		} else {
			c.Header("X-Cache", "MISS")
		}
		if res.Sampled {
			c.Header("X-Sample-Data", "true")
		}

		slog.Debug("search served",
			"query", query,
			"count", len(res.Products),
			"cache_hit", res.CacheHit,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		c.JSON(http.StatusOK, res.Products)
	}
}

// respondError maps a SearchError to the correct HTTP status code and
// writes a JSON error body. Anything unexpected becomes a 500 with a
// generic message.
func respondError(c *gin.Context, err error) {
	var se *models.SearchError
	if !errors.As(err, &se) {
		slog.Error("search failed", "error", err)
		se = models.NewSearchError(models.ErrCodeInternal, internalErrorMessage, err)
	}

	status := mapErrorToStatus(se)
	body := se.ToResponse()
	if status == http.StatusInternalServerError {
		body.Error = internalErrorMessage
	}
	c.JSON(status, body)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.SearchError) int {
	switch e.Code {
	case models.ErrCodeInvalidRequest:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
