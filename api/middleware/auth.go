package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dealscout/models"
)

// IdentityKey is the gin context key under which Auth records the caller
// it admitted. RateLimit buckets requests by it.
const IdentityKey = "dealscout.identity"

// Auth admits search requests that carry one of apiKeys, either as
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// An empty key list leaves the routes open; callers are then identified by
// client IP.
func Auth(apiKeys []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k = strings.TrimSpace(k); k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := presentedKey(c.Request)
		if key == "" {
			unauthorized(c, "missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}
		if _, ok := allowed[key]; !ok {
			unauthorized(c, "invalid API key")
			return
		}
		c.Set(IdentityKey, "key:"+key)
		c.Next()
	}
}

// Identity names the caller for per-client accounting: the API key Auth
// admitted, else the client IP.
func Identity(c *gin.Context) string {
	if id := c.GetString(IdentityKey); id != "" {
		return id
	}
	return "ip:" + c.ClientIP()
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Error: msg,
		Code:  models.ErrCodeUnauthorized,
	})
}
