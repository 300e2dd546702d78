package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/dealscout/models"
)

const maxPlaceholderSide = 2000

// Placeholder returns a handler for GET /api/placeholder/:w/:h that draws
// a neutral SVG box of the requested size. Extractors point records with
// no usable image here.
func Placeholder() gin.HandlerFunc {
	return func(c *gin.Context) {
		w, errW := strconv.Atoi(c.Param("w"))
		h, errH := strconv.Atoi(c.Param("h"))
		if errW != nil || errH != nil || w < 1 || h < 1 || w > maxPlaceholderSide || h > maxPlaceholderSide {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: fmt.Sprintf("width and height must be integers between 1 and %d", maxPlaceholderSide),
				Code:  models.ErrCodeInvalidRequest,
			})
			return
		}

		font := min(w, h) / 4
		if font < 8 {
			font = 8
		}
		svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+
			`<rect width="100%%" height="100%%" fill="#e5e7eb"/>`+
			`<text x="50%%" y="50%%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="%d" fill="#9ca3af">%dx%d</text>`+
			`</svg>`, w, h, w, h, font, w, h)

		c.Header("Cache-Control", "public, max-age=86400")
		c.Data(http.StatusOK, "image/svg+xml", []byte(svg))
	}
}
