package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireJSONAccept rejects requests whose Accept header excludes JSON with
// 406. An absent or wildcard Accept header is fine.
func RequireJSONAccept() gin.HandlerFunc {
	return func(c *gin.Context) {
		accept := c.GetHeader("Accept")
		if accept == "" || acceptsJSON(accept) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusNotAcceptable, gin.H{"error": "API only supports application/json"})
	}
}

func acceptsJSON(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		media := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch media {
		case "application/json", "application/*", "*/*":
			return true
		}
	}
	return false
}
