package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"motdepasse/services"
)

// PlayerAuth verifies the Bearer token issued on create/join and exposes the
// caller's identity to handlers via the context keys player_id and room_code.
func PlayerAuth(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		claims, err := tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set("player_id", claims.PlayerID)
		c.Set("room_code", claims.RoomCode)
		c.Next()
	}
}
