package http

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/ryanhackme1207/Everspace/internal/auth"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

const ctxUserKey = "current_user"

// AuthMiddleware resolves the caller from a Bearer token or the cookie
// session and loads the user row. Requests without a usable identity are
// rejected; the WS handler relies on this running before the upgrade.
func AuthMiddleware(secret []byte, users store.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID uint

		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			userID = claims.UserID
		} else {
			sess := sessions.Default(c)
			if id, ok := sess.Get("user_id").(uint); ok {
				userID = id
			}
		}

		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}
