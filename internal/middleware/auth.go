package middleware

import (
	"log"
	"net/http"
	"strings"
	"time"

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AuthRequired verifies the Bearer token and writes the decoded claims
// through to the session cache. Cache failures never fail the request,
// verification already succeeded and the cache is a read optimization.
func AuthRequired(authService services.AuthService, sessions *cache.SessionCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := authService.VerifyToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		sub, _ := claims["sub"].(string)
		jti, _ := claims["jti"].(string)
		if sub == "" || jti == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing required claims"})
			return
		}

		writeThroughClaims(c, sessions, jti, sub, claims)

		c.Set("user_id", sub)
		c.Set("jti", jti)
		c.Next()
	}
}

// writeThroughClaims refreshes the jwt:{jti} record with the token's
// remaining lifetime and the denormalized user record alongside it.
func writeThroughClaims(c *gin.Context, sessions *cache.SessionCache, jti, sub string, claims map[string]interface{}) {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return
	}
	remaining := time.Until(time.Unix(int64(exp), 0))
	if remaining <= 0 {
		return
	}

	ctx := c.Request.Context()
	if err := sessions.StoreJWTPayload(ctx, jti, claims, remaining); err != nil {
		log.Printf("⚠️ Failed to refresh cached token payload for jti %s: %v", jti, err)
		return
	}
	if err := sessions.StoreUserData(ctx, sub, services.CacheableUserData(claims)); err != nil {
		log.Printf("⚠️ Failed to refresh cached user data for %s: %v", sub, err)
	}
}
