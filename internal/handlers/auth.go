package handlers

import (
	"errors"
	"log"
	"net/http"

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/services"
	"onboard-hub/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db          *gorm.DB
	authService services.AuthService
	sessions    *cache.SessionCache
	queue       *worker.JobQueue
}

func NewAuthHandler(db *gorm.DB, authService services.AuthService, sessions *cache.SessionCache, queue *worker.JobQueue) *AuthHandler {
	return &AuthHandler{db: db, authService: authService, sessions: sessions, queue: queue}
}

// Login authenticates a user and issues a token pair. The freshly issued
// access token is written through to the session cache so that auth
// lookups can be served without re-verifying the token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.authService.LoginUser(h.db, req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	issued, err := h.authService.IssueTokens(h.db, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue tokens"})
		return
	}

	h.writeThrough(c, issued)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  issued.AccessToken,
		"refresh_token": issued.RefreshToken,
		"token_type":    "bearer",
		"expires_at":    issued.ExpiresAt.Unix(),
	})
}

// Refresh rotates a refresh token and write-throughs the new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issued, err := h.authService.RefreshTokens(h.db, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	h.writeThrough(c, issued)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  issued.AccessToken,
		"refresh_token": issued.RefreshToken,
		"token_type":    "bearer",
		"expires_at":    issued.ExpiresAt.Unix(),
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := h.authService.RevokeToken(h.db, req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	if h.queue != nil {
		payload := map[string]interface{}{"user_id": userID}
		if err := h.queue.Enqueue(worker.DefaultQueue, worker.JobTypeSessionCleanup, payload); err != nil {
			log.Printf("⚠️ Failed to enqueue session cleanup for %s: %v", userID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// GetJWTPayload serves GET /auth/redis/:jti from the cache only. A miss
// here means the token record expired or was never stored.
func (h *AuthHandler) GetJWTPayload(c *gin.Context) {
	payload, err := h.sessions.GetJWTPayload(c.Request.Context(), c.Param("jti"))
	if err != nil {
		handleCacheError(c, err, "token record not found")
		return
	}
	c.JSON(http.StatusOK, payload)
}

// GetUserData serves GET /auth/user/:user_id/data. The record outlives
// the token that produced it, so this works for expired sessions too.
func (h *AuthHandler) GetUserData(c *gin.Context) {
	data, err := h.sessions.GetUserData(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleCacheError(c, err, "user data not found")
		return
	}
	c.JSON(http.StatusOK, data)
}

// GetLatestJTI serves GET /auth/user/:user_id/latest-jti.
func (h *AuthHandler) GetLatestJTI(c *gin.Context) {
	jti, err := h.sessions.GetUserLatestJTI(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		handleCacheError(c, err, "no token recorded for user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": c.Param("user_id"), "latest_jti": jti})
}

// Secure is a protected probe endpoint. The auth middleware has already
// verified the token and write-through'd the claims by the time this runs.
func (h *AuthHandler) Secure(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "authenticated",
		"user_id": c.GetString("user_id"),
		"jti":     c.GetString("jti"),
	})
}

// writeThrough stores the issued token's claims and the denormalized user
// record. Cache failures are logged and swallowed so that auth never
// depends on cache availability.
func (h *AuthHandler) writeThrough(c *gin.Context, issued *services.IssuedToken) {
	ctx := c.Request.Context()
	if err := h.sessions.StoreJWTPayload(ctx, issued.JTI, issued.Claims, issued.RemainingTTL()); err != nil {
		log.Printf("⚠️ Failed to cache token payload for jti %s: %v", issued.JTI, err)
		return
	}
	if err := h.sessions.StoreUserData(ctx, issued.Subject, services.CacheableUserData(issued.Claims)); err != nil {
		log.Printf("⚠️ Failed to cache user data for %s: %v", issued.Subject, err)
	}
}

func handleCacheError(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, cache.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case cache.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	case cache.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cache unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process cache request"})
	}
}
