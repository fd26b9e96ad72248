package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/models"

	"gorm.io/gorm"
)

// DefaultQueue is where the API enqueues work for the background worker.
const DefaultQueue = "jobs"

// Handlers holds the dependencies the built-in job handlers need.
type Handlers struct {
	Sessions *cache.SessionCache
	DB       *gorm.DB
}

// Register wires the built-in handlers onto a worker.
func (h *Handlers) Register(w *Worker) {
	w.RegisterHandler(JobTypeWelcomeEmail, h.WelcomeEmail)
	w.RegisterHandler(JobTypeSessionCleanup, h.SessionCleanup)
	w.RegisterHandler(JobTypeCacheEvict, h.CacheEvict)
}

// WelcomeEmail would hand off to a mail provider. There is no provider
// wired yet, so it only records the send.
func (h *Handlers) WelcomeEmail(ctx context.Context, job *Job) error {
	email, ok := job.Payload["email"].(string)
	if !ok || email == "" {
		return fmt.Errorf("welcome_email job %s missing email", job.ID)
	}
	log.Printf("📧 Welcome email queued for %s", email)
	return nil
}

// SessionCleanup drops the session record for a user and prunes expired
// refresh token rows.
func (h *Handlers) SessionCleanup(ctx context.Context, job *Job) error {
	userID, ok := job.Payload["user_id"].(string)
	if !ok || userID == "" {
		return fmt.Errorf("session_cleanup job %s missing user_id", job.ID)
	}

	if err := h.Sessions.DeleteSessionData(ctx, userID); err != nil && !cache.IsNotFound(err) {
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}

	if h.DB != nil {
		if err := h.DB.Where("expires_at < ?", time.Now()).Delete(&models.Token{}).Error; err != nil {
			return fmt.Errorf("failed to prune expired tokens: %w", err)
		}
	}
	return nil
}

// CacheEvict removes a user's cached data and latest token pointer.
func (h *Handlers) CacheEvict(ctx context.Context, job *Job) error {
	userID, ok := job.Payload["user_id"].(string)
	if !ok || userID == "" {
		return fmt.Errorf("cache_evict job %s missing user_id", job.ID)
	}
	if err := h.Sessions.DeleteUserData(ctx, userID); err != nil {
		return fmt.Errorf("failed to evict cache for %s: %w", userID, err)
	}
	return nil
}
