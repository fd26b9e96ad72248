package handlers

import (
	"log"
	"net/http"

	"onboard-hub/backend/internal/services"
	"onboard-hub/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RegisterHandler struct {
	db              *gorm.DB
	registerService services.RegisterService
	queue           *worker.JobQueue
}

func NewRegisterHandler(db *gorm.DB, registerService services.RegisterService, queue *worker.JobQueue) *RegisterHandler {
	return &RegisterHandler{db: db, registerService: registerService, queue: queue}
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.registerService.RegisterUser(h.db, req)
	if err != nil {
		if err == services.ErrEmailExists {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}
	if h.queue != nil {
		payload := map[string]interface{}{"email": user.Email, "user_id": user.ID.String()}
		if err := h.queue.Enqueue(worker.DefaultQueue, worker.JobTypeWelcomeEmail, payload); err != nil {
			log.Printf("⚠️ Failed to enqueue welcome email for %s: %v", user.Email, err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "user created successfully",
		"user_id": user.ID.String(),
	})
}
