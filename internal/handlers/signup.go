package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"onboard-hub/backend/internal/cache"
	"onboard-hub/backend/internal/models"
	"onboard-hub/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SignupHandler struct {
	db            *gorm.DB
	signupService services.SignupService
	sessions      *cache.SessionCache
}

func NewSignupHandler(db *gorm.DB, signupService services.SignupService, sessions *cache.SessionCache) *SignupHandler {
	return &SignupHandler{db: db, signupService: signupService, sessions: sessions}
}

func (h *SignupHandler) GetQuestions(c *gin.Context) {
	questions, err := h.signupService.GetQuestions(h.db)
	if err != nil {
		handleSignupError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (h *SignupHandler) GetQuestionByID(c *gin.Context) {
	questionID, err := strconv.ParseUint(c.Param("question_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}
	question, err := h.signupService.GetQuestionByID(h.db, uint(questionID))
	if err != nil {
		handleSignupError(c, err, "question not found")
		return
	}
	c.JSON(http.StatusOK, question)
}

func (h *SignupHandler) CreateQuestion(c *gin.Context) {
	var input struct {
		QuestionID uint     `json:"question_id"`
		Title      string   `json:"title" binding:"required"`
		Kind       string   `json:"kind"`
		Options    []string `json:"options"`
		Position   int      `json:"position"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question := models.OnboardQuestion{
		QuestionID: input.QuestionID,
		Title:      input.Title,
		Kind:       input.Kind,
		Options:    toJSONColumn(input.Options),
		Position:   input.Position,
	}
	created, err := h.signupService.CreateQuestion(h.db, question)
	if err != nil {
		handleSignupError(c, err, "")
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *SignupHandler) UpdateQuestion(c *gin.Context) {
	questionID, err := strconv.ParseUint(c.Param("question_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}
	var input struct {
		Title    string   `json:"title"`
		Kind     string   `json:"kind"`
		Options  []string `json:"options"`
		Position int      `json:"position"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated := models.OnboardQuestion{
		Title:    input.Title,
		Kind:     input.Kind,
		Options:  toJSONColumn(input.Options),
		Position: input.Position,
	}
	if err := h.signupService.UpdateQuestion(h.db, uint(questionID), updated); err != nil {
		handleSignupError(c, err, "question not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "question updated successfully"})
}

func (h *SignupHandler) DeleteQuestion(c *gin.Context) {
	questionID, err := strconv.ParseUint(c.Param("question_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid question id"})
		return
	}
	if err := h.signupService.DeleteQuestion(h.db, uint(questionID)); err != nil {
		handleSignupError(c, err, "question not found")
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

// GetUserInfo serves the caller's own onboarding record. The identity
// always comes from the verified token, never from the URL.
func (h *SignupHandler) GetUserInfo(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	info, err := h.signupService.GetUserInfo(h.db, userID)
	if err != nil {
		handleSignupError(c, err, "user info not found")
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *SignupHandler) CreateUserInfo(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	input, ok := bindUserInfo(c)
	if !ok {
		return
	}
	input.UserID = userID

	created, err := h.signupService.CreateUserInfo(h.db, input)
	if err != nil {
		if err == services.ErrUserInfoExists {
			c.JSON(http.StatusConflict, gin.H{"error": "user info already exists"})
			return
		}
		handleSignupError(c, err, "")
		return
	}

	h.touchSession(c, userID.String(), "user_info_created")
	c.JSON(http.StatusCreated, created)
}

func (h *SignupHandler) UpdateUserInfo(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	input, ok := bindUserInfo(c)
	if !ok {
		return
	}

	updated, err := h.signupService.UpdateUserInfo(h.db, userID, input)
	if err != nil {
		handleSignupError(c, err, "user info not found")
		return
	}

	h.touchSession(c, userID.String(), "user_info_updated")
	c.JSON(http.StatusOK, updated)
}

// DeleteUserInfo removes the onboarding record and the cached user keys.
// The jwt:{jti} records are left to expire on their own.
func (h *SignupHandler) DeleteUserInfo(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.signupService.DeleteUserInfo(h.db, userID); err != nil {
		handleSignupError(c, err, "user info not found")
		return
	}

	if err := h.sessions.DeleteUserData(c.Request.Context(), userID.String()); err != nil {
		log.Printf("⚠️ Failed to evict cached data for user %s: %v", userID, err)
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *SignupHandler) touchSession(c *gin.Context, userID, event string) {
	session := map[string]interface{}{"last_event": event}
	if err := h.sessions.StoreSessionData(c.Request.Context(), userID, session); err != nil {
		log.Printf("⚠️ Failed to touch session for user %s: %v", userID, err)
	}
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.FromString(c.GetString("user_id"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
		return uuid.Nil, false
	}
	return userID, true
}

func bindUserInfo(c *gin.Context) (models.UserInfo, bool) {
	var input struct {
		Referral    string            `json:"referral"`
		Answers     map[string]string `json:"answers"`
		ResumeURL   string            `json:"resume_url"`
		LinkedinURL string            `json:"linkedin_url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return models.UserInfo{}, false
	}
	return models.UserInfo{
		Referral:    input.Referral,
		Answers:     toJSONColumn(input.Answers),
		ResumeURL:   input.ResumeURL,
		LinkedinURL: input.LinkedinURL,
	}, true
}

func toJSONColumn(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func handleSignupError(c *gin.Context, err error, notFoundMsg string) {
	if errors.Is(err, gorm.ErrRecordNotFound) && notFoundMsg != "" {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process signup request"})
}
