package services

import (
	"errors"

	"onboard-hub/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var ErrUserInfoExists = errors.New("user info already exists")

type SignupService interface {
	GetQuestions(db *gorm.DB) ([]models.OnboardQuestion, error)
	GetQuestionByID(db *gorm.DB, questionID uint) (models.OnboardQuestion, error)
	CreateQuestion(db *gorm.DB, question models.OnboardQuestion) (models.OnboardQuestion, error)
	UpdateQuestion(db *gorm.DB, questionID uint, updated models.OnboardQuestion) error
	DeleteQuestion(db *gorm.DB, questionID uint) error

	GetUserInfo(db *gorm.DB, userID uuid.UUID) (models.UserInfo, error)
	CreateUserInfo(db *gorm.DB, info models.UserInfo) (models.UserInfo, error)
	UpdateUserInfo(db *gorm.DB, userID uuid.UUID, updated models.UserInfo) (models.UserInfo, error)
	DeleteUserInfo(db *gorm.DB, userID uuid.UUID) error
}

type SignupServiceImpl struct{}

func NewSignupService() *SignupServiceImpl {
	return &SignupServiceImpl{}
}

func (s *SignupServiceImpl) GetQuestions(db *gorm.DB) ([]models.OnboardQuestion, error) {
	var questions []models.OnboardQuestion
	result := db.Order("position asc").Find(&questions)
	return questions, result.Error
}

func (s *SignupServiceImpl) GetQuestionByID(db *gorm.DB, questionID uint) (models.OnboardQuestion, error) {
	var question models.OnboardQuestion
	result := db.Where("question_id = ?", questionID).First(&question)
	return question, result.Error
}

func (s *SignupServiceImpl) CreateQuestion(db *gorm.DB, question models.OnboardQuestion) (models.OnboardQuestion, error) {
	if question.QuestionID == 0 {
		var maxID uint
		db.Model(&models.OnboardQuestion{}).Select("COALESCE(MAX(question_id), 0)").Scan(&maxID)
		question.QuestionID = maxID + 1
	}
	result := db.Create(&question)
	return question, result.Error
}

func (s *SignupServiceImpl) UpdateQuestion(db *gorm.DB, questionID uint, updated models.OnboardQuestion) error {
	result := db.Model(&models.OnboardQuestion{}).Where("question_id = ?", questionID).Updates(updated)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SignupServiceImpl) DeleteQuestion(db *gorm.DB, questionID uint) error {
	result := db.Delete(&models.OnboardQuestion{}, "question_id = ?", questionID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SignupServiceImpl) GetUserInfo(db *gorm.DB, userID uuid.UUID) (models.UserInfo, error) {
	var info models.UserInfo
	result := db.Where("user_id = ?", userID).First(&info)
	return info, result.Error
}

// CreateUserInfo enforces one onboarding record per user.
func (s *SignupServiceImpl) CreateUserInfo(db *gorm.DB, info models.UserInfo) (models.UserInfo, error) {
	var existing models.UserInfo
	if err := db.Where("user_id = ?", info.UserID).First(&existing).Error; err == nil {
		return models.UserInfo{}, ErrUserInfoExists
	} else if err != gorm.ErrRecordNotFound {
		return models.UserInfo{}, err
	}

	result := db.Create(&info)
	return info, result.Error
}

func (s *SignupServiceImpl) UpdateUserInfo(db *gorm.DB, userID uuid.UUID, updated models.UserInfo) (models.UserInfo, error) {
	var info models.UserInfo
	if err := db.Where("user_id = ?", userID).First(&info).Error; err != nil {
		return models.UserInfo{}, err
	}

	info.Referral = updated.Referral
	info.Answers = updated.Answers
	info.ResumeURL = updated.ResumeURL
	info.LinkedinURL = updated.LinkedinURL

	if err := db.Save(&info).Error; err != nil {
		return models.UserInfo{}, err
	}
	return info, nil
}

func (s *SignupServiceImpl) DeleteUserInfo(db *gorm.DB, userID uuid.UUID) error {
	result := db.Delete(&models.UserInfo{}, "user_id = ?", userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
