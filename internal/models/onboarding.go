package models

import (
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/datatypes"
)

// OnboardQuestion is one version of an onboarding question. Versions of the
// same logical question share a QuestionID; the primary key identifies the
// exact revision.
type OnboardQuestion struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	QuestionID uint           `json:"question_id" gorm:"not null;index"`
	Title      string         `json:"title" gorm:"not null"`
	Kind       string         `json:"kind" gorm:"not null;default:'text'"`
	Options    datatypes.JSON `json:"options,omitempty"`
	Position   int            `json:"position" gorm:"not null;default:0"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// UserInfo is a user's onboarding submission. One record per user; the
// owning user id always comes from the token subject, never from input.
type UserInfo struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	UserID      uuid.UUID      `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	Referral    string         `json:"referral" gorm:"not null"`
	Answers     datatypes.JSON `json:"answers" gorm:"not null"`
	ResumeURL   string         `json:"resume_url,omitempty"`
	LinkedinURL string         `json:"linkedin_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
