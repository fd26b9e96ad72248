package services

import (
	"fmt"
	"time"

	"onboard-hub/backend/internal/config"
	"onboard-hub/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// IssuedToken is what the login/refresh flows hand to the cache
// write-through: the signed token plus its decoded claims and remaining
// lifetime.
type IssuedToken struct {
	AccessToken  string
	RefreshToken string
	JTI          string
	Subject      string
	Claims       map[string]interface{}
	ExpiresAt    time.Time
}

// RemainingTTL is the access token's remaining lifetime, which is exactly
// the TTL the jwt:{jti} cache record must carry.
func (t *IssuedToken) RemainingTTL() time.Duration {
	return time.Until(t.ExpiresAt)
}

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	IssueTokens(db *gorm.DB, userID uuid.UUID) (*IssuedToken, error)
	RefreshTokens(db *gorm.DB, refreshToken string) (*IssuedToken, error)
	RevokeToken(db *gorm.DB, refreshToken string) (string, error)
	VerifyToken(raw string) (jwt.MapClaims, error)
}

type AuthServiceImpl struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(cfg config.JWTConfig) *AuthServiceImpl {
	return &AuthServiceImpl{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		return nil, err
	}
	if !VerifyPassword(user.Password, password) {
		return nil, gorm.ErrInvalidData
	}
	return &user, nil
}

// IssueTokens mints an access token with a fresh jti and a paired refresh
// token, and records the refresh token in the database. The caller is
// responsible for writing the access token through to the session cache.
func (s *AuthServiceImpl) IssueTokens(db *gorm.DB, userID uuid.UUID) (*IssuedToken, error) {
	now := time.Now()
	expiresAt := now.Add(s.accessTTL)

	jti, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("failed to generate jti: %w", err)
	}

	accessClaims := jwt.MapClaims{
		"sub":    userID.String(),
		"jti":    jti.String(),
		"iss":    s.issuer,
		"aud":    s.audience,
		"iat":    now.Unix(),
		"exp":    expiresAt.Unix(),
		"scopes": []string{"onboarding"},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshExpiry := now.Add(s.refreshTTL)
	refreshClaims := jwt.MapClaims{
		"sub":  userID.String(),
		"jti":  jti.String(),
		"type": "refresh",
		"iss":  s.issuer,
		"aud":  s.audience,
		"iat":  now.Unix(),
		"exp":  refreshExpiry.Unix(),
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	record := models.Token{
		ID:           uuid.Must(uuid.NewV4()),
		UserID:       userID,
		JTI:          jti,
		RefreshToken: refreshToken,
		ExpiresAt:    refreshExpiry,
	}
	if err := db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to create token record: %w", err)
	}

	return &IssuedToken{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		JTI:          jti.String(),
		Subject:      userID.String(),
		Claims:       map[string]interface{}(accessClaims),
		ExpiresAt:    expiresAt,
	}, nil
}

// RefreshTokens rotates a refresh token: the old database record is
// consumed and a new token pair is issued.
func (s *AuthServiceImpl) RefreshTokens(db *gorm.DB, refreshToken string) (*IssuedToken, error) {
	claims, err := s.parseRefreshClaims(refreshToken)
	if err != nil {
		return nil, err
	}

	jti, err := uuid.FromString(claims["jti"].(string))
	if err != nil {
		return nil, fmt.Errorf("invalid jti format: %w", err)
	}
	userID, err := uuid.FromString(claims["sub"].(string))
	if err != nil {
		return nil, fmt.Errorf("invalid subject format: %w", err)
	}

	var record models.Token
	err = db.Where("jti = ? AND user_id = ? AND expires_at > ?", jti, userID, time.Now()).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("refresh token not found or expired")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	issued, err := s.IssueTokens(db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue new tokens: %w", err)
	}

	if err := db.Delete(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to delete old token record: %w", err)
	}

	return issued, nil
}

// RevokeToken deletes the refresh token record and returns the subject it
// belonged to so the caller can schedule session cleanup.
func (s *AuthServiceImpl) RevokeToken(db *gorm.DB, refreshToken string) (string, error) {
	claims, err := s.parseRefreshClaims(refreshToken)
	if err != nil {
		return "", err
	}

	jti, err := uuid.FromString(claims["jti"].(string))
	if err != nil {
		return "", fmt.Errorf("invalid jti format: %w", err)
	}

	if err := db.Where("jti = ?", jti).Delete(&models.Token{}).Error; err != nil {
		return "", err
	}
	return claims["sub"].(string), nil
}

// VerifyToken validates an access token's signature and registered claims.
func (s *AuthServiceImpl) VerifyToken(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithAudience(s.audience), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (s *AuthServiceImpl) parseRefreshClaims(raw string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid refresh token claims")
	}
	if t, _ := claims["type"].(string); t != "refresh" {
		return nil, fmt.Errorf("invalid token type")
	}
	if _, ok := claims["jti"].(string); !ok {
		return nil, fmt.Errorf("missing jti in token")
	}
	if _, ok := claims["sub"].(string); !ok {
		return nil, fmt.Errorf("missing subject in token")
	}
	return claims, nil
}

// CacheableUserData is the denormalized view of a verified token that the
// user:{id}:data record carries. It intentionally mirrors what the auth
// lookup endpoints serve after the token itself has expired.
func CacheableUserData(claims map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"user_id":   claims["sub"],
		"jti":       claims["jti"],
		"aud":       claims["aud"],
		"scopes":    claims["scopes"],
		"exp":       claims["exp"],
		"stored_at": time.Now().Unix(),
	}
}
