package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"phishdrill/models"
	"phishdrill/utils"
)

// LoginInput is the sign-in payload
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AuthService struct {
	db        *gorm.DB
	jwtSecret string
	log       *logrus.Entry
}

func NewAuthService(db *gorm.DB, jwtSecret string, log *logrus.Entry) *AuthService {
	return &AuthService{db: db, jwtSecret: jwtSecret, log: log.WithField("component", "auth")}
}

// Login checks the password and issues an access token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*Session, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("username = ?", input.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.log.WithField("username", input.Username).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, claims, err := utils.GenerateJWTToken(&user, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	if err := db.Model(&user).Update("last_login", now).Error; err != nil {
		s.log.WithError(err).Warn("Failed to update last login")
	}
	user.LastLogin = &now

	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: &user}, nil
}

// UserFromToken validates an access token and loads its user
func (s *AuthService) UserFromToken(ctx context.Context, token string) (*models.User, *utils.Claims, error) {
	claims, err := utils.ParseJWTToken(token, s.jwtSecret)
	if err != nil {
		return nil, nil, err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return nil, nil, notFound("user", err)
	}
	return &user, claims, nil
}
