package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"phishdrill/models"
	"phishdrill/utils"
)

const maxTokenAttempts = 3

// TokenEngine creates and resolves the tracking tokens that tie anonymous
// requests to a CampaignResult
type TokenEngine struct {
	db *gorm.DB
}

func NewTokenEngine(db *gorm.DB) *TokenEngine {
	return &TokenEngine{db: db}
}

// Generate returns a fresh token without touching storage
func (e *TokenEngine) Generate() (string, error) {
	return utils.NewTrackingToken()
}

// Issue returns a token that is not yet stored in campaign_results.
// tx lets callers reserve the token inside their own transaction.
func (e *TokenEngine) Issue(ctx context.Context, tx *gorm.DB) (string, error) {
	if tx == nil {
		tx = e.db
	}
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		token, err := e.Generate()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.WithContext(ctx).Model(&models.CampaignResult{}).
			Where("unique_token = ?", token).
			Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if count == 0 {
			return token, nil
		}
	}
	return "", fmt.Errorf("failed to issue a unique token after %d attempts", maxTokenAttempts)
}

// Resolve looks a token up by exact match. Unknown tokens yield ErrInvalidToken.
func (e *TokenEngine) Resolve(ctx context.Context, token string) (*models.CampaignResult, error) {
	return e.resolve(e.db.WithContext(ctx), token)
}

func (e *TokenEngine) resolve(tx *gorm.DB, token string) (*models.CampaignResult, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	var result models.CampaignResult
	if err := tx.Where("unique_token = ?", token).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &result, nil
}
