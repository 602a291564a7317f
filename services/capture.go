package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"phishdrill/models"
)

// CapturedCredentials is what a target typed into a simulated phishing page
type CapturedCredentials struct {
	ResultID    uint       `json:"result_id"`
	CampaignID  uint       `json:"campaign_id"`
	TargetID    uint       `json:"target_id"`
	Username    string     `json:"username"`
	Password    string     `json:"password"`
	SubmittedAt *time.Time `json:"submitted_at"`
	Simulated   bool       `json:"simulated"`
}

// SimulatedCredentialCapture is the only code path that writes or reads the
// captured_password column. Values are stored in plaintext: they are simulation
// artefacts shown back to administrators, not account secrets.
type SimulatedCredentialCapture struct {
	db *gorm.DB
}

func NewSimulatedCredentialCapture(db *gorm.DB) *SimulatedCredentialCapture {
	return &SimulatedCredentialCapture{db: db}
}

// capture stores the first submission for a token. Later submissions leave the
// row untouched and report false.
func (c *SimulatedCredentialCapture) capture(tx *gorm.DB, token, username, password string, now time.Time) (bool, error) {
	res := tx.Model(&models.CampaignResult{}).
		Where("unique_token = ? AND credentials_submitted = ?", token, false).
		Updates(map[string]interface{}{
			"credentials_submitted": true,
			"submitted_at":          now,
			"captured_username":     username,
			"captured_password":     password,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Reveal returns the captured credentials of one result in a campaign
func (c *SimulatedCredentialCapture) Reveal(ctx context.Context, campaignID, resultID uint) (*CapturedCredentials, error) {
	var result models.CampaignResult
	if err := c.db.WithContext(ctx).
		Where("id = ? AND campaign_id = ?", resultID, campaignID).
		First(&result).Error; err != nil {
		return nil, notFound("campaign result", err)
	}
	if !result.CredentialsSubmitted {
		return nil, notFound("captured credentials", gorm.ErrRecordNotFound)
	}

	creds := &CapturedCredentials{
		ResultID:    result.ID,
		CampaignID:  result.CampaignID,
		TargetID:    result.TargetID,
		SubmittedAt: result.SubmittedAt,
		Simulated:   true,
	}
	if result.CapturedUsername != nil {
		creds.Username = *result.CapturedUsername
	}
	if result.CapturedPassword != nil {
		creds.Password = *result.CapturedPassword
	}
	return creds, nil
}
