package models

import (
	"time"
)

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusActive    = "active"
	CampaignStatusCompleted = "completed"
)

// Campaign represents a simulated phishing exercise that uses one email template
type Campaign struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Campaign details
	Name        string `gorm:"not null" json:"name"`
	Template    string `gorm:"not null" json:"template"` // template id, see services.TemplateRenderer
	Subject     string `gorm:"not null" json:"subject"`
	SenderName  string `gorm:"not null" json:"sender_name"`
	SenderEmail string `gorm:"not null" json:"sender_email"`

	// Scheduling
	Status          string     `gorm:"not null;default:'draft';index" json:"status"` // draft, scheduled, active, completed
	ScheduledDate   *time.Time `json:"scheduled_date,omitempty"`
	LaunchedAt      *time.Time `json:"launched_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedByUserID *uint      `gorm:"index" json:"created_by_user_id,omitempty"`

	CreatedBy *User `gorm:"foreignKey:CreatedByUserID;constraint:OnDelete:SET NULL" json:"-"`
}

// CampaignResult is the per (campaign, target) tracking record.
// The four flags only ever move from false to true.
type CampaignResult struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CampaignID  uint      `gorm:"not null;uniqueIndex:idx_campaign_target" json:"campaign_id"`
	TargetID    uint      `gorm:"not null;uniqueIndex:idx_campaign_target;index" json:"target_id"`
	UserID      *uint     `gorm:"index" json:"user_id"` // nil means unattributed
	UniqueToken string    `gorm:"uniqueIndex;not null;size:64" json:"unique_token"`

	// Tracking flags
	EmailSent            bool       `gorm:"not null;default:false" json:"email_sent"`
	EmailOpened          bool       `gorm:"not null;default:false" json:"email_opened"`
	LinkClicked          bool       `gorm:"not null;default:false" json:"link_clicked"`
	CredentialsSubmitted bool       `gorm:"not null;default:false" json:"credentials_submitted"`
	SentAt               *time.Time `json:"sent_at,omitempty"`
	OpenedAt             *time.Time `json:"opened_at,omitempty"`
	ClickedAt            *time.Time `json:"clicked_at,omitempty"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`

	// Simulated capture, written only through services.SimulatedCredentialCapture
	CapturedUsername *string `json:"captured_username,omitempty"`
	CapturedPassword *string `json:"-"`

	// Device info, last write wins
	UserAgent *string `json:"user_agent,omitempty"`
	IPAddress *string `json:"ip_address,omitempty"`

	// Relations
	Campaign *Campaign `gorm:"constraint:OnDelete:CASCADE" json:"campaign,omitempty"`
	Target   *Target   `gorm:"constraint:OnDelete:RESTRICT" json:"target,omitempty"`
	User     *User     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
}
