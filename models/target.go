package models

import "time"

// Target is a simulated phishing recipient.
// Targets are hard-deleted so the unique email index stays usable after removal.
type Target struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Name        string    `gorm:"not null" json:"name"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	Department  string    `gorm:"index" json:"department"`
	OwnerUserID *uint     `gorm:"index" json:"owner_user_id,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerUserID;constraint:OnDelete:SET NULL" json:"-"`
}
