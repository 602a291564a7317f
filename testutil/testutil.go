// Package testutil builds the throwaway database and logger used by package tests.
package testutil

import (
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"phishdrill/models"
)

// NewDB opens a private in-memory SQLite database with the full schema migrated.
// A single connection keeps every query on the same in-memory database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

// NewLogger returns a logger entry that discards output
func NewLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

// CreateUser inserts a user with the given role and an unusable password hash
func CreateUser(t testing.TB, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	user := &models.User{Username: username, PasswordHash: "-", Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTarget inserts a target with the given email and department
func CreateTarget(t testing.TB, db *gorm.DB, name, email, department string) *models.Target {
	t.Helper()
	target := &models.Target{Name: name, Email: email, Department: department}
	require.NoError(t, db.Create(target).Error)
	return target
}

// CreateCampaign inserts a draft campaign using the given template
func CreateCampaign(t testing.TB, db *gorm.DB, name, template string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		Name:        name,
		Template:    template,
		Subject:     "Action required",
		SenderName:  "IT Support",
		SenderEmail: "it-support@example.com",
		Status:      models.CampaignStatusDraft,
	}
	require.NoError(t, db.Create(campaign).Error)
	return campaign
}

// CreateResult inserts a campaign result with the given token
func CreateResult(t testing.TB, db *gorm.DB, campaignID, targetID uint, token string) *models.CampaignResult {
	t.Helper()
	result := &models.CampaignResult{CampaignID: campaignID, TargetID: targetID, UniqueToken: token}
	require.NoError(t, db.Create(result).Error)
	return result
}
