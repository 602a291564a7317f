package models

import (
	_ "embed"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed seed/quizzes.yaml
var quizSeed []byte

// DefaultQuizzes parses the embedded quiz definitions
func DefaultQuizzes() ([]Quiz, error) {
	var doc struct {
		Quizzes []Quiz `yaml:"quizzes"`
	}
	if err := yaml.Unmarshal(quizSeed, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse quiz seed: %w", err)
	}
	return doc.Quizzes, nil
}

// CreateDefaultQuizzes inserts the embedded quizzes that are not present yet
func CreateDefaultQuizzes(db *gorm.DB) error {
	quizzes, err := DefaultQuizzes()
	if err != nil {
		return err
	}
	for _, quiz := range quizzes {
		if err := db.Where(Quiz{Title: quiz.Title}).FirstOrCreate(&quiz).Error; err != nil {
			return err
		}
	}
	return nil
}

// CreateDefaultAdmin creates the bootstrap admin when no admin exists.
// It returns true when a user was created.
func CreateDefaultAdmin(db *gorm.DB, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}

	var count int64
	if err := db.Model(&User{}).Where("role = ?", RoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := User{Username: username, PasswordHash: string(hash), Role: RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		return false, err
	}
	return true, nil
}
