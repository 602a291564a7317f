package models

import (
	"gorm.io/gorm"
)

// Quiz is a phishing recognition questionnaire
type Quiz struct {
	gorm.Model
	Title        string         `gorm:"not null;uniqueIndex" json:"title" yaml:"title"`
	Description  string         `json:"description" yaml:"description"`
	PassingScore float64        `gorm:"not null;default:70" json:"passing_score" yaml:"passing_score"` // percentage
	Questions    []QuizQuestion `gorm:"type:json;serializer:json" json:"questions" yaml:"questions"`
}

// QuizQuestion is stored inline on the quiz as JSON
type QuizQuestion struct {
	QuestionText  string   `json:"question_text" yaml:"question_text"`
	Options       []string `json:"options" yaml:"options"`
	CorrectAnswer int      `json:"correct_answer" yaml:"correct_answer"` // index into Options
	Explanation   string   `json:"explanation" yaml:"explanation"`
	Category      string   `json:"category" yaml:"category"`
}

// QuizResult records one attempt at a quiz
type QuizResult struct {
	gorm.Model
	QuizID     uint    `gorm:"not null;index" json:"quiz_id"`
	UserID     uint    `gorm:"not null;index" json:"user_id"`
	Answers    []int   `gorm:"type:json;serializer:json" json:"answers"`
	Score      int     `gorm:"not null" json:"score"`
	Total      int     `gorm:"not null" json:"total"`
	Percentage float64 `gorm:"not null" json:"percentage"`
	Passed     bool    `gorm:"not null" json:"passed"`

	// Relations
	Quiz *Quiz `gorm:"constraint:OnDelete:CASCADE" json:"quiz,omitempty"`
	User *User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
