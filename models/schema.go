package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Relation describes a foreign key from one entity to another. Every
// relation is backed by an association field on the model, so Migrate
// creates the constraint.
type Relation struct {
	Field      string // column on the owning entity
	References string // entity name
	OnDelete   string // CASCADE, RESTRICT, SET NULL
}

// Entity is a statically declared table of the schema
type Entity struct {
	Name      string
	Table     string
	Model     interface{}
	Fields    []string
	Relations []Relation
}

// Schema lists every persisted entity in migration order.
// Referenced entities come before the entities that point at them.
var Schema = []Entity{
	{
		Name:   "User",
		Table:  "users",
		Model:  &User{},
		Fields: []string{"id", "created_at", "updated_at", "deleted_at", "username", "password_hash", "role", "last_login"},
	},
	{
		Name:   "Target",
		Table:  "targets",
		Model:  &Target{},
		Fields: []string{"id", "created_at", "updated_at", "name", "email", "department", "owner_user_id"},
		Relations: []Relation{
			{Field: "owner_user_id", References: "User", OnDelete: "SET NULL"},
		},
	},
	{
		Name:  "Campaign",
		Table: "campaigns",
		Model: &Campaign{},
		Fields: []string{
			"id", "created_at", "updated_at", "name", "template", "subject", "sender_name", "sender_email",
			"status", "scheduled_date", "launched_at", "completed_at", "created_by_user_id",
		},
		Relations: []Relation{
			{Field: "created_by_user_id", References: "User", OnDelete: "SET NULL"},
		},
	},
	{
		Name:  "CampaignResult",
		Table: "campaign_results",
		Model: &CampaignResult{},
		Fields: []string{
			"id", "created_at", "updated_at", "campaign_id", "target_id", "user_id", "unique_token",
			"email_sent", "email_opened", "link_clicked", "credentials_submitted",
			"sent_at", "opened_at", "clicked_at", "submitted_at",
			"captured_username", "captured_password", "user_agent", "ip_address",
		},
		Relations: []Relation{
			{Field: "campaign_id", References: "Campaign", OnDelete: "CASCADE"},
			{Field: "target_id", References: "Target", OnDelete: "RESTRICT"},
			{Field: "user_id", References: "User", OnDelete: "SET NULL"},
		},
	},
	{
		Name:   "Quiz",
		Table:  "quizzes",
		Model:  &Quiz{},
		Fields: []string{"id", "created_at", "updated_at", "deleted_at", "title", "description", "passing_score", "questions"},
	},
	{
		Name:   "QuizResult",
		Table:  "quiz_results",
		Model:  &QuizResult{},
		Fields: []string{"id", "created_at", "updated_at", "deleted_at", "quiz_id", "user_id", "answers", "score", "total", "percentage", "passed"},
		Relations: []Relation{
			{Field: "quiz_id", References: "Quiz", OnDelete: "CASCADE"},
			{Field: "user_id", References: "User", OnDelete: "CASCADE"},
		},
	},
}

// Lookup returns the entity registered under name
func Lookup(name string) (Entity, bool) {
	for _, e := range Schema {
		if e.Name == name {
			return e, true
		}
	}
	return Entity{}, false
}

// Models returns the registered models in migration order
func Models() []interface{} {
	out := make([]interface{}, 0, len(Schema))
	for _, e := range Schema {
		out = append(out, e.Model)
	}
	return out
}

// Migrate creates or updates every registered table
func Migrate(db *gorm.DB) error {
	for _, e := range Schema {
		for _, rel := range e.Relations {
			if _, ok := Lookup(rel.References); !ok {
				return fmt.Errorf("entity %s references unknown entity %s", e.Name, rel.References)
			}
		}
	}
	return db.AutoMigrate(Models()...)
}
