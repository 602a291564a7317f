package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/badoux/checkmail"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"phishdrill/models"
	"phishdrill/utils"
)

const importBatchSize = 100

// TargetInput is the payload for creating or updating a target
type TargetInput struct {
	Name       string `json:"name" validate:"required,max=200"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"max=100"`
}

// TargetFilter narrows target listings
type TargetFilter struct {
	Department string
	Search     string // matches name or email
	Page       int
	Limit      int
}

// ImportSummary reports the outcome of a CSV import
type ImportSummary struct {
	TotalRows  int      `json:"total_rows"`
	Imported   int      `json:"imported"`
	Duplicates int      `json:"duplicates"`
	Invalid    []string `json:"invalid,omitempty"`
}

type TargetService struct {
	db  *gorm.DB
	log *logrus.Entry
}

func NewTargetService(db *gorm.DB, log *logrus.Entry) *TargetService {
	return &TargetService{db: db, log: log.WithField("component", "targets")}
}

func normalizeTarget(input *TargetInput) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Department = strings.TrimSpace(input.Department)

	if err := utils.ValidateStruct(*input); err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if err := checkmail.ValidateFormat(input.Email); err != nil {
		return newValidationError("email %q is not a valid address", input.Email)
	}
	return nil
}

func (s *TargetService) Create(ctx context.Context, input TargetInput, ownerID *uint) (*models.Target, error) {
	if err := normalizeTarget(&input); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Target{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check target email: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("target with email %s %w", input.Email, ErrDuplicate)
	}

	target := models.Target{
		Name:        input.Name,
		Email:       input.Email,
		Department:  input.Department,
		OwnerUserID: ownerID,
	}
	if err := db.Create(&target).Error; err != nil {
		return nil, fmt.Errorf("failed to create target: %w", err)
	}
	return &target, nil
}

func (s *TargetService) Get(ctx context.Context, id uint) (*models.Target, error) {
	var target models.Target
	if err := s.db.WithContext(ctx).First(&target, id).Error; err != nil {
		return nil, notFound("target", err)
	}
	return &target, nil
}

// List returns one page of targets ordered by name, plus the unpaged total
func (s *TargetService) List(ctx context.Context, filter TargetFilter) ([]models.Target, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 500 {
		filter.Limit = 500
	}

	query := s.db.WithContext(ctx).Model(&models.Target{})
	if filter.Department != "" {
		query = query.Where("department = ?", filter.Department)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count targets: %w", err)
	}

	var targets []models.Target
	if err := query.Order("name ASC, id ASC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&targets).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list targets: %w", err)
	}
	return targets, total, nil
}

func (s *TargetService) Update(ctx context.Context, id uint, input TargetInput) (*models.Target, error) {
	if err := normalizeTarget(&input); err != nil {
		return nil, err
	}

	var target models.Target
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, id).Error; err != nil {
			return notFound("target", err)
		}

		if input.Email != target.Email {
			var count int64
			if err := tx.Model(&models.Target{}).Where("email = ? AND id <> ?", input.Email, id).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check target email: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("target with email %s %w", input.Email, ErrDuplicate)
			}
		}

		target.Name = input.Name
		target.Email = input.Email
		target.Department = input.Department
		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// Delete removes a target that no campaign result refers to
func (s *TargetService) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&models.CampaignResult{}).Where("target_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("failed to check target usage: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("target %d is in %d campaign results: %w", id, refs, ErrTargetInUse)
		}

		res := tx.Delete(&models.Target{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete target: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("target", gorm.ErrRecordNotFound)
		}
		return nil
	})
}

// ImportCSV reads a name,email,department file. Columns are matched by
// header name; department is optional. Emails already stored or repeated in
// the file are skipped, malformed rows are reported back.
func (s *TargetService) ImportCSV(ctx context.Context, r io.Reader, ownerID *uint) (*ImportSummary, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, newValidationError("CSV file is empty")
		}
		return nil, newValidationError("failed to parse CSV header: %v", err)
	}

	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	nameCol, hasName := columns["name"]
	emailCol, hasEmail := columns["email"]
	deptCol, hasDept := columns["department"]
	if !hasName || !hasEmail {
		return nil, newValidationError("CSV header must contain name and email columns")
	}

	// One transaction, so a file that fails part way stores nothing
	summary := &ImportSummary{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := make(map[string]struct{})
		var batch []models.Target

		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			if err := tx.Create(&batch).Error; err != nil {
				return fmt.Errorf("failed to import targets: %w", err)
			}
			summary.Imported += len(batch)
			batch = batch[:0]
			return nil
		}

		line := 1
		for {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			line++
			if err != nil {
				return newValidationError("failed to parse CSV line %d: %v", line, err)
			}
			summary.TotalRows++

			field := func(col int) string {
				if col < len(record) {
					return record[col]
				}
				return ""
			}
			input := TargetInput{Name: field(nameCol), Email: field(emailCol)}
			if hasDept {
				input.Department = field(deptCol)
			}
			if err := normalizeTarget(&input); err != nil {
				summary.Invalid = append(summary.Invalid, fmt.Sprintf("line %d: %s", line, err))
				continue
			}

			if _, dup := seen[input.Email]; dup {
				summary.Duplicates++
				continue
			}
			seen[input.Email] = struct{}{}

			var count int64
			if err := tx.Model(&models.Target{}).Where("email = ?", input.Email).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check target email: %w", err)
			}
			if count > 0 {
				summary.Duplicates++
				continue
			}

			batch = append(batch, models.Target{
				Name:        input.Name,
				Email:       input.Email,
				Department:  input.Department,
				OwnerUserID: ownerID,
			})
			if len(batch) >= importBatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"total_rows": summary.TotalRows,
		"imported":   summary.Imported,
		"duplicates": summary.Duplicates,
		"invalid":    len(summary.Invalid),
	}).Info("Targets imported")
	return summary, nil
}

// ExportCSV writes every target as name,email,department
func (s *TargetService) ExportCSV(ctx context.Context, w io.Writer) error {
	var targets []models.Target
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&targets).Error; err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "email", "department"}); err != nil {
		return err
	}
	for _, t := range targets {
		if err := writer.Write([]string{t.Name, t.Email, t.Department}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
