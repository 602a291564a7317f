package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"phishdrill/models"
	"phishdrill/utils"
)

// TrackingURLs are the public addresses embedded in rendered emails
type TrackingURLs struct {
	BaseURL    string // serves /track-open and /submit
	LandingURL string
}

// CreateCampaignInput is the payload accepted when creating a campaign
type CreateCampaignInput struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Template      string     `json:"template" validate:"required"`
	Subject       string     `json:"subject" validate:"required,max=300"`
	SenderName    string     `json:"sender_name" validate:"required,max=200"`
	SenderEmail   string     `json:"sender_email" validate:"required,email"`
	ScheduledDate *time.Time `json:"scheduled_date"`
}

// AssignmentResult summarises a target full-sync
type AssignmentResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

// Preview is a rendered email for one target
type Preview struct {
	ResultID      uint   `json:"result_id"`
	Token         string `json:"token"`
	TemplateID    string `json:"template_id"`
	TemplateName  string `json:"template_name"`
	TemplateFound bool   `json:"template_found"`
	Subject       string `json:"subject"`
	PhishingLink  string `json:"phishing_link"`
	RenderedHTML  string `json:"rendered_html"`
	TargetEmail   string `json:"target_email"`
	TargetName    string `json:"target_name"`
	SenderName    string `json:"sender_name"`
	SenderEmail   string `json:"sender_email"`
}

// CampaignService owns the campaign lifecycle: creation, target assignment,
// launch, completion and previews
type CampaignService struct {
	db       *gorm.DB
	tokens   *TokenEngine
	tracker  *ResultTracker
	renderer *TemplateRenderer
	events   EventPublisher
	urls     TrackingURLs
	log      *logrus.Entry
	now      func() time.Time
}

func NewCampaignService(db *gorm.DB, tokens *TokenEngine, tracker *ResultTracker, renderer *TemplateRenderer, events EventPublisher, urls TrackingURLs, log *logrus.Entry) *CampaignService {
	return &CampaignService{
		db:       db,
		tokens:   tokens,
		tracker:  tracker,
		renderer: renderer,
		events:   events,
		urls:     urls,
		log:      log.WithField("component", "campaigns"),
		now:      time.Now,
	}
}

func (s *CampaignService) Create(ctx context.Context, input CreateCampaignInput, createdBy *uint) (*models.Campaign, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Subject = strings.TrimSpace(input.Subject)
	input.SenderName = strings.TrimSpace(input.SenderName)
	input.SenderEmail = strings.TrimSpace(input.SenderEmail)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if !s.renderer.Has(input.Template) {
		return nil, newValidationError("unknown template %q", input.Template)
	}
	if err := s.renderer.ValidateSubject(input.Subject); err != nil {
		return nil, newValidationError("subject is not a valid template: %v", err)
	}

	campaign := models.Campaign{
		Name:            input.Name,
		Template:        input.Template,
		Subject:         input.Subject,
		SenderName:      input.SenderName,
		SenderEmail:     input.SenderEmail,
		Status:          models.CampaignStatusDraft,
		ScheduledDate:   input.ScheduledDate,
		CreatedByUserID: createdBy,
	}
	if err := s.db.WithContext(ctx).Create(&campaign).Error; err != nil {
		utils.RecordCampaignOperation("create", err)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}
	utils.RecordCampaignOperation("create", nil)
	utils.LogEvent(s.log, "campaign_created", map[string]interface{}{
		"campaign_id": campaign.ID,
		"template":    campaign.Template,
	})
	return &campaign, nil
}

func (s *CampaignService) Get(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := s.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		return nil, notFound("campaign", err)
	}
	return &campaign, nil
}

// List returns campaigns newest first, optionally filtered by status
func (s *CampaignService) List(ctx context.Context, status string) ([]models.Campaign, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var campaigns []models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return campaigns, nil
}

// Update edits a campaign that has not been launched yet
func (s *CampaignService) Update(ctx context.Context, id uint, input CreateCampaignInput) (*models.Campaign, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Subject = strings.TrimSpace(input.Subject)
	input.SenderName = strings.TrimSpace(input.SenderName)
	input.SenderEmail = strings.TrimSpace(input.SenderEmail)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if !s.renderer.Has(input.Template) {
		return nil, newValidationError("unknown template %q", input.Template)
	}
	if err := s.renderer.ValidateSubject(input.Subject); err != nil {
		return nil, newValidationError("subject is not a valid template: %v", err)
	}

	var campaign models.Campaign
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&campaign, id).Error; err != nil {
			return notFound("campaign", err)
		}
		res := tx.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", id, models.CampaignStatusDraft).
			Updates(map[string]interface{}{
				"name":           input.Name,
				"template":       input.Template,
				"subject":        input.Subject,
				"sender_name":    input.SenderName,
				"sender_email":   input.SenderEmail,
				"scheduled_date": input.ScheduledDate,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cannot edit a %s campaign: %w", campaign.Status, ErrInvalidTransition)
		}
		return tx.First(&campaign, id).Error
	})
	utils.RecordCampaignOperation("update", err)
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// Delete removes a campaign together with all of its results
func (s *CampaignService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", id).Delete(&models.CampaignResult{}).Error; err != nil {
			return fmt.Errorf("failed to delete campaign results: %w", err)
		}
		res := tx.Delete(&models.Campaign{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("campaign", gorm.ErrRecordNotFound)
		}
		return nil
	})
	utils.RecordCampaignOperation("delete", err)
	return err
}

// AssignTargets makes the campaign's target set exactly targetIDs. Rows of
// removed targets are deleted, new targets get a fresh token. The whole sync
// is one transaction and unknown target ids abort it.
func (s *CampaignService) AssignTargets(ctx context.Context, campaignID uint, targetIDs []uint, actorUserID *uint) (*AssignmentResult, error) {
	wanted := make(map[uint]struct{}, len(targetIDs))
	ids := make([]uint, 0, len(targetIDs))
	for _, id := range targetIDs {
		if id == 0 {
			return nil, newValidationError("target ids must be positive")
		}
		if _, dup := wanted[id]; dup {
			continue
		}
		wanted[id] = struct{}{}
		ids = append(ids, id)
	}

	summary := &AssignmentResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			return notFound("campaign", err)
		}
		if campaign.Status == models.CampaignStatusCompleted {
			return fmt.Errorf("campaign is completed: %w", ErrInvalidTransition)
		}

		if len(ids) > 0 {
			var known []uint
			if err := tx.Model(&models.Target{}).Where("id IN ?", ids).Pluck("id", &known).Error; err != nil {
				return fmt.Errorf("failed to load targets: %w", err)
			}
			if len(known) != len(ids) {
				return newValidationError("unknown target ids: %s", joinIDs(missingIDs(ids, known)))
			}
		}

		var existing []models.CampaignResult
		if err := tx.Where("campaign_id = ?", campaignID).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to load campaign results: %w", err)
		}

		have := make(map[uint]struct{}, len(existing))
		var stale []uint
		for _, r := range existing {
			have[r.TargetID] = struct{}{}
			if _, keep := wanted[r.TargetID]; !keep {
				stale = append(stale, r.ID)
			}
		}

		if len(stale) > 0 {
			if err := tx.Where("id IN ?", stale).Delete(&models.CampaignResult{}).Error; err != nil {
				return fmt.Errorf("failed to remove targets: %w", err)
			}
		}

		var added []models.CampaignResult
		for _, id := range ids {
			if _, ok := have[id]; ok {
				continue
			}
			token, err := s.tokens.Issue(ctx, tx)
			if err != nil {
				return err
			}
			added = append(added, models.CampaignResult{
				CampaignID:  campaignID,
				TargetID:    id,
				UserID:      actorUserID,
				UniqueToken: token,
			})
		}
		if len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return fmt.Errorf("failed to add targets: %w", err)
			}
		}

		// Targets joining a running campaign are sent straight away
		if campaign.Status == models.CampaignStatusActive && len(added) > 0 {
			addedIDs := make([]uint, len(added))
			for i := range added {
				addedIDs[i] = added[i].ID
			}
			if err := tx.Model(&models.CampaignResult{}).
				Where("id IN ? AND email_sent = ?", addedIDs, false).
				Updates(map[string]interface{}{
					"email_sent": true,
					"sent_at":    s.now(),
				}).Error; err != nil {
				return fmt.Errorf("failed to mark new targets sent: %w", err)
			}
		}

		summary.Added = len(added)
		summary.Removed = len(stale)
		summary.Total = len(ids)
		return nil
	})
	utils.RecordCampaignOperation("assign_targets", err)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"campaign_id": campaignID,
		"added":       summary.Added,
		"removed":     summary.Removed,
		"total":       summary.Total,
	}).Info("Campaign targets synced")
	return summary, nil
}

// Launch moves a draft campaign to active and marks every result as sent.
// It returns the number of results the campaign covers.
func (s *CampaignService) Launch(ctx context.Context, campaignID uint) (int, error) {
	now := s.now()
	var sentCount int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var campaign models.Campaign
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			return notFound("campaign", err)
		}
		if campaign.Status != models.CampaignStatusDraft {
			return ErrAlreadyLaunched
		}

		if err := tx.Model(&models.CampaignResult{}).Where("campaign_id = ?", campaignID).Count(&sentCount).Error; err != nil {
			return fmt.Errorf("failed to count campaign results: %w", err)
		}
		if sentCount == 0 {
			return ErrNoTargets
		}

		res := tx.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaignID, models.CampaignStatusDraft).
			Updates(map[string]interface{}{
				"status":      models.CampaignStatusActive,
				"launched_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to activate campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyLaunched
		}

		if err := tx.Model(&models.CampaignResult{}).
			Where("campaign_id = ? AND email_sent = ?", campaignID, false).
			Updates(map[string]interface{}{
				"email_sent": true,
				"sent_at":    now,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark results sent: %w", err)
		}
		return nil
	})
	utils.RecordCampaignOperation("launch", err)
	if err != nil {
		return 0, err
	}

	s.publish(EventLaunched, campaignID, now)
	utils.LogEvent(s.log, "campaign_launched", map[string]interface{}{
		"campaign_id": campaignID,
		"sent_count":  sentCount,
	})
	return int(sentCount), nil
}

// Complete closes an active campaign
func (s *CampaignService) Complete(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	now := s.now()
	var campaign models.Campaign
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&campaign, campaignID).Error; err != nil {
			return notFound("campaign", err)
		}
		res := tx.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaignID, models.CampaignStatusActive).
			Updates(map[string]interface{}{
				"status":       models.CampaignStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cannot complete a %s campaign: %w", campaign.Status, ErrInvalidTransition)
		}
		return tx.First(&campaign, campaignID).Error
	})
	utils.RecordCampaignOperation("complete", err)
	if err != nil {
		return nil, err
	}
	s.publish(EventCompleted, campaignID, now)
	return &campaign, nil
}

// Results lists the tracking rows of a campaign with their targets
func (s *CampaignService) Results(ctx context.Context, campaignID uint) ([]models.CampaignResult, error) {
	if _, err := s.Get(ctx, campaignID); err != nil {
		return nil, err
	}
	var results []models.CampaignResult
	if err := s.db.WithContext(ctx).
		Preload("Target").
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to load campaign results: %w", err)
	}
	return results, nil
}

// PreviewFor renders the campaign email for one target. The result row is
// created on demand and the preview counts as the email being sent.
func (s *CampaignService) PreviewFor(ctx context.Context, campaignID, targetID uint, actorUserID *uint) (*Preview, error) {
	campaign, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	var target models.Target
	if err := s.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		return nil, notFound("target", err)
	}

	result, err := s.findOrCreateResult(ctx, campaignID, targetID, actorUserID)
	if err != nil {
		return nil, err
	}

	vars := TemplateVars{
		TargetName:       target.Name,
		TargetEmail:      target.Email,
		TargetDepartment: target.Department,
		CampaignName:     campaign.Name,
		Subject:          campaign.Subject,
		SenderName:       campaign.SenderName,
		SenderEmail:      campaign.SenderEmail,
		PhishingLink:     utils.GeneratePhishingLink(s.urls.LandingURL, result.UniqueToken),
		TrackingPixel:    utils.TrackingPixelTag(s.urls.BaseURL, result.UniqueToken),
		Token:            result.UniqueToken,
	}

	rendered, found, err := s.renderer.Render(campaign.Template, vars)
	if err != nil {
		return nil, err
	}
	subject := s.renderer.RenderSubject(campaign.Subject, vars)

	if _, _, err := s.tracker.RecordSent(ctx, result.UniqueToken); err != nil {
		return nil, err
	}

	return &Preview{
		ResultID:      result.ID,
		Token:         result.UniqueToken,
		TemplateID:    campaign.Template,
		TemplateName:  s.renderer.Name(campaign.Template),
		TemplateFound: found,
		Subject:       subject,
		PhishingLink:  vars.PhishingLink,
		RenderedHTML:  rendered,
		TargetEmail:   target.Email,
		TargetName:    target.Name,
		SenderName:    campaign.SenderName,
		SenderEmail:   campaign.SenderEmail,
	}, nil
}

// PreviewEML packages a preview as a downloadable .eml message
func (s *CampaignService) PreviewEML(ctx context.Context, campaignID, targetID uint, actorUserID *uint) ([]byte, *Preview, error) {
	preview, err := s.PreviewFor(ctx, campaignID, targetID, actorUserID)
	if err != nil {
		return nil, nil, err
	}
	raw, err := utils.BuildEML(utils.EMLMessage{
		FromName:  preview.SenderName,
		FromEmail: preview.SenderEmail,
		To:        preview.TargetEmail,
		Subject:   preview.Subject,
		HTML:      preview.RenderedHTML,
		MessageID: uuid.NewString() + "@phishdrill",
	})
	if err != nil {
		return nil, nil, err
	}
	return raw, preview, nil
}

// findOrCreateResult returns the (campaign, target) row, creating it with a
// fresh token when missing. Concurrent callers converge on the same row.
func (s *CampaignService) findOrCreateResult(ctx context.Context, campaignID, targetID uint, actorUserID *uint) (*models.CampaignResult, error) {
	db := s.db.WithContext(ctx)

	var result models.CampaignResult
	err := db.Where("campaign_id = ? AND target_id = ?", campaignID, targetID).First(&result).Error
	if err == nil {
		return &result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load campaign result: %w", err)
	}

	token, err := s.tokens.Issue(ctx, nil)
	if err != nil {
		return nil, err
	}
	result = models.CampaignResult{
		CampaignID:  campaignID,
		TargetID:    targetID,
		UserID:      actorUserID,
		UniqueToken: token,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&result).Error; err != nil {
		return nil, fmt.Errorf("failed to create campaign result: %w", err)
	}

	var stored models.CampaignResult
	if err := db.Where("campaign_id = ? AND target_id = ?", campaignID, targetID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to load campaign result: %w", err)
	}
	return &stored, nil
}

func (s *CampaignService) publish(event EventType, campaignID uint, at time.Time) {
	if s.events == nil {
		return
	}
	s.events.Publish(TrackingEvent{Type: event, CampaignID: campaignID, First: true, At: at})
}

func missingIDs(requested, known []uint) []uint {
	found := make(map[uint]struct{}, len(known))
	for _, id := range known {
		found[id] = struct{}{}
	}
	var missing []uint
	for _, id := range requested {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
