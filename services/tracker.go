package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"phishdrill/models"
	"phishdrill/utils"
)

// stage is a step of the sent -> opened -> clicked progression. Recording a
// stage also records every earlier one that is still missing.
type stage struct {
	event EventType
	flag  string
	stamp string
}

var progression = []stage{
	{EventSent, "email_sent", "sent_at"},
	{EventOpened, "email_opened", "opened_at"},
	{EventClicked, "link_clicked", "clicked_at"},
}

const (
	stageSent = iota
	stageOpened
	stageClicked
)

// ResultTracker drives the CampaignResult state machine. Every transition is a
// conditional update on the still-false flag, so a timestamp is written once
// no matter how many concurrent requests carry the same token.
type ResultTracker struct {
	db      *gorm.DB
	tokens  *TokenEngine
	capture *SimulatedCredentialCapture
	events  EventPublisher
	log     *logrus.Entry
	now     func() time.Time
}

func NewResultTracker(db *gorm.DB, tokens *TokenEngine, capture *SimulatedCredentialCapture, events EventPublisher, log *logrus.Entry) *ResultTracker {
	return &ResultTracker{
		db:      db,
		tokens:  tokens,
		capture: capture,
		events:  events,
		log:     log.WithField("component", "tracker"),
		now:     time.Now,
	}
}

// RecordSent marks the result as delivered. The bool reports whether this call changed it.
func (t *ResultTracker) RecordSent(ctx context.Context, token string) (*models.CampaignResult, bool, error) {
	return t.record(ctx, token, stageSent, nil)
}

// RecordOpened marks the result as opened, backfilling sent
func (t *ResultTracker) RecordOpened(ctx context.Context, token string) (*models.CampaignResult, bool, error) {
	return t.record(ctx, token, stageOpened, nil)
}

// RecordClicked marks the result as clicked, backfilling sent and opened.
// Non-empty device info overwrites what was stored before.
func (t *ResultTracker) RecordClicked(ctx context.Context, token, userAgent, ipAddress string) (*models.CampaignResult, bool, error) {
	return t.record(ctx, token, stageClicked, func(tx *gorm.DB, _ time.Time) (bool, error) {
		return false, storeDevice(tx, token, userAgent, ipAddress)
	})
}

// RecordSubmitted stores the first simulated credential submission and
// backfills sent, opened and clicked. Later submissions change nothing.
func (t *ResultTracker) RecordSubmitted(ctx context.Context, token, username, password string) (*models.CampaignResult, bool, error) {
	return t.recordEvent(ctx, token, stageClicked, EventSubmitted, func(tx *gorm.DB, now time.Time) (bool, error) {
		return t.capture.capture(tx, token, username, password, now)
	})
}

type extraStep func(tx *gorm.DB, now time.Time) (bool, error)

func (t *ResultTracker) record(ctx context.Context, token string, upto int, extra extraStep) (*models.CampaignResult, bool, error) {
	return t.recordEvent(ctx, token, upto, progression[upto].event, extra)
}

// recordEvent advances the progression up to stage upto, runs extra in the
// same transaction and reloads the row. When extra is the submission step
// its outcome decides whether the call counts as first.
func (t *ResultTracker) recordEvent(ctx context.Context, token string, upto int, event EventType, extra extraStep) (*models.CampaignResult, bool, error) {
	if token == "" {
		utils.RecordTrackingEvent(string(event), "invalid_token")
		return nil, false, ErrInvalidToken
	}

	now := t.now()
	var (
		result  *models.CampaignResult
		changed []EventType
		first   bool
	)
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if result, err = t.tokens.resolve(tx, token); err != nil {
			return err
		}

		for i := 0; i <= upto; i++ {
			ok, err := advance(tx, token, progression[i], now)
			if err != nil {
				return err
			}
			if ok {
				changed = append(changed, progression[i].event)
			}
		}

		if extra != nil {
			ok, err := extra(tx, now)
			if err != nil {
				return err
			}
			if event == EventSubmitted {
				first = ok
				if ok {
					changed = append(changed, EventSubmitted)
				}
			}
		}
		if event != EventSubmitted {
			first = containsEvent(changed, event)
		}

		return tx.First(result, result.ID).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			utils.RecordTrackingEvent(string(event), "invalid_token")
			return nil, false, err
		}
		utils.LogError(t.log, "tracking_update_failed", err, map[string]interface{}{
			"event": string(event),
		})
		return nil, false, err
	}

	outcome := "repeat"
	if first {
		outcome = "first"
	}
	utils.RecordTrackingEvent(string(event), outcome)

	for _, ev := range changed {
		t.publish(ev, result, now)
	}
	if first {
		t.log.WithFields(logrus.Fields{
			"event":       string(event),
			"campaign_id": result.CampaignID,
			"result_id":   result.ID,
		}).Info("Tracking event recorded")
	}
	return result, first, nil
}

func (t *ResultTracker) publish(event EventType, result *models.CampaignResult, at time.Time) {
	if t.events == nil {
		return
	}
	t.events.Publish(TrackingEvent{
		Type:       event,
		CampaignID: result.CampaignID,
		ResultID:   result.ID,
		TargetID:   result.TargetID,
		First:      true,
		At:         at,
	})
}

// advance sets one flag and its timestamp if the flag is still false
func advance(tx *gorm.DB, token string, s stage, now time.Time) (bool, error) {
	res := tx.Model(&models.CampaignResult{}).
		Where("unique_token = ? AND "+s.flag+" = ?", token, false).
		Updates(map[string]interface{}{
			s.flag:  true,
			s.stamp: now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func storeDevice(tx *gorm.DB, token, userAgent, ipAddress string) error {
	fields := map[string]interface{}{}
	if userAgent != "" {
		fields["user_agent"] = userAgent
	}
	if ipAddress != "" {
		fields["ip_address"] = ipAddress
	}
	if len(fields) == 0 {
		return nil
	}
	return tx.Model(&models.CampaignResult{}).
		Where("unique_token = ?", token).
		Updates(fields).Error
}

func containsEvent(events []EventType, event EventType) bool {
	for _, e := range events {
		if e == event {
			return true
		}
	}
	return false
}
