package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"phishdrill/testutil"
)

type fixture struct {
	db        *gorm.DB
	hub       *EventHub
	tokens    *TokenEngine
	capture   *SimulatedCredentialCapture
	tracker   *ResultTracker
	renderer  *TemplateRenderer
	campaigns *CampaignService
	stats     *StatsService
	targets   *TargetService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	log := testutil.NewLogger()

	renderer, err := NewTemplateRenderer()
	require.NoError(t, err)

	hub := NewEventHub(64)
	tokens := NewTokenEngine(db)
	capture := NewSimulatedCredentialCapture(db)
	tracker := NewResultTracker(db, tokens, capture, hub, log)
	urls := TrackingURLs{BaseURL: "http://track.example.com", LandingURL: "http://track.example.com/landing"}

	return &fixture{
		db:        db,
		hub:       hub,
		tokens:    tokens,
		capture:   capture,
		tracker:   tracker,
		renderer:  renderer,
		campaigns: NewCampaignService(db, tokens, tracker, renderer, hub, urls, log),
		stats:     NewStatsService(db),
		targets:   NewTargetService(db, log),
	}
}
