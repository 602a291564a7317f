package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishdrill/models"
	"phishdrill/testutil"
)

func seedResult(t *testing.T, f *fixture, token string) *models.CampaignResult {
	t.Helper()
	target := testutil.CreateTarget(t, f.db, "Bob", token+"@example.com", "Sales")
	campaign := testutil.CreateCampaign(t, f.db, "Campaign "+token, "it-helpdesk")
	return testutil.CreateResult(t, f.db, campaign.ID, target.ID, token)
}

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func TestResultTracker_OpenIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedResult(t, f, "tok-open")

	t1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	f.tracker.now = fixedClock(t1, t2)

	first, changed, err := f.tracker.RecordOpened(ctx, "tok-open")
	require.NoError(t, err)
	assert.True(t, changed)
	require.NotNil(t, first.OpenedAt)
	assert.True(t, first.OpenedAt.Equal(t1))

	second, changed, err := f.tracker.RecordOpened(ctx, "tok-open")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, second.OpenedAt.Equal(t1), "first open wins")
}

func TestResultTracker_CausalBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedResult(t, f, "tok-submit")

	result, first, err := f.tracker.RecordSubmitted(ctx, "tok-submit", "bob", "hunter2")
	require.NoError(t, err)
	assert.True(t, first)

	assert.True(t, result.EmailSent)
	assert.True(t, result.EmailOpened)
	assert.True(t, result.LinkClicked)
	assert.True(t, result.CredentialsSubmitted)
	assert.NotNil(t, result.SentAt)
	assert.NotNil(t, result.OpenedAt)
	assert.NotNil(t, result.ClickedAt)
	assert.NotNil(t, result.SubmittedAt)
}

func TestResultTracker_ClickBackfillsOpenAndRefreshesDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedResult(t, f, "tok-click")

	result, first, err := f.tracker.RecordClicked(ctx, "tok-click", "Mozilla/5.0", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, result.EmailOpened)
	require.NotNil(t, result.ClickedAt)
	clickedAt := *result.ClickedAt

	result, first, err = f.tracker.RecordClicked(ctx, "tok-click", "curl/8.0", "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, first)
	assert.True(t, result.ClickedAt.Equal(clickedAt))
	require.NotNil(t, result.UserAgent)
	assert.Equal(t, "curl/8.0", *result.UserAgent)
	require.NotNil(t, result.IPAddress)
	assert.Equal(t, "10.0.0.2", *result.IPAddress)
}

func TestResultTracker_FirstSubmissionWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stored := seedResult(t, f, "tok-creds")

	_, first, err := f.tracker.RecordSubmitted(ctx, "tok-creds", "first-user", "first-pass")
	require.NoError(t, err)
	assert.True(t, first)

	_, first, err = f.tracker.RecordSubmitted(ctx, "tok-creds", "second-user", "second-pass")
	require.NoError(t, err)
	assert.False(t, first)

	creds, err := f.capture.Reveal(ctx, stored.CampaignID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "first-user", creds.Username)
	assert.Equal(t, "first-pass", creds.Password)
	assert.True(t, creds.Simulated)
}

func TestResultTracker_ConcurrentSubmissionsCaptureOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stored := seedResult(t, f, "tok-race")

	credentials := [][2]string{{"a", "1"}, {"b", "2"}}

	const workers = 8
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
		winner [2]string
	)
	for i := 0; i < workers; i++ {
		pair := credentials[i%2]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, first, err := f.tracker.RecordSubmitted(ctx, "tok-race", pair[0], pair[1])
			assert.NoError(t, err)
			if first {
				mu.Lock()
				firsts++
				winner = pair
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, firsts)

	creds, err := f.capture.Reveal(ctx, stored.CampaignID, stored.ID)
	require.NoError(t, err)
	got := [2]string{creds.Username, creds.Password}
	assert.Contains(t, credentials, got, "stored credentials must be one submitted pair")
	assert.Equal(t, winner, got, "the first submission is the one stored")
}

func TestResultTracker_InvalidToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.tracker.RecordOpened(ctx, "missing")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = f.tracker.RecordClicked(ctx, "missing", "ua", "1.2.3.4")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = f.tracker.RecordSubmitted(ctx, "", "u", "p")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResultTracker_PublishesChangedStages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedResult(t, f, "tok-events")

	events, unsubscribe := f.hub.Subscribe()
	defer unsubscribe()

	_, _, err := f.tracker.RecordClicked(ctx, "tok-events", "", "")
	require.NoError(t, err)

	var got []EventType
	for len(got) < 3 {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	assert.Equal(t, []EventType{EventSent, EventOpened, EventClicked}, got)

	// a repeat click changes no stage and publishes nothing
	_, _, err = f.tracker.RecordClicked(ctx, "tok-events", "", "")
	require.NoError(t, err)
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestSimulatedCredentialCapture_RevealWithoutSubmission(t *testing.T) {
	f := newFixture(t)
	stored := seedResult(t, f, "tok-none")

	_, err := f.capture.Reveal(context.Background(), stored.CampaignID, stored.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.capture.Reveal(context.Background(), stored.CampaignID+1, stored.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
