package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishdrill/models"
	"phishdrill/testutil"
)

func validCampaignInput() CreateCampaignInput {
	return CreateCampaignInput{
		Name:        "Spring awareness",
		Template:    "password-expiry",
		Subject:     "Your password expires today",
		SenderName:  "IT Support",
		SenderEmail: "it@example.com",
	}
}

func resultTargets(t *testing.T, f *fixture, campaignID uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, f.db.Model(&models.CampaignResult{}).
		Where("campaign_id = ?", campaignID).
		Order("target_id").
		Pluck("target_id", &ids).Error)
	return ids
}

func TestCampaignService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("starts as draft", func(t *testing.T) {
		campaign, err := f.campaigns.Create(ctx, validCampaignInput(), nil)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
		assert.NotZero(t, campaign.ID)
	})

	t.Run("missing fields", func(t *testing.T) {
		input := validCampaignInput()
		input.Name = "  "
		input.SenderEmail = "not-an-email"
		_, err := f.campaigns.Create(ctx, input, nil)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "sender_email must be a valid email")
	})

	t.Run("unknown template", func(t *testing.T) {
		input := validCampaignInput()
		input.Template = "nope"
		_, err := f.campaigns.Create(ctx, input, nil)
		assert.True(t, IsValidationError(err))
	})

	t.Run("subject that does not render", func(t *testing.T) {
		var before int64
		require.NoError(t, f.db.Model(&models.Campaign{}).Count(&before).Error)

		for _, subject := range []string{
			"Hi {{ target_name | nosuchfilter }} {% if %}",
			"Hi {% if %}",
			"{{ target_name | nosuchfilter }}",
		} {
			input := validCampaignInput()
			input.Subject = subject
			_, err := f.campaigns.Create(ctx, input, nil)
			require.Error(t, err, subject)
			assert.True(t, IsValidationError(err), subject)
		}

		var after int64
		require.NoError(t, f.db.Model(&models.Campaign{}).Count(&after).Error)
		assert.Equal(t, before, after)
	})
}

func TestCampaignService_UpdateRejectsBrokenSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign, err := f.campaigns.Create(ctx, validCampaignInput(), nil)
	require.NoError(t, err)

	input := validCampaignInput()
	input.Subject = "Hi {% if %}"
	_, err = f.campaigns.Update(ctx, campaign.ID, input)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	stored, err := f.campaigns.Get(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, validCampaignInput().Subject, stored.Subject)
}

func TestCampaignService_PreviewKeepsUnrenderableSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// rows written before subjects were validated can still hold broken markup
	campaign := testutil.CreateCampaign(t, f.db, "Legacy", "it-helpdesk")
	broken := "Hi {{ target_name | nosuchfilter }} {% if %}"
	require.NoError(t, f.db.Model(campaign).Update("subject", broken).Error)
	target := testutil.CreateTarget(t, f.db, "Ann", "ann@example.com", "Ops")

	preview, err := f.campaigns.PreviewFor(ctx, campaign.ID, target.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, broken, preview.Subject)
	assert.True(t, preview.TemplateFound)
}

func TestCampaignService_AssignTargetsFullSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Sync", "it-helpdesk")
	a := testutil.CreateTarget(t, f.db, "A", "a@example.com", "Ops")
	b := testutil.CreateTarget(t, f.db, "B", "b@example.com", "Ops")
	c := testutil.CreateTarget(t, f.db, "C", "c@example.com", "HR")

	summary, err := f.campaigns.AssignTargets(ctx, campaign.ID, []uint{a.ID, b.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, []uint{a.ID, b.ID}, resultTargets(t, f, campaign.ID))

	var tokenB string
	require.NoError(t, f.db.Model(&models.CampaignResult{}).
		Where("campaign_id = ? AND target_id = ?", campaign.ID, b.ID).
		Pluck("unique_token", &tokenB).Error)

	actor := testutil.CreateUser(t, f.db, "operator", models.RoleAdmin).ID
	summary, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{b.ID, c.ID, c.ID}, &actor)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Removed)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, []uint{b.ID, c.ID}, resultTargets(t, f, campaign.ID))

	var kept models.CampaignResult
	require.NoError(t, f.db.Where("campaign_id = ? AND target_id = ?", campaign.ID, b.ID).First(&kept).Error)
	assert.Equal(t, tokenB, kept.UniqueToken, "kept targets keep their token")

	var added models.CampaignResult
	require.NoError(t, f.db.Where("campaign_id = ? AND target_id = ?", campaign.ID, c.ID).First(&added).Error)
	assert.False(t, added.EmailSent)
	require.NotNil(t, added.UserID)
	assert.Equal(t, actor, *added.UserID)

	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{}, nil)
	require.NoError(t, err)
	assert.Empty(t, resultTargets(t, f, campaign.ID))
}

func TestCampaignService_AssignTargetsUnknownIDRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Rollback", "it-helpdesk")
	a := testutil.CreateTarget(t, f.db, "A", "a@example.com", "Ops")
	b := testutil.CreateTarget(t, f.db, "B", "b@example.com", "Ops")

	_, err := f.campaigns.AssignTargets(ctx, campaign.ID, []uint{a.ID}, nil)
	require.NoError(t, err)

	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{b.ID, 9999}, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "9999")
	assert.Equal(t, []uint{a.ID}, resultTargets(t, f, campaign.ID))

	_, err = f.campaigns.AssignTargets(ctx, 4242, []uint{a.ID}, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCampaignService_Launch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("no targets leaves status unchanged", func(t *testing.T) {
		campaign := testutil.CreateCampaign(t, f.db, "Empty", "payroll-update")
		_, err := f.campaigns.Launch(ctx, campaign.ID)
		assert.ErrorIs(t, err, ErrNoTargets)

		reloaded, err := f.campaigns.Get(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)
	})

	t.Run("marks every result sent", func(t *testing.T) {
		campaign := testutil.CreateCampaign(t, f.db, "Launch", "payroll-update")
		for _, email := range []string{"l1@example.com", "l2@example.com", "l3@example.com"} {
			target := testutil.CreateTarget(t, f.db, email, email, "Finance")
			_, err := f.campaigns.AssignTargets(ctx, campaign.ID, append(resultTargets(t, f, campaign.ID), target.ID), nil)
			require.NoError(t, err)
		}

		sent, err := f.campaigns.Launch(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, sent)

		reloaded, err := f.campaigns.Get(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusActive, reloaded.Status)
		assert.NotNil(t, reloaded.LaunchedAt)

		var unsent int64
		require.NoError(t, f.db.Model(&models.CampaignResult{}).
			Where("campaign_id = ? AND email_sent = ?", campaign.ID, false).
			Count(&unsent).Error)
		assert.Zero(t, unsent)

		_, err = f.campaigns.Launch(ctx, campaign.ID)
		assert.ErrorIs(t, err, ErrAlreadyLaunched)

		late := testutil.CreateTarget(t, f.db, "Late", "late@example.com", "Finance")
		_, err = f.campaigns.AssignTargets(ctx, campaign.ID, append(resultTargets(t, f, campaign.ID), late.ID), nil)
		require.NoError(t, err)
		var lateResult models.CampaignResult
		require.NoError(t, f.db.Where("campaign_id = ? AND target_id = ?", campaign.ID, late.ID).First(&lateResult).Error)
		assert.True(t, lateResult.EmailSent, "targets added to an active campaign are sent")
	})

	t.Run("unknown campaign", func(t *testing.T) {
		_, err := f.campaigns.Launch(ctx, 31337)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCampaignService_Complete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Complete", "it-helpdesk")
	_, err := f.campaigns.Complete(ctx, campaign.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	target := testutil.CreateTarget(t, f.db, "T", "t@example.com", "Ops")
	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{target.ID}, nil)
	require.NoError(t, err)
	_, err = f.campaigns.Launch(ctx, campaign.ID)
	require.NoError(t, err)

	completed, err := f.campaigns.Complete(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{}, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCampaignService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Delete", "it-helpdesk")
	target := testutil.CreateTarget(t, f.db, "T", "t@example.com", "Ops")
	_, err := f.campaigns.AssignTargets(ctx, campaign.ID, []uint{target.ID}, nil)
	require.NoError(t, err)

	require.NoError(t, f.campaigns.Delete(ctx, campaign.ID))
	assert.Empty(t, resultTargets(t, f, campaign.ID))

	assert.ErrorIs(t, f.campaigns.Delete(ctx, campaign.ID), ErrNotFound)
}

func TestCampaignService_PreviewFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Preview", "password-expiry")
	target := testutil.CreateTarget(t, f.db, "<Eve>", "eve@example.com", "Legal")

	preview, err := f.campaigns.PreviewFor(ctx, campaign.ID, target.ID, nil)
	require.NoError(t, err)
	assert.True(t, preview.TemplateFound)
	assert.Equal(t, "Password expiry", preview.TemplateName)
	assert.Contains(t, preview.RenderedHTML, "&lt;Eve&gt;")
	assert.NotContains(t, preview.RenderedHTML, "<Eve>")
	assert.Contains(t, preview.RenderedHTML, "/track-open?token="+preview.Token)
	assert.Contains(t, preview.RenderedHTML, "/landing?token="+preview.Token)

	result, err := f.tokens.Resolve(ctx, preview.Token)
	require.NoError(t, err)
	assert.True(t, result.EmailSent, "a preview counts as sent")

	again, err := f.campaigns.PreviewFor(ctx, campaign.ID, target.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, preview.Token, again.Token, "preview reuses the existing result")
	assert.Len(t, resultTargets(t, f, campaign.ID), 1)
}

func TestCampaignService_PreviewUnknownTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "Broken", "retired-template")
	target := testutil.CreateTarget(t, f.db, "T", "t@example.com", "Ops")

	preview, err := f.campaigns.PreviewFor(ctx, campaign.ID, target.ID, nil)
	require.NoError(t, err)
	assert.False(t, preview.TemplateFound)
	assert.Contains(t, preview.RenderedHTML, "Template not found")
	assert.Contains(t, preview.RenderedHTML, "retired-template")
}

func TestCampaignService_PreviewEML(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign := testutil.CreateCampaign(t, f.db, "EML", "package-delivery")
	target := testutil.CreateTarget(t, f.db, "Dan", "dan@example.com", "Ops")

	raw, preview, err := f.campaigns.PreviewEML(ctx, campaign.ID, target.ID, nil)
	require.NoError(t, err)
	msg := string(raw)
	assert.Contains(t, msg, "To: dan@example.com")
	assert.Contains(t, msg, "X-Phishdrill-Simulation: true")
	assert.True(t, strings.Contains(msg, "Subject: "+preview.Subject))
}

func TestCampaignService_UpdateOnlyDrafts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	campaign, err := f.campaigns.Create(ctx, validCampaignInput(), nil)
	require.NoError(t, err)

	input := validCampaignInput()
	input.Name = "Renamed"
	input.Template = "payroll-update"
	updated, err := f.campaigns.Update(ctx, campaign.ID, input)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "payroll-update", updated.Template)

	target := testutil.CreateTarget(t, f.db, "T", "t@example.com", "Ops")
	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{target.ID}, nil)
	require.NoError(t, err)
	_, err = f.campaigns.Launch(ctx, campaign.ID)
	require.NoError(t, err)

	_, err = f.campaigns.Update(ctx, campaign.ID, input)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
