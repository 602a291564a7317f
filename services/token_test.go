package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishdrill/models"
	"phishdrill/testutil"
	"phishdrill/utils"
)

func TestTokenEngine_IssueIsUniqueAndWellFormed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		token, err := f.tokens.Issue(ctx, nil)
		require.NoError(t, err)
		assert.True(t, utils.IsWellFormedToken(token), "token %q", token)
		_, dup := seen[token]
		assert.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestTokenEngine_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := testutil.CreateTarget(t, f.db, "Alice", "alice@example.com", "Finance")
	campaign := testutil.CreateCampaign(t, f.db, "Q1", "password-expiry")
	stored := testutil.CreateResult(t, f.db, campaign.ID, target.ID, "abc123")

	t.Run("exact match", func(t *testing.T) {
		result, err := f.tokens.Resolve(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, result.ID)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.tokens.Resolve(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := f.tokens.Resolve(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := f.tokens.Resolve(ctx, "ABC123")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenEngine_IssuedTokenResolvesToFreshResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	target := testutil.CreateTarget(t, f.db, "Bob", "bob@example.com", "Sales")
	campaign, err := f.campaigns.Create(ctx, validCampaignInput(), nil)
	require.NoError(t, err)
	_, err = f.campaigns.AssignTargets(ctx, campaign.ID, []uint{target.ID}, nil)
	require.NoError(t, err)

	var tokens []string
	require.NoError(t, f.db.Model(&models.CampaignResult{}).
		Where("campaign_id = ? AND target_id = ?", campaign.ID, target.ID).
		Pluck("unique_token", &tokens).Error)
	require.Len(t, tokens, 1)
	token := tokens[0]
	require.True(t, utils.IsWellFormedToken(token), "token %q", token)

	result, err := f.tokens.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, result.CampaignID)
	assert.Equal(t, target.ID, result.TargetID)
	assert.False(t, result.EmailSent)
	assert.False(t, result.EmailOpened)
	assert.False(t, result.LinkClicked)
	assert.False(t, result.CredentialsSubmitted)
	assert.Nil(t, result.SentAt)
	assert.Nil(t, result.CapturedUsername)
}
