package controller

import (
	"github.com/gofiber/fiber/v2"

	"phishdrill/models"
	"phishdrill/utils"
)

// GetCampaigns lists campaigns, optionally filtered by ?status=
func (cc *CampaignController) GetCampaigns(c *fiber.Ctx) error {
	status := c.Query("status")
	switch status {
	case "", models.CampaignStatusDraft, models.CampaignStatusScheduled,
		models.CampaignStatusActive, models.CampaignStatusCompleted:
	default:
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status filter", nil)
	}

	campaigns, err := cc.Campaigns.List(c.UserContext(), status)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to fetch campaigns", err)
	}
	return c.JSON(utils.SuccessResponse(campaigns))
}

func (cc *CampaignController) GetCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	campaign, err := cc.Campaigns.Get(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to fetch campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// GetCampaignResults returns every tracking row of a campaign with its target
func (cc *CampaignController) GetCampaignResults(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	results, err := cc.Campaigns.Results(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to fetch campaign results", err)
	}
	return c.JSON(utils.SuccessResponse(results))
}

// GetCapturedCredentials reveals what a target typed into the simulated page
func (cc *CampaignController) GetCapturedCredentials(c *fiber.Ctx) error {
	campaignID, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}
	resultID, ok := paramID(c, "resultId")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid result ID", nil)
	}

	creds, err := cc.Capture.Reveal(c.UserContext(), campaignID, resultID)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to fetch captured credentials", err)
	}

	utils.LogEvent(cc.Logger, "captured_credentials_viewed", map[string]interface{}{
		"campaign_id": campaignID,
		"result_id":   resultID,
		"viewer_id":   currentUserID(c),
	})
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(utils.SuccessResponse(creds))
}
