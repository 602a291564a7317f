package controller

import (
	"github.com/gofiber/fiber/v2"

	"phishdrill/utils"
)

// AssignTargets replaces the campaign's target set with the given ids
func (cc *CampaignController) AssignTargets(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	// Both key spellings are accepted; target_ids wins when both are sent
	var input struct {
		TargetIDs      []uint `json:"target_ids"`
		TargetIDsCamel []uint `json:"targetIds"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.TargetIDs == nil {
		input.TargetIDs = input.TargetIDsCamel
	}
	if input.TargetIDs == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "target_ids is required", nil)
	}

	summary, err := cc.Campaigns.AssignTargets(c.UserContext(), id, input.TargetIDs, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to assign targets", err)
	}
	return c.JSON(utils.SuccessResponse(summary))
}

// LaunchCampaign activates a draft campaign
func (cc *CampaignController) LaunchCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	sent, err := cc.Campaigns.Launch(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to launch campaign", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message":    "Campaign launched successfully",
		"sent_count": sent,
	}))
}

// CompleteCampaign closes an active campaign
func (cc *CampaignController) CompleteCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	campaign, err := cc.Campaigns.Complete(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to complete campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}
