package controller

import (
	"github.com/gofiber/fiber/v2"

	"phishdrill/services"
	"phishdrill/utils"
)

func (cc *CampaignController) CreateCampaign(c *fiber.Ctx) error {
	var input services.CreateCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	campaign, err := cc.Campaigns.Create(c.UserContext(), input, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to create campaign", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(campaign))
}

// UpdateCampaign edits a campaign that is still a draft
func (cc *CampaignController) UpdateCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	var input services.CreateCampaignInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	campaign, err := cc.Campaigns.Update(c.UserContext(), id, input)
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to update campaign", err)
	}
	return c.JSON(utils.SuccessResponse(campaign))
}

// GetTemplates lists the email templates a campaign can use
func (cc *CampaignController) GetTemplates(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(cc.Renderer.Templates()))
}
