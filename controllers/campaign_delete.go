package controller

import (
	"github.com/gofiber/fiber/v2"

	"phishdrill/utils"
)

// DeleteCampaign removes a campaign and all of its results
func (cc *CampaignController) DeleteCampaign(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	if err := cc.Campaigns.Delete(c.UserContext(), id); err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to delete campaign", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Campaign deleted successfully",
	}))
}
