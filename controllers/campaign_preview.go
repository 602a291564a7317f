package controller

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"phishdrill/utils"
)

func (cc *CampaignController) previewIDs(c *fiber.Ctx) (uint, uint, bool) {
	campaignID, ok := paramID(c, "id")
	if !ok {
		return 0, 0, false
	}
	targetID, ok := paramID(c, "targetId")
	return campaignID, targetID, ok
}

// PreviewCampaign renders the campaign email for one target, as JSON or
// as the raw page with ?format=html
func (cc *CampaignController) PreviewCampaign(c *fiber.Ctx) error {
	campaignID, targetID, ok := cc.previewIDs(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign or target ID", nil)
	}

	preview, err := cc.Campaigns.PreviewFor(c.UserContext(), campaignID, targetID, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to render preview", err)
	}
	if c.Query("format") == "html" {
		return c.Type("html").SendString(preview.RenderedHTML)
	}
	return c.JSON(utils.SuccessResponse(preview))
}

// PreviewToken returns only the tracking token and links for one target
func (cc *CampaignController) PreviewToken(c *fiber.Ctx) error {
	campaignID, targetID, ok := cc.previewIDs(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign or target ID", nil)
	}

	preview, err := cc.Campaigns.PreviewFor(c.UserContext(), campaignID, targetID, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to issue preview token", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"token":         preview.Token,
		"phishing_link": preview.PhishingLink,
		"template_name": preview.TemplateName,
	}))
}

// PreviewEML downloads the rendered email as an .eml file
func (cc *CampaignController) PreviewEML(c *fiber.Ctx) error {
	campaignID, targetID, ok := cc.previewIDs(c)
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign or target ID", nil)
	}

	raw, _, err := cc.Campaigns.PreviewEML(c.UserContext(), campaignID, targetID, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, cc.Logger, "Failed to build message", err)
	}

	c.Set(fiber.HeaderContentType, "message/rfc822")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=campaign_%d_target_%d.eml", campaignID, targetID))
	return c.Send(raw)
}
