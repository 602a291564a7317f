package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/services"
	"phishdrill/utils"
)

// TrackingController serves the anonymous endpoints reached from simulated
// phishing emails. Responses never reveal internal errors to the recipient.
type TrackingController struct {
	Tracker   *services.ResultTracker
	Campaigns *services.CampaignService
	Renderer  *services.TemplateRenderer
	SubmitURL string
	Logger    *logrus.Entry
}

func NewTrackingController(tracker *services.ResultTracker, campaigns *services.CampaignService, renderer *services.TemplateRenderer, submitURL string, logger *logrus.Entry) *TrackingController {
	return &TrackingController{
		Tracker:   tracker,
		Campaigns: campaigns,
		Renderer:  renderer,
		SubmitURL: submitURL,
		Logger:    logger.WithField("component", "tracking"),
	}
}

// TrackOpen records an email open and always answers with the pixel
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	token := c.Query("token")
	if _, _, err := tc.Tracker.RecordOpened(c.UserContext(), token); err != nil {
		tc.Logger.WithError(err).Debug("Open not recorded")
	}

	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	c.Set("Pragma", "no-cache")
	c.Set(fiber.HeaderExpires, "0")
	return c.Type("gif").Send(transparentPixel())
}

// TrackClick records a link click reported by the landing page
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	var input struct {
		Token     string `json:"token"`
		UserAgent string `json:"user_agent"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	if input.UserAgent == "" {
		input.UserAgent = c.Get(fiber.HeaderUserAgent)
	}

	if _, _, err := tc.Tracker.RecordClicked(c.UserContext(), input.Token, input.UserAgent, c.IP()); err != nil {
		return tc.benignError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Submit records credentials typed into the simulated sign-in page.
// The response never echoes what was submitted.
func (tc *TrackingController) Submit(c *fiber.Ctx) error {
	var input struct {
		Token    string `json:"token" form:"token"`
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}

	if _, _, err := tc.Tracker.RecordSubmitted(c.UserContext(), input.Token, input.Username, input.Password); err != nil {
		return tc.benignError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// Landing records the click and serves the simulated sign-in page
func (tc *TrackingController) Landing(c *fiber.Ctx) error {
	token := c.Query("token")
	vars := services.TemplateVars{Token: token, SubmitURL: tc.SubmitURL}

	result, _, err := tc.Tracker.RecordClicked(c.UserContext(), token, c.Get(fiber.HeaderUserAgent), c.IP())
	if err == nil {
		if campaign, err := tc.Campaigns.Get(c.UserContext(), result.CampaignID); err == nil {
			vars.CampaignName = campaign.Name
		}
	} else {
		tc.Logger.WithError(err).Debug("Landing visit not recorded")
	}

	page, err := tc.Renderer.RenderLanding(vars)
	if err != nil {
		utils.LogError(tc.Logger, "landing_render_failed", err, nil)
		return c.Status(fiber.StatusInternalServerError).SendString("Page unavailable")
	}
	return c.Type("html").SendString(page)
}

func (tc *TrackingController) benignError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrInvalidToken) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Invalid token", nil)
	}
	utils.LogError(tc.Logger, "tracking_failed", err, map[string]interface{}{"path": c.Path()})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Request could not be processed", nil)
}

func transparentPixel() []byte {
	// 1x1 transparent GIF
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}
