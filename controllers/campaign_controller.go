package controller

import (
	"github.com/sirupsen/logrus"

	"phishdrill/services"
)

// CampaignController exposes the campaign lifecycle to administrators
type CampaignController struct {
	Campaigns *services.CampaignService
	Capture   *services.SimulatedCredentialCapture
	Renderer  *services.TemplateRenderer
	Events    *services.EventHub
	Logger    *logrus.Entry
}

func NewCampaignController(campaigns *services.CampaignService, capture *services.SimulatedCredentialCapture, renderer *services.TemplateRenderer, events *services.EventHub, logger *logrus.Entry) *CampaignController {
	return &CampaignController{
		Campaigns: campaigns,
		Capture:   capture,
		Renderer:  renderer,
		Events:    events,
		Logger:    logger.WithField("component", "campaign_controller"),
	}
}
