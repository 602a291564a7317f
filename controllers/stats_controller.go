package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/services"
	"phishdrill/utils"
)

// StatsController serves the dashboard figures
type StatsController struct {
	Stats  *services.StatsService
	Logger *logrus.Entry
}

func NewStatsController(stats *services.StatsService, logger *logrus.Entry) *StatsController {
	return &StatsController{
		Stats:  stats,
		Logger: logger.WithField("component", "stats_controller"),
	}
}

// GetOverview returns the global counters shown on the dashboard cards
func (sc *StatsController) GetOverview(c *fiber.Ctx) error {
	overview, err := sc.Stats.Overview(c.UserContext())
	if err != nil {
		return HandleServiceError(c, sc.Logger, "Failed to fetch overview", err)
	}
	return c.JSON(utils.SuccessResponse(overview))
}

func (sc *StatsController) GetOverall(c *fiber.Ctx) error {
	overall, err := sc.Stats.Overall(c.UserContext())
	if err != nil {
		return HandleServiceError(c, sc.Logger, "Failed to fetch statistics", err)
	}
	return c.JSON(utils.SuccessResponse(overall))
}

func (sc *StatsController) GetCampaignStats(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign ID", nil)
	}

	stats, err := sc.Stats.Campaign(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, sc.Logger, "Failed to fetch campaign statistics", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}

func (sc *StatsController) GetDepartments(c *fiber.Ctx) error {
	rows, err := sc.Stats.Departments(c.UserContext())
	if err != nil {
		return HandleServiceError(c, sc.Logger, "Failed to fetch department statistics", err)
	}
	return c.JSON(utils.SuccessResponse(rows))
}
