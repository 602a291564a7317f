package controller

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/services"
	"phishdrill/utils"
)

const maxImportSize = 5 << 20

type TargetController struct {
	Targets *services.TargetService
	Logger  *logrus.Entry
}

func NewTargetController(targets *services.TargetService, logger *logrus.Entry) *TargetController {
	return &TargetController{
		Targets: targets,
		Logger:  logger.WithField("component", "target_controller"),
	}
}

func (tc *TargetController) CreateTarget(c *fiber.Ctx) error {
	var input services.TargetInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	target, err := tc.Targets.Create(c.UserContext(), input, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to create target", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(target))
}

// GetTargets returns a paginated list filtered by ?department= and ?search=
func (tc *TargetController) GetTargets(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}

	targets, total, err := tc.Targets.List(c.UserContext(), services.TargetFilter{
		Department: c.Query("department"),
		Search:     c.Query("search"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to fetch targets", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  targets,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

func (tc *TargetController) GetTarget(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid target ID", nil)
	}

	target, err := tc.Targets.Get(c.UserContext(), id)
	if err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to fetch target", err)
	}
	return c.JSON(utils.SuccessResponse(target))
}

func (tc *TargetController) UpdateTarget(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid target ID", nil)
	}

	var input services.TargetInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	target, err := tc.Targets.Update(c.UserContext(), id, input)
	if err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to update target", err)
	}
	return c.JSON(utils.SuccessResponse(target))
}

func (tc *TargetController) DeleteTarget(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid target ID", nil)
	}

	if err := tc.Targets.Delete(c.UserContext(), id); err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to delete target", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Target deleted successfully",
	}))
}

// ImportTargets imports targets from an uploaded CSV file
func (tc *TargetController) ImportTargets(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}

	// Check file size (max 5MB)
	if file.Size > maxImportSize {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large (max 5MB)", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	summary, err := tc.Targets.ImportCSV(c.UserContext(), src, currentUserID(c))
	if err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to import targets", err)
	}
	return c.JSON(utils.SuccessResponse(summary))
}

// ExportTargets streams every target as CSV
func (tc *TargetController) ExportTargets(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=targets_export_"+time.Now().Format("20060102")+".csv")

	if err := tc.Targets.ExportCSV(c.UserContext(), c); err != nil {
		return HandleServiceError(c, tc.Logger, "Failed to generate CSV", err)
	}
	return nil
}
