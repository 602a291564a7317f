package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/models"
	"phishdrill/services"
	"phishdrill/utils"
)

// HandleServiceError maps service errors onto HTTP responses. Unexpected
// errors are logged and reported, and the client only sees message.
func HandleServiceError(c *fiber.Ctx, log *logrus.Entry, message string, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrInvalidToken):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error(), nil)
	case services.IsValidationError(err):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, services.ErrInvalidCredentials):
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, err.Error(), nil)
	case errors.Is(err, services.ErrAlreadyLaunched),
		errors.Is(err, services.ErrNoTargets),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrTargetInUse),
		errors.Is(err, services.ErrDuplicate):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error(), nil)
	}

	utils.LogError(log, "request_failed", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, message, nil)
}

// currentUser returns the authenticated user set by middleware.Protected
func currentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals("user").(*models.User)
	return user
}

func currentUserID(c *fiber.Ctx) *uint {
	if user := currentUser(c); user != nil {
		return utils.Pointer(user.ID)
	}
	return nil
}

// paramID parses a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id := utils.ParseUint(c.Params(name))
	return id, id != 0
}
