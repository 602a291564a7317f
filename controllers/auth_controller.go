package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/services"
	"phishdrill/utils"
)

const accessTokenCookie = "access_token"

type AuthController struct {
	Auth         *services.AuthService
	SecureCookie bool
	Logger       *logrus.Entry
}

func NewAuthController(auth *services.AuthService, secureCookie bool, logger *logrus.Entry) *AuthController {
	return &AuthController{
		Auth:         auth,
		SecureCookie: secureCookie,
		Logger:       logger.WithField("component", "auth_controller"),
	}
}

// Login issues an access token and mirrors it into an HTTP-only cookie
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}

	session, err := ac.Auth.Login(c.UserContext(), req)
	if err != nil {
		return HandleServiceError(c, ac.Logger, "Login failed", err)
	}

	cookie := new(fiber.Cookie)
	cookie.Name = accessTokenCookie
	cookie.Value = session.Token
	cookie.Expires = session.ExpiresAt
	cookie.HTTPOnly = true
	cookie.Secure = ac.SecureCookie
	cookie.SameSite = "Lax"
	c.Cookie(cookie)

	return c.JSON(utils.SuccessResponse(session))
}

func (ac *AuthController) Logout(c *fiber.Ctx) error {
	c.ClearCookie(accessTokenCookie)
	return c.JSON(utils.SuccessResponse(fiber.Map{"message": "Logged out"}))
}

func (ac *AuthController) GetCurrentUser(c *fiber.Ctx) error {
	return c.JSON(utils.SuccessResponse(currentUser(c)))
}
