package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"phishdrill/services"
	"phishdrill/utils"
)

type QuizController struct {
	Quizzes *services.QuizService
	Logger  *logrus.Entry
}

func NewQuizController(quizzes *services.QuizService, logger *logrus.Entry) *QuizController {
	return &QuizController{
		Quizzes: quizzes,
		Logger:  logger.WithField("component", "quiz_controller"),
	}
}

func (qc *QuizController) GetQuizzes(c *fiber.Ctx) error {
	quizzes, err := qc.Quizzes.List(c.UserContext())
	if err != nil {
		return HandleServiceError(c, qc.Logger, "Failed to fetch quizzes", err)
	}
	return c.JSON(utils.SuccessResponse(quizzes))
}

// GetQuiz returns one quiz; only admins see the answers
func (qc *QuizController) GetQuiz(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid quiz ID", nil)
	}

	user := currentUser(c)
	quiz, err := qc.Quizzes.Get(c.UserContext(), id, user != nil && user.IsAdmin())
	if err != nil {
		return HandleServiceError(c, qc.Logger, "Failed to fetch quiz", err)
	}
	return c.JSON(utils.SuccessResponse(quiz))
}

func (qc *QuizController) SubmitQuiz(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid quiz ID", nil)
	}

	var input struct {
		Answers []int `json:"answers"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	user := currentUser(c)
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
	}

	submission, err := qc.Quizzes.Submit(c.UserContext(), id, user.ID, input.Answers)
	if err != nil {
		return HandleServiceError(c, qc.Logger, "Failed to submit quiz", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(submission))
}

// GetQuizResults lists the caller's attempts. Admins may pass ?all=true.
func (qc *QuizController) GetQuizResults(c *fiber.Ctx) error {
	user := currentUser(c)
	if user == nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
	}

	userID := &user.ID
	if user.IsAdmin() && c.QueryBool("all") {
		userID = nil
	}

	results, err := qc.Quizzes.Results(c.UserContext(), userID)
	if err != nil {
		return HandleServiceError(c, qc.Logger, "Failed to fetch quiz results", err)
	}
	return c.JSON(utils.SuccessResponse(results))
}
