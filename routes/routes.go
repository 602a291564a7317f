package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"phishdrill/config"
	controller "phishdrill/controllers"
	"phishdrill/middleware"
	"phishdrill/services"
)

// Dependencies are the long-lived values the HTTP layer is built from
type Dependencies struct {
	DB               *gorm.DB
	Config           *config.Config
	Logger           *logrus.Logger
	RateLimitStorage fiber.Storage // nil keeps limiter state in memory

	Auth      *services.AuthService
	Tracker   *services.ResultTracker
	Capture   *services.SimulatedCredentialCapture
	Renderer  *services.TemplateRenderer
	Events    *services.EventHub
	Campaigns *services.CampaignService
	Stats     *services.StatsService
	Targets   *services.TargetService
	Quizzes   *services.QuizService
}

func requestLogger() fiber.Handler {
	return logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	})
}

// SetupTrackingRoutes registers the anonymous endpoints reached from simulated emails
func SetupTrackingRoutes(app *fiber.App, deps Dependencies) {
	log := deps.Logger.WithField("component", "routes")
	trackingController := controller.NewTrackingController(
		deps.Tracker, deps.Campaigns, deps.Renderer,
		deps.Config.PublicBaseURL+"/submit", logrus.NewEntry(deps.Logger),
	)

	limit := middleware.TrackingRateLimiter(deps.Config.TrackingRateLimit, deps.RateLimitStorage, log)
	app.Get("/track-open", limit, trackingController.TrackOpen)
	app.Post("/track-click", limit, trackingController.TrackClick)
	app.Post("/submit", limit, trackingController.Submit)
	app.Get("/landing", limit, trackingController.Landing)

	log.Info("Tracking routes initialized successfully")
}

func SetupAuthRoutes(app *fiber.App, deps Dependencies) {
	log := deps.Logger.WithField("component", "routes")
	authController := controller.NewAuthController(deps.Auth, deps.Config.IsProduction(), logrus.NewEntry(deps.Logger))

	auth := app.Group("/auth", requestLogger())
	auth.Post("/login", authController.Login)

	protectedAuth := auth.Group("", middleware.Protected(deps.Auth))
	protectedAuth.Post("/logout", authController.Logout)
	protectedAuth.Get("/me", authController.GetCurrentUser)

	log.Info("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, deps Dependencies) {
	log := deps.Logger.WithField("component", "routes")
	entry := logrus.NewEntry(deps.Logger)

	campaignController := controller.NewCampaignController(deps.Campaigns, deps.Capture, deps.Renderer, deps.Events, entry)
	targetController := controller.NewTargetController(deps.Targets, entry)
	statsController := controller.NewStatsController(deps.Stats, entry)
	quizController := controller.NewQuizController(deps.Quizzes, entry)

	api := app.Group("/api/v1", middleware.Protected(deps.Auth), requestLogger())

	// Quiz routes are open to every signed-in user
	api.Get("/quizzes", quizController.GetQuizzes)
	api.Get("/quizzes/:id", quizController.GetQuiz)
	api.Post("/quizzes/:id/submit", quizController.SubmitQuiz)
	api.Get("/quiz-results", quizController.GetQuizResults)

	adminOnly := middleware.AdminOnly()

	// Campaign routes
	campaign := api.Group("/campaigns", adminOnly)

	// WebSocket live tracking feed, registered before /:id
	campaign.Get("/live", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(campaignController.HandleLiveFeed))

	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Put("/:id/targets", campaignController.AssignTargets)
	campaign.Post("/:id/launch", campaignController.LaunchCampaign)
	campaign.Post("/:id/complete", campaignController.CompleteCampaign)
	campaign.Get("/:id/preview/:targetId", campaignController.PreviewCampaign)
	campaign.Post("/:id/preview/:targetId", campaignController.PreviewCampaign)
	campaign.Get("/:id/preview/:targetId/eml", campaignController.PreviewEML)
	campaign.Get("/:id/preview-token/:targetId", campaignController.PreviewToken)
	campaign.Get("/:id/results", campaignController.GetCampaignResults)
	campaign.Get("/:id/results/:resultId/captured-credentials", campaignController.GetCapturedCredentials)

	api.Get("/templates", adminOnly, campaignController.GetTemplates)

	// Target routes
	target := api.Group("/targets", adminOnly)
	target.Post("/", targetController.CreateTarget)
	target.Get("/", targetController.GetTargets)
	target.Post("/import", targetController.ImportTargets)
	target.Get("/export", targetController.ExportTargets)
	target.Get("/:id", targetController.GetTarget)
	target.Put("/:id", targetController.UpdateTarget)
	target.Delete("/:id", targetController.DeleteTarget)

	// Statistics routes
	stats := api.Group("/stats", adminOnly)
	stats.Get("/overview", statsController.GetOverview)
	stats.Get("/overall", statsController.GetOverall)
	stats.Get("/campaign/:id", statsController.GetCampaignStats)
	stats.Get("/departments", statsController.GetDepartments)

	log.Info("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := deps.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	SetupTrackingRoutes(app, deps)
	SetupAuthRoutes(app, deps)
	SetupAPIRoutes(app, deps)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
