package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"phishdrill/config"
	"phishdrill/middleware"
	"phishdrill/models"
	"phishdrill/routes"
	"phishdrill/services"
	"phishdrill/utils"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.NewLogger(cfg.Log)
	log := logger.WithField("component", "main")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.WithError(err).Warn("Sentry disabled")
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	db, err := config.ConnectDB(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := config.CloseDB(db); err != nil {
			log.WithError(err).Error("Failed to close database")
		}
	}()

	created, err := models.CreateDefaultAdmin(db, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to create default admin: %v", err)
	}
	if created {
		log.WithField("username", cfg.AdminUsername).Info("Default admin created")
	}
	if err := models.CreateDefaultQuizzes(db); err != nil {
		log.Fatalf("Failed to seed quizzes: %v", err)
	}

	renderer, err := services.NewTemplateRenderer()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	var rateLimitStorage fiber.Storage
	if cfg.Redis.Enabled {
		redisStorage := middleware.NewRedisStorage(cfg.Redis)
		if err := redisStorage.Ping(context.Background()); err != nil {
			log.WithError(err).Warn("Redis unreachable, rate limiting stays in memory")
			redisStorage.Close()
		} else {
			rateLimitStorage = redisStorage
			defer redisStorage.Close()
		}
	}

	entry := logrus.NewEntry(logger)
	events := services.NewEventHub(64)
	tokens := services.NewTokenEngine(db)
	capture := services.NewSimulatedCredentialCapture(db)
	tracker := services.NewResultTracker(db, tokens, capture, events, entry)
	urls := services.TrackingURLs{BaseURL: cfg.PublicBaseURL, LandingURL: cfg.LandingURL}

	deps := routes.Dependencies{
		DB:               db,
		Config:           cfg,
		Logger:           logger,
		RateLimitStorage: rateLimitStorage,
		Auth:             services.NewAuthService(db, cfg.JWTSecret, entry),
		Tracker:          tracker,
		Capture:          capture,
		Renderer:         renderer,
		Events:           events,
		Campaigns:        services.NewCampaignService(db, tokens, tracker, renderer, events, urls, entry),
		Stats:            services.NewStatsService(db),
		Targets:          services.NewTargetService(db, entry),
		Quizzes:          services.NewQuizService(db, cfg.QuizPassingScore),
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "phishdrill",
		BodyLimit:    6 << 20,
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: !cfg.IsProduction()}))
	app.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))

	routes.SetupRoutes(app, deps)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	// Start server
	log.WithFields(logrus.Fields{
		"port":        cfg.ServerPort,
		"environment": cfg.Environment,
	}).Info("Server starting")
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Errorf("Server stopped: %v", err)
	}
}

// errorHandler turns errors escaping handlers into the standard JSON envelope
func errorHandler(log *logrus.Entry) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code >= fiber.StatusInternalServerError {
			utils.LogError(log, "unhandled_error", err, map[string]interface{}{
				"method": c.Method(),
				"path":   c.Path(),
			})
			return utils.ErrorResponse(c, code, "Internal server error", nil)
		}
		return utils.ErrorResponse(c, code, err.Error(), nil)
	}
}
