package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"venturelink/config"
	"venturelink/engine"
	"venturelink/middleware"
	"venturelink/routes"
	"venturelink/utils"
	"venturelink/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "VENTURELINK: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Error reporting
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// External collaborators
	roomClient := utils.NewRoomClient(
		config.AppConfig.RoomAPIURL,
		config.AppConfig.RoomAPIKey,
		log.New(os.Stdout, "ROOMS: ", log.LstdFlags),
	)
	mailer := utils.NewMailer(
		config.AppConfig.SMTPHost,
		config.AppConfig.SMTPPort,
		config.AppConfig.SMTPUsername,
		config.AppConfig.SMTPPassword,
		config.AppConfig.FromName,
		config.AppConfig.FromEmail,
	)

	// Negotiation engine and post-commit effect dispatcher
	eng := engine.New(config.DB, roomClient, config.AppConfig.AppURL)
	dispatcher := worker.NewDispatcher(config.DB, mailer, log.New(os.Stdout, "DISPATCH: ", log.LstdFlags))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, eng, dispatcher)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
