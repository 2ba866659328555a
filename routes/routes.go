package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "venturelink/controllers"
	"venturelink/engine"
	"venturelink/middleware"
	"venturelink/worker"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, eng *engine.Engine, dispatcher *worker.Dispatcher) {
	// Setup health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	negotiationController := controller.NewNegotiationController(eng, dispatcher,
		log.New(os.Stdout, "NEGOTIATION: ", log.LstdFlags))
	meetingController := controller.NewMeetingController(eng, dispatcher,
		log.New(os.Stdout, "MEETING: ", log.LstdFlags))
	notificationController := controller.NewNotificationController(db, dispatcher,
		log.New(os.Stdout, "NOTIFICATION: ", log.LstdFlags))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Negotiation routes; scheduling endpoints provision external rooms and
	// sit behind the rate limiter.
	negotiation := api.Group("/negotiations")
	negotiation.Post("/", middleware.ScheduleRateLimiter(), negotiationController.OpenPitchNegotiation)
	negotiation.Get("/", negotiationController.GetNegotiations)
	negotiation.Get("/lookup", negotiationController.GetNegotiationForPartyAndProject)
	negotiation.Get("/:id", negotiationController.GetNegotiation)
	negotiation.Post("/:id/meetings", middleware.ScheduleRateLimiter(), negotiationController.ScheduleFollowUpMeeting)
	negotiation.Post("/:id/advance", negotiationController.AdvanceNegotiation)
	negotiation.Post("/:id/cancel", negotiationController.CancelNegotiation)

	// Meeting routes
	meeting := api.Group("/meetings")
	meeting.Get("/", meetingController.GetMeetings)
	meeting.Delete("/:id", meetingController.CancelMeeting)

	// Notification routes
	notification := api.Group("/notifications")
	notification.Get("/", notificationController.GetNotifications)
	notification.Put("/:id/read", notificationController.MarkNotificationRead)

	// WebSocket route for the live notification feed
	api.Get("/notifications/stream", websocket.New(func(conn *websocket.Conn) {
		notificationController.HandleNotificationStream(conn)
	}))

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
