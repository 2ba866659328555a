package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"venturelink/models"
	"venturelink/utils"
	"venturelink/worker"
)

type NotificationController struct {
	DB         *gorm.DB
	Dispatcher *worker.Dispatcher
	Logger     *log.Logger
}

func NewNotificationController(db *gorm.DB, dispatcher *worker.Dispatcher, logger *log.Logger) *NotificationController {
	return &NotificationController{
		DB:         db,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// GetNotifications returns the actor's inbox, newest first.
func (nc *NotificationController) GetNotifications(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	query := nc.DB.Where("user_id = ?", user.ID)
	if c.Query("unread") == "true" {
		query = query.Where("read = ?", false)
	}

	var notifications []models.Notification
	if err := query.Order("id DESC").Limit(100).Find(&notifications).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notifications", err)
	}

	var unread int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", user.ID, false).
		Count(&unread).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count notifications", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"notifications": notifications,
		"unread":        unread,
	}))
}

// MarkNotificationRead flips one of the actor's notifications to read.
func (nc *NotificationController) MarkNotificationRead(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	notificationID := utils.ParseUint(c.Params("id"))

	var notification models.Notification
	err := nc.DB.Where("id = ? AND user_id = ?", notificationID, user.ID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Notification not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch notification", err)
	}

	if !notification.Read {
		notification.Read = true
		if err := nc.DB.Save(&notification).Error; err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update notification", err)
		}
	}

	return c.JSON(utils.SuccessResponse(notification))
}

// HandleNotificationStream pushes newly persisted notifications to the
// connected client until it goes away.
func (nc *NotificationController) HandleNotificationStream(conn *websocket.Conn) {
	user, ok := conn.Locals("user").(*models.User)
	if !ok {
		_ = conn.Close()
		return
	}

	feed, cancel := nc.Dispatcher.Subscribe(user.ID)
	defer cancel()

	// Drain reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case notification := <-feed:
			if err := conn.WriteJSON(notification); err != nil {
				nc.Logger.Printf("notification stream for user %d closed: %v", user.ID, err)
				return
			}
		case <-done:
			return
		}
	}
}
