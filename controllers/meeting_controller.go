package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"venturelink/engine"
	"venturelink/models"
	"venturelink/utils"
	"venturelink/worker"
)

type MeetingController struct {
	Engine     *engine.Engine
	Dispatcher *worker.Dispatcher
	Logger     *log.Logger
}

func NewMeetingController(eng *engine.Engine, dispatcher *worker.Dispatcher, logger *log.Logger) *MeetingController {
	return &MeetingController{
		Engine:     eng,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// GetMeetings lists the actor's meetings, soonest first.
func (mc *MeetingController) GetMeetings(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	meetings, err := mc.Engine.ListMeetings(c.Context(), user.ID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(utils.SuccessResponse(meetings))
}

// CancelMeeting deletes a meeting and notifies the other side. The parent
// negotiation is untouched.
func (mc *MeetingController) CancelMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	meetingID := utils.ParseUint(c.Params("id"))

	effects, err := mc.Engine.CancelMeeting(c.Context(), user.ID, meetingID)
	if err != nil {
		return engineError(c, err)
	}
	mc.Dispatcher.Enqueue(effects...)

	return c.JSON(utils.SuccessResponse(fiber.Map{"cancelled": true}))
}
