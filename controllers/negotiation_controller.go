package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"venturelink/engine"
	"venturelink/models"
	"venturelink/utils"
	"venturelink/worker"
)

type NegotiationController struct {
	Engine     *engine.Engine
	Dispatcher *worker.Dispatcher
	Logger     *log.Logger
}

func NewNegotiationController(eng *engine.Engine, dispatcher *worker.Dispatcher, logger *log.Logger) *NegotiationController {
	return &NegotiationController{
		Engine:     eng,
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// OpenPitchNegotiation opens a negotiation at the pitch stage and schedules
// its founding meeting. Only capital parties (investors, VC groups) may call
// it.
func (nc *NegotiationController) OpenPitchNegotiation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ProjectID uint      `json:"project_id" validate:"required"`
		Date      time.Time `json:"date" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	negotiation, meeting, effects, err := nc.Engine.OpenPitch(c.Context(), user.ID, input.ProjectID, input.Date)
	if err != nil {
		if negotiation != nil {
			// State committed but effect construction failed; the deal
			// stands, the parties just miss one announcement.
			nc.Logger.Printf("open pitch: effects dropped for negotiation %d: %v", negotiation.ID, err)
		} else {
			return engineError(c, err)
		}
	}
	nc.Dispatcher.Enqueue(effects...)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"negotiation": negotiation,
		"meeting":     meeting,
	}))
}

// ScheduleFollowUpMeeting schedules another meeting within an existing
// negotiation and re-opens the round for both sides.
func (nc *NegotiationController) ScheduleFollowUpMeeting(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	negotiationID := utils.ParseUint(c.Params("id"))

	var input struct {
		Date time.Time `json:"date" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	meeting, effects, err := nc.Engine.ScheduleFollowUp(c.Context(), user.ID, negotiationID, input.Date)
	if err != nil {
		if meeting != nil {
			nc.Logger.Printf("follow-up: effects dropped for meeting %d: %v", meeting.ID, err)
		} else {
			return engineError(c, err)
		}
	}
	nc.Dispatcher.Enqueue(effects...)

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(meeting))
}

// AdvanceNegotiation records the acting side's consent to move to the next
// stage; the second consent triggers the transition.
func (nc *NegotiationController) AdvanceNegotiation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	negotiationID := utils.ParseUint(c.Params("id"))

	negotiation, effects, err := nc.Engine.Advance(c.Context(), user.ID, negotiationID)
	if err != nil {
		if negotiation != nil {
			nc.Logger.Printf("advance: effects dropped for negotiation %d: %v", negotiation.ID, err)
		} else {
			return engineError(c, err)
		}
	}
	nc.Dispatcher.Enqueue(effects...)

	return c.JSON(utils.SuccessResponse(negotiation))
}

// CancelNegotiation moves the negotiation into its cancelled terminal stage.
func (nc *NegotiationController) CancelNegotiation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	negotiationID := utils.ParseUint(c.Params("id"))

	negotiation, effects, err := nc.Engine.Cancel(c.Context(), user.ID, negotiationID)
	if err != nil {
		if negotiation != nil {
			nc.Logger.Printf("cancel: effects dropped for negotiation %d: %v", negotiation.ID, err)
		} else {
			return engineError(c, err)
		}
	}
	nc.Dispatcher.Enqueue(effects...)

	return c.JSON(utils.SuccessResponse(negotiation))
}

// GetNegotiationForPartyAndProject looks the negotiation up by the acting
// party and a project id instead of a negotiation id.
func (nc *NegotiationController) GetNegotiationForPartyAndProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	projectID := utils.ParseUint(c.Query("project_id"))
	if projectID == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "project_id query parameter is required", nil)
	}

	negotiation, err := nc.Engine.GetForPartyAndProject(c.Context(), user.ID, projectID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(utils.SuccessResponse(negotiation))
}

// GetNegotiation returns one negotiation the actor participates in.
func (nc *NegotiationController) GetNegotiation(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	negotiationID := utils.ParseUint(c.Params("id"))

	negotiation, err := nc.Engine.GetNegotiation(c.Context(), user.ID, negotiationID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(utils.SuccessResponse(negotiation))
}

// GetNegotiations lists the actor's negotiations on both sides.
func (nc *NegotiationController) GetNegotiations(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	negotiations, err := nc.Engine.ListNegotiations(c.Context(), user.ID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(utils.SuccessResponse(negotiations))
}
