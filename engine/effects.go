package engine

import (
	"github.com/google/uuid"

	"venturelink/models"
)

// Effect is one outbound side effect produced by a committed state change:
// a notification fan-out and, optionally, an email. Operations return their
// effects instead of dispatching them so that delivery happens strictly
// after the transactional commit and its failure can never roll the state
// change back.
type Effect struct {
	Event    models.EventType
	EventKey string
	Message  string

	// RecipientUserIDs gets one Notification row each.
	RecipientUserIDs []uint

	NegotiationID *uint
	MeetingID     *uint

	Email *EmailPayload
}

// EmailPayload is a best-effort templated mail to one or both sides.
type EmailPayload struct {
	Subject    string
	Body       string
	Recipients []EmailRecipient
	CTAURL     string
	CTALabel   string
}

// EmailRecipient pairs an address with the display name used in the
// greeting line.
type EmailRecipient struct {
	Name    string
	Address string
}

func newEffect(event models.EventType, message string, recipients ...uint) Effect {
	return Effect{
		Event:            event,
		EventKey:         uuid.NewString(),
		Message:          message,
		RecipientUserIDs: recipients,
	}
}
