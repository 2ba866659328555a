package models

import (
	"gorm.io/gorm"
)

// EventType names the logical event a notification announces.
type EventType string

const (
	EventMeetingCreated       EventType = "meeting_created"
	EventMeetingCancelled     EventType = "meeting_cancelled"
	EventNegotiationAdvanced  EventType = "negotiation_advanced"
	EventNegotiationCancelled EventType = "negotiation_cancelled"
)

// Notification is one row per recipient per event, append-only. Delivery is
// at-least-once best effort and never blocks the state change that produced
// the event.
type Notification struct {
	gorm.Model

	UserID    uint      `gorm:"not null;index" json:"user_id"`
	EventType EventType `gorm:"not null" json:"event_type"`
	Message   string    `gorm:"not null" json:"message"`

	NegotiationID *uint `gorm:"index" json:"negotiation_id,omitempty"`
	MeetingID     *uint `gorm:"index" json:"meeting_id,omitempty"`

	// EventKey groups the rows fanned out from one logical event.
	EventKey string `gorm:"index" json:"event_key"`

	Read bool `gorm:"default:false" json:"read"`
}
