package models

import (
	"time"

	"gorm.io/gorm"
)

// Meeting is a scheduled, time-boxed video call tied to a negotiation and its
// two sides. Immutable once created except for deletion (cancellation).
// EndDate is always exactly one hour after StartDate.
type Meeting struct {
	gorm.Model

	NegotiationID *uint `gorm:"index" json:"negotiation_id,omitempty"`

	// External video room, provisioned before the row is persisted.
	RoomName string `gorm:"not null" json:"room_name"`
	RoomURL  string `gorm:"not null" json:"room_url"`

	StartDate time.Time `gorm:"not null" json:"start_date"`
	EndDate   time.Time `gorm:"not null" json:"end_date"`

	// Opportunity-owner side participants.
	EntrepreneurID *uint `gorm:"index" json:"entrepreneur_id,omitempty"`
	IncubatorID    *uint `gorm:"index" json:"incubator_id,omitempty"`

	// Capital side participants. The schema supports group meetings even
	// though the engine only ever schedules 1:1.
	Investors []MeetingInvestor `gorm:"foreignKey:MeetingID" json:"investors,omitempty"`
	VCGroups  []MeetingVCGroup  `gorm:"foreignKey:MeetingID" json:"vc_groups,omitempty"`
}

// MeetingInvestor links an investor participant to a meeting.
type MeetingInvestor struct {
	gorm.Model
	MeetingID  uint `gorm:"not null;index" json:"meeting_id"`
	InvestorID uint `gorm:"not null;index" json:"investor_id"`
}

// MeetingVCGroup links a VC group participant to a meeting.
type MeetingVCGroup struct {
	gorm.Model
	MeetingID uint `gorm:"not null;index" json:"meeting_id"`
	VCGroupID uint `gorm:"not null;index" json:"vc_group_id"`
}
