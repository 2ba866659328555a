package models

import (
	"gorm.io/gorm"
)

// NegotiationStage is the deal's position in its lifecycle. Stages only move
// forward through Next, or sideways into StageCancelled from any non-terminal
// stage. StageClosed and StageCancelled are terminal.
type NegotiationStage string

const (
	StagePitch       NegotiationStage = "pitch"
	StageNegotiation NegotiationStage = "negotiation"
	StageDetails     NegotiationStage = "details"
	StageClosed      NegotiationStage = "closed"
	StageCancelled   NegotiationStage = "cancelled"
)

// Next returns the stage that follows s on the forward path. ok is false
// when s is terminal or unknown.
func (s NegotiationStage) Next() (next NegotiationStage, ok bool) {
	switch s {
	case StagePitch:
		return StageNegotiation, true
	case StageNegotiation:
		return StageDetails, true
	case StageDetails:
		return StageClosed, true
	default:
		return s, false
	}
}

// Terminal reports whether no further mutation of the negotiation is allowed.
func (s NegotiationStage) Terminal() bool {
	return s == StageClosed || s == StageCancelled
}

// PartyStatus is one side's position within the current round.
type PartyStatus string

const (
	// PartyAwaitingAction means the side has not yet responded to the
	// current round (a freshly scheduled meeting).
	PartyAwaitingAction PartyStatus = "awaiting_action"
	// PartyAgreed means the side has consented to move to the next stage.
	// Consumed the moment both sides hold it.
	PartyAgreed PartyStatus = "agreed"
	// PartyIdle means the side has nothing pending: it already acted this
	// round, or the negotiation reached a terminal stage.
	PartyIdle PartyStatus = "idle"
)

// Negotiation is one deal between a project's opportunity owner and a single
// capital party. The capital side is a discriminated (type, id) pair. At most
// one non-cancelled negotiation may exist per (project, capital party) pair;
// cancelled rows are kept for audit and notification history.
type Negotiation struct {
	gorm.Model

	ProjectID uint `gorm:"not null;index:idx_negotiation_pair" json:"project_id"`

	CapitalPartyType CapitalPartyType `gorm:"not null;index:idx_negotiation_pair" json:"capital_party_type"`
	CapitalPartyID   uint             `gorm:"not null;index:idx_negotiation_pair" json:"capital_party_id"`

	Stage NegotiationStage `gorm:"not null;default:'pitch';index" json:"stage"`

	OwnerStatus   PartyStatus `gorm:"not null;default:'awaiting_action'" json:"owner_status"`
	CapitalStatus PartyStatus `gorm:"not null;default:'awaiting_action'" json:"capital_status"`

	// Relations
	Project  Project   `json:"-"`
	Meetings []Meeting `gorm:"foreignKey:NegotiationID" json:"meetings,omitempty"`
}

// BothAgreed reports whether the dual-consent condition holds. The caller is
// expected to consume it immediately by advancing the stage in the same
// transaction.
func (n *Negotiation) BothAgreed() bool {
	return n.OwnerStatus == PartyAgreed && n.CapitalStatus == PartyAgreed
}
