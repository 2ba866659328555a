package models

import (
	"gorm.io/gorm"
)

// OwnerType discriminates the opportunity-owner side of a deal.
type OwnerType string

const (
	OwnerEntrepreneur OwnerType = "entrepreneur"
	OwnerIncubator    OwnerType = "incubator"
)

// CapitalPartyType discriminates the capital side of a deal.
type CapitalPartyType string

const (
	CapitalInvestor CapitalPartyType = "investor"
	CapitalVCGroup  CapitalPartyType = "vc_group"
)

// Entrepreneur is an opportunity owner pitching their own projects.
type Entrepreneur struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	CompanyName string `json:"company_name"`

	// Relations
	User User `json:"-"`
}

// Incubator is an opportunity owner acting on behalf of hosted projects.
type Incubator struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	Name string `json:"name"`

	// Relations
	User User `json:"-"`
}

// Investor is a capital party investing individually.
type Investor struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	FirmName string `json:"firm_name"`

	// Relations
	User User `json:"-"`
}

// VCGroup is a capital party investing as a fund. The group acts through
// its owning user for consent and notifications.
type VCGroup struct {
	gorm.Model
	UserID uint `gorm:"not null;uniqueIndex" json:"user_id"`

	Name string `json:"name"`

	// Relations
	User User `json:"-"`
}

// Project is the opportunity being pitched. Ownership is a discriminated
// (type, id) pair: exactly one of Entrepreneur or Incubator owns it, never
// both and never neither.
type Project struct {
	gorm.Model

	Name    string `gorm:"not null" json:"name"`
	Summary string `json:"summary"`

	OwnerType OwnerType `gorm:"not null;index" json:"owner_type"`
	OwnerID   uint      `gorm:"not null;index" json:"owner_id"`
}
