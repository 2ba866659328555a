package models

import (
	"gorm.io/gorm"
)

// User represents an account in the system. Registration, credentials and
// profile editing live in the auth/profile services; this service only reads
// users to resolve roles and notification recipients.
type User struct {
	gorm.Model

	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `gorm:"not null" json:"name"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
}
