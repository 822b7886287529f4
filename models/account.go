package models

import "time"

// Account is a user's money account (checking, credit card, cash, ...).
// IDs are opaque UUID strings; ExternalID links a row imported from a
// bank statement back to its source.
type Account struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	ExternalID *string   `gorm:"size:255;index" json:"externalId,omitempty"`
}
