package models

import "time"

// Category labels transactions. Same ownership shape as Account.
type Category struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time `json:"-"`
	UpdatedAt  time.Time `json:"-"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	ExternalID *string   `gorm:"size:255;index" json:"externalId,omitempty"`
}
