package models

import "time"

// RefreshToken stores a hashed representation of a refresh token for session rotation and revocation.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	TokenHash string    `gorm:"size:128;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
}
