package models

import "time"

// Transaction carries no user id of its own: its effective owner is the
// owner of the referenced account. Amount is in the smallest currency
// unit (e.g. cents). Deleting an account removes its transactions;
// deleting a category only clears the reference.
type Transaction struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time  `json:"-"`
	UpdatedAt  time.Time  `json:"-"`
	Payee      string     `gorm:"size:255;not null" json:"payee"`
	Amount     int64      `gorm:"not null" json:"amount"`
	Location   *string    `gorm:"size:255" json:"location,omitempty"`
	Date       time.Time  `gorm:"not null;index" json:"date"`
	AccountID  string     `gorm:"size:36;index;not null" json:"accountId"`
	Account    Account    `gorm:"foreignKey:AccountID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CategoryID *string    `gorm:"size:36;index" json:"categoryId"`
	Category   *Category  `gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"-"`
	ExternalID *string    `gorm:"size:255;index" json:"externalId,omitempty"`
}
