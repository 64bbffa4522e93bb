package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserSettings holds per-user editor defaults. These are explicit per-user
// rows, not process-wide singletons, so tests and requests stay independent.
type UserSettings struct {
	Id                string    `json:"-" gorm:"primaryKey"`
	UserId            string    `json:"-" gorm:"uniqueIndex;not null"`
	InvoicePrefix     string    `json:"invoice_prefix" gorm:"size:16;not null;default:INV-"`
	PreferredCurrency string    `json:"preferred_currency" gorm:"type:VARCHAR(8);not null;default:USD"`
	CreatedAt         time.Time `json:"-"`
	UpdatedAt         time.Time `json:"-"`
}

func (s *UserSettings) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Id == "" {
		s.Id = uuid.NewString()
	}
	return
}
