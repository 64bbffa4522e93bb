package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SharedLink grants anonymous read access to one invoice via its token.
// Revoked and expired links are kept for the owner's audit view; they are
// only removed when the parent invoice is deleted.
type SharedLink struct {
	Id           string     `json:"id" gorm:"primaryKey"`
	InvoiceId    string     `json:"-" gorm:"index;not null"`
	Token        string     `json:"token" gorm:"uniqueIndex;not null"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Revoked      bool       `json:"revoked" gorm:"not null"`
	ViewCount    int        `json:"view_count" gorm:"not null"`
	LastViewedAt *time.Time `json:"last_viewed_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Expired reports whether the link is past its expiry at the given instant.
// Expiry is computed at read time, not stored as a state transition.
func (l *SharedLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LinkView is an append-only audit record of one anonymous view.
type LinkView struct {
	Id        string    `json:"id" gorm:"primaryKey"`
	LinkId    string    `json:"-" gorm:"index;not null"`
	ViewedAt  time.Time `json:"viewed_at"`
	Ip        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
}

func (v *LinkView) BeforeCreate(tx *gorm.DB) (err error) {
	if v.Id == "" {
		v.Id = uuid.NewString()
	}
	return
}
