package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"invoicegarden-backend/models"
)

const (
	shareLinkDefaultWindow = 30 * 24 * time.Hour
	shareLinkMaxWindow     = 90 * 24 * time.Hour
)

// ShareLinkManager issues and resolves tokenized public links bound to one
// invoice. Every mutating operation verifies ownership through the parent
// invoice; failed checks look identical to absence.
type ShareLinkManager struct {
	db  *gorm.DB
	log zerolog.Logger
	now func() time.Time
}

func NewShareLinkManager(db *gorm.DB, log zerolog.Logger) *ShareLinkManager {
	return &ShareLinkManager{db: db, log: log, now: time.Now}
}

// linkExpiry picks min(dueDate, now+30d), capped at now+90d. An absent, past
// or unparseable due date falls back to the 30-day default.
func linkExpiry(now time.Time, dueDate string) time.Time {
	def := now.Add(shareLinkDefaultWindow)
	max := now.Add(shareLinkMaxWindow)

	expiry := def
	if dueDate != "" {
		if due, ok := parseDueDate(dueDate); ok && due.After(now) && due.Before(def) {
			expiry = due
		}
	}
	if expiry.After(max) {
		expiry = max
	}
	return expiry
}

func parseDueDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Create issues a new link for an invoice the owner holds. Token generation
// retries on unique collision up to the fixed bound.
func (m *ShareLinkManager) Create(ctx context.Context, invoiceId, ownerId, dueDate string) (*models.SharedLink, error) {
	if err := m.verifyOwnership(ctx, invoiceId, ownerId); err != nil {
		return nil, err
	}

	now := m.now()
	link := models.SharedLink{
		Id:        uuid.NewString(),
		InvoiceId: invoiceId,
		ExpiresAt: linkExpiry(now, dueDate),
		CreatedAt: now,
	}

	token, err := insertWithFreshToken(shareTokenAttempts, func(token string) error {
		link.Token = token
		return m.db.WithContext(ctx).Create(&link).Error
	})
	if err != nil {
		return nil, err
	}
	link.Token = token
	return &link, nil
}

// List returns all links of an invoice, newest first. A foreign or unknown
// invoice yields an empty list, not an error.
func (m *ShareLinkManager) List(ctx context.Context, invoiceId, ownerId string) ([]models.SharedLink, error) {
	if err := m.verifyOwnership(ctx, invoiceId, ownerId); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []models.SharedLink{}, nil
		}
		return nil, err
	}

	var links []models.SharedLink
	err := m.db.WithContext(ctx).Where("invoice_id = ?", invoiceId).
		Order("created_at desc").Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Revoke marks the link revoked after verifying, via the parent invoice,
// that the caller owns it. Revocation is terminal.
func (m *ShareLinkManager) Revoke(ctx context.Context, linkId, ownerId string) error {
	var link models.SharedLink
	err := m.db.WithContext(ctx).Select("id", "invoice_id").Where("id = ?", linkId).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := m.verifyOwnership(ctx, link.InvoiceId, ownerId); err != nil {
		return err
	}
	return m.db.WithContext(ctx).Model(&models.SharedLink{}).
		Where("id = ?", linkId).Updates(map[string]any{"revoked": true}).Error
}

// ResolveByToken is the only unauthenticated read. Unknown, revoked and
// expired tokens are deliberately indistinguishable.
func (m *ShareLinkManager) ResolveByToken(ctx context.Context, token string) (*models.InvoiceDocument, string, error) {
	var link models.SharedLink
	err := m.db.WithContext(ctx).Where("token = ?", token).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	if link.Revoked || link.Expired(m.now()) {
		return nil, "", ErrNotFound
	}

	var rec models.Invoice
	err = m.db.WithContext(ctx).Where("id = ?", link.InvoiceId).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	doc, err := decodeDocument(rec.Data)
	if err != nil {
		return nil, "", err
	}
	return doc, link.Id, nil
}

// RecordView appends an audit row and bumps the link counters atomically.
// Callers invoke it without blocking the viewer's response; failures are
// logged, never surfaced.
func (m *ShareLinkManager) RecordView(ctx context.Context, linkId, ip, userAgent string) error {
	now := m.now()
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view := models.LinkView{LinkId: linkId, ViewedAt: now, Ip: ip, UserAgent: userAgent}
		if err := tx.Create(&view).Error; err != nil {
			return err
		}
		return tx.Model(&models.SharedLink{}).Where("id = ?", linkId).
			Updates(map[string]any{
				"view_count":     gorm.Expr("view_count + ?", 1),
				"last_viewed_at": now,
			}).Error
	})
	if err != nil {
		m.log.Warn().Err(err).Str("link", linkId).Msg("failed to record link view")
	}
	return err
}

func (m *ShareLinkManager) verifyOwnership(ctx context.Context, invoiceId, ownerId string) error {
	var rec models.Invoice
	err := m.db.WithContext(ctx).Select("id").
		Where("id = ? AND owner_id = ?", invoiceId, ownerId).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
