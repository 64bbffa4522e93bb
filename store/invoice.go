package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"invoicegarden-backend/calc"
	"invoicegarden-backend/models"
)

// DefaultQuota is the per-owner ceiling on cloud invoices.
const DefaultQuota = 12

// ArtifactStore removes rendered artifacts from object storage. Calls are
// best-effort: failures are logged by the store and never propagated.
type ArtifactStore interface {
	Delete(ctx context.Context, keys ...string) error
}

// SavedInvoice pairs an invoice id with its decoded document for listings.
type SavedInvoice struct {
	Id      string                  `json:"id"`
	Invoice *models.InvoiceDocument `json:"invoice"`
}

// InvoiceStore persists owner-scoped invoices and enforces the cloud quota
// with oldest-first eviction.
type InvoiceStore struct {
	db        *gorm.DB
	artifacts ArtifactStore // may be nil when object storage is not configured
	quota     int
	log       zerolog.Logger
}

func NewInvoiceStore(db *gorm.DB, artifacts ArtifactStore, quota int, log zerolog.Logger) *InvoiceStore {
	if quota <= 0 {
		quota = DefaultQuota
	}
	return &InvoiceStore{db: db, artifacts: artifacts, quota: quota, log: log}
}

func (s *InvoiceStore) Quota() int { return s.quota }

// Get returns the decoded document. With a non-empty ownerId the lookup is
// owner-scoped, so cross-tenant reads are indistinguishable from absence.
func (s *InvoiceStore) Get(ctx context.Context, id, ownerId string) (*models.InvoiceDocument, error) {
	q := s.db.WithContext(ctx).Where("id = ?", id)
	if ownerId != "" {
		q = q.Where("owner_id = ?", ownerId)
	}
	var rec models.Invoice
	if err := q.First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeDocument(rec.Data)
}

// Record returns the raw invoice row, owner-scoped. Used where the caller
// needs bookkeeping columns such as the artifact key.
func (s *InvoiceStore) Record(ctx context.Context, id, ownerId string) (*models.Invoice, error) {
	var rec models.Invoice
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerId).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Save is a full-document replace. An existing record belonging to another
// owner fails as not-found rather than being overwritten. A genuinely new
// record first frees a quota slot by evicting the owner's oldest invoice
// (by updated_at) when the owner is at capacity.
func (s *InvoiceStore) Save(ctx context.Context, id string, doc *models.InvoiceDocument, ownerId string) error {
	raw, err := encodeDocument(id, doc)
	if err != nil {
		return err
	}

	var existing models.Invoice
	err = s.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", id).First(&existing).Error
	switch {
	case err == nil:
		if existing.OwnerId != ownerId {
			return ErrNotFound
		}
		return s.db.WithContext(ctx).Model(&models.Invoice{}).
			Where("id = ? AND owner_id = ?", id, ownerId).
			Updates(map[string]any{"data": raw}).Error
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if err := s.evictIfAtCapacity(ctx, ownerId); err != nil {
		// A failed eviction may leave the owner one record over quota until
		// the next save; the insert still proceeds.
		s.log.Warn().Err(err).Str("owner", ownerId).Msg("quota eviction failed, saving anyway")
	}

	rec := models.Invoice{Id: id, OwnerId: ownerId, Data: raw}
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(&rec).Error
}

func (s *InvoiceStore) evictIfAtCapacity(ctx context.Context, ownerId string) error {
	n, err := s.Count(ctx, ownerId)
	if err != nil {
		return err
	}
	if n < int64(s.quota) {
		return nil
	}

	var oldest models.Invoice
	err = s.db.WithContext(ctx).Select("id").Where("owner_id = ?", ownerId).
		Order("updated_at asc").First(&oldest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Disappeared concurrently; the slot is already free.
			return nil
		}
		return err
	}
	return s.Delete(ctx, oldest.Id, ownerId)
}

// Delete removes the invoice row, its shared links and their view records as
// one atomic batch. The rendered artifact is removed from object storage
// best-effort, only after the transaction committed; a rolled-back row keeps
// a live artifact key.
func (s *InvoiceStore) Delete(ctx context.Context, id, ownerId string) error {
	rec, err := s.Record(ctx, id, ownerId)
	if err != nil {
		return err
	}

	var linkIds []string
	err = s.db.WithContext(ctx).Model(&models.SharedLink{}).
		Where("invoice_id = ?", id).Pluck("id", &linkIds).Error
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(linkIds) > 0 {
			if err := tx.Where("link_id IN ?", linkIds).Delete(&models.LinkView{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.SharedLink{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND owner_id = ?", id, ownerId).Delete(&models.Invoice{}).Error
	})
	if err != nil {
		return err
	}

	s.deleteArtifacts(ctx, rec.ArtifactKey)
	return nil
}

// ClearAll applies the Delete cascade to every invoice the owner has.
// Artifact deletions are batched, best-effort and run after the commit.
func (s *InvoiceStore) ClearAll(ctx context.Context, ownerId string) error {
	var recs []models.Invoice
	err := s.db.WithContext(ctx).Select("id", "artifact_key").
		Where("owner_id = ?", ownerId).Find(&recs).Error
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	invoiceIds := make([]string, 0, len(recs))
	keys := make([]string, 0, len(recs))
	for _, r := range recs {
		invoiceIds = append(invoiceIds, r.Id)
		if r.ArtifactKey != "" {
			keys = append(keys, r.ArtifactKey)
		}
	}

	var linkIds []string
	err = s.db.WithContext(ctx).Model(&models.SharedLink{}).
		Where("invoice_id IN ?", invoiceIds).Pluck("id", &linkIds).Error
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(linkIds) > 0 {
			if err := tx.Where("link_id IN ?", linkIds).Delete(&models.LinkView{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("invoice_id IN ?", invoiceIds).Delete(&models.SharedLink{}).Error; err != nil {
			return err
		}
		return tx.Where("owner_id = ?", ownerId).Delete(&models.Invoice{}).Error
	})
	if err != nil {
		return err
	}

	s.deleteArtifacts(ctx, keys...)
	return nil
}

// ListAll returns the owner's invoices, newest updated_at first.
func (s *InvoiceStore) ListAll(ctx context.Context, ownerId string) ([]SavedInvoice, error) {
	var recs []models.Invoice
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerId).
		Order("updated_at desc").Find(&recs).Error
	if err != nil {
		return nil, err
	}

	out := make([]SavedInvoice, 0, len(recs))
	for _, r := range recs {
		doc, err := decodeDocument(r.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("invoice", r.Id).Msg("skipping undecodable invoice document")
			continue
		}
		out = append(out, SavedInvoice{Id: r.Id, Invoice: doc})
	}
	return out, nil
}

func (s *InvoiceStore) Count(ctx context.Context, ownerId string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("owner_id = ?", ownerId).Count(&n).Error
	return n, err
}

// SetArtifactKey records the object-storage key of the rendered PDF.
func (s *InvoiceStore) SetArtifactKey(ctx context.Context, id, ownerId, key string) error {
	res := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND owner_id = ?", id, ownerId).
		Updates(map[string]any{"artifact_key": key})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *InvoiceStore) deleteArtifacts(ctx context.Context, keys ...string) {
	nonEmpty := keys[:0]
	for _, k := range keys {
		if k != "" {
			nonEmpty = append(nonEmpty, k)
		}
	}
	if len(nonEmpty) == 0 || s.artifacts == nil {
		return
	}
	if err := s.artifacts.Delete(ctx, nonEmpty...); err != nil {
		s.log.Warn().Err(err).Strs("keys", nonEmpty).Msg("artifact delete failed")
	}
}

// encodeDocument validates the document, pins the id and schema version,
// refreshes the cached totals and serializes the result.
func encodeDocument(id string, doc *models.InvoiceDocument) (datatypes.JSON, error) {
	if doc != nil && doc.Id == "" {
		doc.Id = id
	}
	if err := models.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.Id != id {
		return nil, models.ErrInvalidInvoiceId
	}
	doc.SchemaVersion = models.DocumentSchemaVersion
	calc.Recalculate(doc)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeDocument(raw datatypes.JSON) (*models.InvoiceDocument, error) {
	var doc models.InvoiceDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	// Cached totals may predate a calculator change; recompute on read.
	calc.Recalculate(&doc)
	return &doc, nil
}
