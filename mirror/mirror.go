// Package mirror keeps a durable local copy of every invoice the device has
// touched, independent of cloud availability. It is a plain key-value mirror
// with sync-status bookkeeping; reconciliation policy belongs to the caller.
package mirror

import (
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"invoicegarden-backend/models"
)

// Storage key prefixes. The legacy prefix predates cloud sync; entries under
// it are absorbed lazily on read and never exposed to callers.
const (
	currentPrefix = "ig.invoice."
	legacyPrefix  = "ig.guest.invoice."
)

var ErrNotFound = errors.New("local record not found")

// Record is one locally stored invoice plus its cloud-sync bookkeeping.
type Record struct {
	Id          string                  `json:"id"`
	Invoice     *models.InvoiceDocument `json:"invoice"`
	CloudSynced bool                    `json:"cloudSynced"`
	CloudId     string                  `json:"cloudId,omitempty"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// SyncMeta carries optional sync bookkeeping for Save.
type SyncMeta struct {
	CloudSynced bool
	CloudId     string
}

type Mirror struct {
	db  *leveldb.DB
	log zerolog.Logger
	now func() time.Time
}

// Open opens (or creates) the mirror database at path.
func Open(path string, log zerolog.Logger) (*Mirror, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Mirror{db: db, log: log, now: time.Now}, nil
}

// OpenMemory opens a throwaway in-memory mirror.
func OpenMemory(log zerolog.Logger) (*Mirror, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &Mirror{db: db, log: log, now: time.Now}, nil
}

func (m *Mirror) Close() error {
	return m.db.Close()
}

// Save stores the document under the current prefix. It always overwrites;
// the mirror has no quota.
func (m *Mirror) Save(id string, doc *models.InvoiceDocument, meta *SyncMeta) error {
	rec := Record{
		Id:        id,
		Invoice:   doc,
		UpdatedAt: m.now(),
	}
	if meta != nil {
		rec.CloudSynced = meta.CloudSynced
		rec.CloudId = meta.CloudId
	}
	return m.put(rec)
}

// Get returns the record for id. A record found only under the legacy prefix
// is migrated in place: rewritten under the current prefix and removed from
// the legacy key, one record at a time, triggered by this read.
func (m *Mirror) Get(id string) (*Record, error) {
	value, err := m.db.Get([]byte(currentPrefix+id), nil)
	if err == nil {
		return decodeRecord(id, value)
	}
	if !errors.Is(err, leveldb.ErrNotFound) {
		return nil, err
	}

	legacyKey := []byte(legacyPrefix + id)
	value, err = m.db.Get(legacyKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rec, err := decodeRecord(id, value)
	if err != nil {
		return nil, err
	}
	if err := m.put(*rec); err != nil {
		return nil, err
	}
	if err := m.db.Delete(legacyKey, nil); err != nil {
		// The migrated copy exists; a stale legacy key is cleaned up on the
		// next listing.
		m.log.Warn().Err(err).Str("id", id).Msg("failed to remove legacy mirror key")
	}
	return rec, nil
}

// List returns every record, merging current- and legacy-prefixed entries.
// The current prefix wins on id collision; surviving legacy entries are
// migrated, duplicates just dropped. Sorted newest-first by the invoice's
// business date, not the storage write time.
func (m *Mirror) List() ([]Record, error) {
	seen := make(map[string]bool)
	var records []Record

	iter := m.db.NewIterator(util.BytesPrefix([]byte(currentPrefix)), nil)
	for iter.Next() {
		id := string(iter.Key()[len(currentPrefix):])
		rec, err := decodeRecord(id, iter.Value())
		if err != nil {
			m.log.Warn().Err(err).Str("id", id).Msg("skipping undecodable mirror record")
			continue
		}
		seen[id] = true
		records = append(records, *rec)
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}

	iter = m.db.NewIterator(util.BytesPrefix([]byte(legacyPrefix)), nil)
	type migration struct {
		rec       *Record
		legacyKey []byte
	}
	var migrations []migration
	var duplicates [][]byte
	for iter.Next() {
		id := string(iter.Key()[len(legacyPrefix):])
		key := append([]byte(nil), iter.Key()...)
		if seen[id] {
			duplicates = append(duplicates, key)
			continue
		}
		rec, err := decodeRecord(id, iter.Value())
		if err != nil {
			m.log.Warn().Err(err).Str("id", id).Msg("skipping undecodable legacy mirror record")
			continue
		}
		migrations = append(migrations, migration{rec: rec, legacyKey: key})
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, err
	}

	for _, key := range duplicates {
		if err := m.db.Delete(key, nil); err != nil {
			m.log.Warn().Err(err).Msg("failed to drop shadowed legacy mirror key")
		}
	}
	for _, mig := range migrations {
		if err := m.put(*mig.rec); err != nil {
			return nil, err
		}
		if err := m.db.Delete(mig.legacyKey, nil); err != nil {
			m.log.Warn().Err(err).Msg("failed to remove legacy mirror key")
		}
		records = append(records, *mig.rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return businessDate(records[i].Invoice).After(businessDate(records[j].Invoice))
	})
	return records, nil
}

// UpdateSyncStatus patches the sync bookkeeping. Missing records are a no-op;
// repeating the same patch changes nothing.
func (m *Mirror) UpdateSyncStatus(id string, cloudSynced bool, cloudId string) error {
	rec, err := m.Get(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	rec.CloudSynced = cloudSynced
	rec.CloudId = cloudId
	return m.put(*rec)
}

// Delete removes the record under both prefixes.
func (m *Mirror) Delete(id string) error {
	if err := m.db.Delete([]byte(currentPrefix+id), nil); err != nil {
		return err
	}
	return m.db.Delete([]byte(legacyPrefix+id), nil)
}

// Clear drops every mirror record.
func (m *Mirror) Clear() error {
	for _, prefix := range []string{currentPrefix, legacyPrefix} {
		iter := m.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for iter.Next() {
			key := append([]byte(nil), iter.Key()...)
			if err := m.db.Delete(key, nil); err != nil {
				iter.Release()
				return err
			}
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of distinct invoices across both prefixes.
func (m *Mirror) Count() (int, error) {
	ids := make(map[string]bool)
	for _, prefix := range []string{currentPrefix, legacyPrefix} {
		iter := m.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
		for iter.Next() {
			ids[string(iter.Key()[len(prefix):])] = true
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (m *Mirror) put(rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.db.Put([]byte(currentPrefix+rec.Id), value, nil)
}

// decodeRecord handles both the wrapped Record format and the oldest layout
// where the value was a bare invoice document.
func decodeRecord(id string, value []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(value, &rec); err == nil && rec.Invoice != nil {
		rec.Id = id
		return &rec, nil
	}

	var doc models.InvoiceDocument
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, err
	}
	return &Record{Id: id, Invoice: &doc}, nil
}

func businessDate(doc *models.InvoiceDocument) time.Time {
	if doc == nil || doc.Date == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, doc.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}
