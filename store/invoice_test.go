package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicegarden-backend/models"
)

func testDoc(id string) *models.InvoiceDocument {
	return &models.InvoiceDocument{
		Id:            id,
		InvoiceNumber: "INV-001",
		Items:         []models.DocumentItem{{Name: "work", Quantity: 1, Price: 100, Amount: 100}},
	}
}

func rawDoc(t *testing.T, id string) []byte {
	t.Helper()
	raw, err := json.Marshal(testDoc(id))
	require.NoError(t, err)
	return raw
}

const invoiceColsPattern = `SELECT \* FROM "invoices" WHERE id = .+ AND owner_id = `

func invoiceRow(id, owner, artifactKey string, raw []byte) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "owner_id", "data", "artifact_key", "created_at", "updated_at"}).
		AddRow(id, owner, raw, artifactKey, now, now)
}

func TestGetScopesByOwner(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	// Row exists for another owner; the scoped query simply finds nothing.
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.Get(context.Background(), "invoice-0001", "owner-b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsForeignOwner(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	mock.ExpectQuery(`SELECT "id","owner_id" FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow("invoice-0001", "owner-a"))

	err := s.Save(context.Background(), "invoice-0001", testDoc("invoice-0001"), "owner-b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveUpdatesExistingInPlace(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	mock.ExpectQuery(`SELECT "id","owner_id" FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}).AddRow("invoice-0001", "owner-a"))
	mock.ExpectExec(`UPDATE "invoices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Save(context.Background(), "invoice-0001", testDoc("invoice-0001"), "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNewUnderQuotaInsertsWithoutEviction(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 2, testLogger())

	mock.ExpectQuery(`SELECT "id","owner_id" FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "invoices"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Save(context.Background(), "invoice-0002", testDoc("invoice-0002"), "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAtCapacityEvictsOldestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	artifacts := &fakeArtifacts{}
	s := NewInvoiceStore(db, artifacts, 2, testLogger())

	// No record with the new id.
	mock.ExpectQuery(`SELECT "id","owner_id" FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}))
	// Owner is at capacity.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	// Oldest by updated_at.
	mock.ExpectQuery(`SELECT "id" FROM "invoices" WHERE owner_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("invoice-0001"))
	// Eviction runs the full delete cascade.
	mock.ExpectQuery(invoiceColsPattern).
		WillReturnRows(invoiceRow("invoice-0001", "owner-a", "pdfs/invoice-0001.pdf", rawDoc(t, "invoice-0001")))
	mock.ExpectQuery(`SELECT "id" FROM "shared_links" WHERE invoice_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("link-1"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "link_views"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "shared_links"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "invoices"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	// Then the insert proceeds.
	mock.ExpectExec(`INSERT INTO "invoices"`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Save(context.Background(), "invoice-0003", testDoc("invoice-0003"), "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, artifacts.deleted, 1)
	assert.Equal(t, []string{"pdfs/invoice-0001.pdf"}, artifacts.deleted[0])
}

func TestSaveProceedsWhenEvictionFails(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 1, testLogger())

	mock.ExpectQuery(`SELECT "id","owner_id" FROM "invoices" WHERE id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id"}))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invoices"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT "id" FROM "invoices" WHERE owner_id = `).
		WillReturnError(errors.New("connection reset"))
	// Eviction failure is swallowed; the insert still runs.
	mock.ExpectExec(`INSERT INTO "invoices"`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Save(context.Background(), "invoice-0002", testDoc("invoice-0002"), "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsMalformedId(t *testing.T) {
	db, _ := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	err := s.Save(context.Background(), "x", testDoc("x"), "owner-a")
	assert.ErrorIs(t, err, models.ErrInvalidInvoiceId)
}

func TestDeleteCascadeSurvivesArtifactFailure(t *testing.T) {
	db, mock := newMockDB(t)
	artifacts := &fakeArtifacts{err: errors.New("bucket unavailable")}
	s := NewInvoiceStore(db, artifacts, 12, testLogger())

	mock.ExpectQuery(invoiceColsPattern).
		WillReturnRows(invoiceRow("invoice-0001", "owner-a", "pdfs/invoice-0001.pdf", rawDoc(t, "invoice-0001")))
	mock.ExpectQuery(`SELECT "id" FROM "shared_links" WHERE invoice_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "shared_links"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "invoices"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Delete(context.Background(), "invoice-0001", "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, artifacts.deleted, 1)
}

func TestDeleteCrossTenantLooksLikeAbsence(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	mock.ExpectQuery(invoiceColsPattern).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := s.Delete(context.Background(), "invoice-0001", "owner-b")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRollsBackOnCascadeFailure(t *testing.T) {
	db, mock := newMockDB(t)
	artifacts := &fakeArtifacts{}
	s := NewInvoiceStore(db, artifacts, 12, testLogger())

	mock.ExpectQuery(invoiceColsPattern).
		WillReturnRows(invoiceRow("invoice-0001", "owner-a", "pdfs/invoice-0001.pdf", rawDoc(t, "invoice-0001")))
	mock.ExpectQuery(`SELECT "id" FROM "shared_links" WHERE invoice_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("link-1"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "link_views"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "shared_links"`).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.Delete(context.Background(), "invoice-0001", "owner-a")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The surviving row still points at its artifact; nothing may be removed
	// from object storage on rollback.
	assert.Empty(t, artifacts.deleted)
}

func TestClearAllBatchesArtifactsAndCascades(t *testing.T) {
	db, mock := newMockDB(t)
	artifacts := &fakeArtifacts{}
	s := NewInvoiceStore(db, artifacts, 12, testLogger())

	mock.ExpectQuery(`SELECT "id","artifact_key" FROM "invoices" WHERE owner_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "artifact_key"}).
			AddRow("invoice-0001", "pdfs/a.pdf").
			AddRow("invoice-0002", "").
			AddRow("invoice-0003", "pdfs/c.pdf"))
	mock.ExpectQuery(`SELECT "id" FROM "shared_links" WHERE invoice_id IN `).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("link-1").AddRow("link-2"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "link_views"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "shared_links"`).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "invoices"`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := s.ClearAll(context.Background(), "owner-a")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, artifacts.deleted, 1)
	assert.Equal(t, []string{"pdfs/a.pdf", "pdfs/c.pdf"}, artifacts.deleted[0])
}

func TestClearAllNoInvoicesIsANoop(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	mock.ExpectQuery(`SELECT "id","artifact_key" FROM "invoices" WHERE owner_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "artifact_key"}))

	assert.NoError(t, s.ClearAll(context.Background(), "owner-a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAllDecodesDocuments(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE owner_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "data", "artifact_key", "created_at", "updated_at"}).
			AddRow("invoice-0002", "owner-a", rawDoc(t, "invoice-0002"), "", now, now).
			AddRow("invoice-0001", "owner-a", rawDoc(t, "invoice-0001"), "", now, now))

	out, err := s.ListAll(context.Background(), "owner-a")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "invoice-0002", out[0].Id)
	assert.Equal(t, "invoice-0001", out[1].Id)
	// Totals are recomputed on read.
	assert.Equal(t, 100.0, out[0].Invoice.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetArtifactKeyUnknownInvoice(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewInvoiceStore(db, nil, 12, testLogger())

	mock.ExpectExec(`UPDATE "invoices" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetArtifactKey(context.Background(), "invoice-0001", "owner-b", "pdfs/x.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
