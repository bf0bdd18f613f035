package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/printpoint/handoff/internal/core/domain"
)

func newLedgerWithMock(t *testing.T) (*DocumentLedger, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentLedger{db: db}, mock, func() { _ = db.Close() }
}

func documentRows(doc domain.Document) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "center_id", "file_name", "mime_type", "blob_key", "encryption_key",
		"otp", "otp_expires_at", "status", "destination",
		"uploader_name", "uploader_phone", "created_at", "updated_at",
	}).AddRow(
		doc.ID, doc.CenterID, doc.FileName, doc.MimeType, doc.BlobKey, doc.EncryptionKey,
		doc.OTP, doc.OTPExpiresAt, string(doc.Status), doc.Destination,
		doc.UploaderName, doc.UploaderPhone, doc.CreatedAt, doc.UpdatedAt,
	)
}

func sampleDocument(status domain.Status) domain.Document {
	now := time.Now().UTC()
	return domain.Document{
		ID:            "doc-1",
		CenterID:      "center-1",
		FileName:      "statement.pdf",
		MimeType:      "application/pdf",
		BlobKey:       "documents/blob-1",
		EncryptionKey: []byte("0123456789abcdef0123456789abcdef"),
		OTP:           "123456",
		OTPExpiresAt:  now.Add(30 * time.Minute),
		Status:        status,
		Destination:   "a@b.com",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestGetByIDReturnsNotFound(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, center_id, file_name").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := ledger.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFindPendingByCenterAndCodeScopesToCenter(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	doc := sampleDocument(domain.StatusPending)
	mock.ExpectQuery("SELECT id, center_id, file_name").
		WithArgs("center-1", "123456", string(domain.StatusPending)).
		WillReturnRows(documentRows(doc))

	got, err := ledger.FindPendingByCenterAndCode(context.Background(), "center-1", "123456")
	if err != nil {
		t.Fatalf("FindPendingByCenterAndCode() error = %v", err)
	}
	if got.ID != doc.ID || got.Status != domain.StatusPending {
		t.Fatalf("unexpected document %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionSucceedsFromExpectedState(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	doc := sampleDocument(domain.StatusPrinted)
	mock.ExpectQuery("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusPending), string(domain.StatusPrinted), sqlmock.AnyArg()).
		WillReturnRows(documentRows(doc))

	got, err := ledger.Transition(context.Background(), "doc-1", domain.StatusPending, domain.StatusPrinted)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if got.Status != domain.StatusPrinted {
		t.Fatalf("expected printed, got %s", got.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionStaleStateReturnsConflict(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	// Conditional update misses because a concurrent winner already moved
	// the row; the follow-up read proves the id exists.
	mock.ExpectQuery("UPDATE documents").
		WithArgs("doc-1", string(domain.StatusPending), string(domain.StatusPrinted), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, center_id, file_name").
		WithArgs("doc-1").
		WillReturnRows(documentRows(sampleDocument(domain.StatusPrinted)))

	_, err := ledger.Transition(context.Background(), "doc-1", domain.StatusPending, domain.StatusPrinted)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionUnknownIDReturnsNotFound(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectQuery("UPDATE documents").
		WithArgs("ghost", string(domain.StatusPending), string(domain.StatusPrinted), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT id, center_id, file_name").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := ledger.Transition(context.Background(), "ghost", domain.StatusPending, domain.StatusPrinted)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	ledger, _, done := newLedgerWithMock(t)
	defer done()

	// printed is terminal; no SQL should run at all.
	_, err := ledger.Transition(context.Background(), "doc-1", domain.StatusPrinted, domain.StatusPending)
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestExpirePendingBeforeReportsCount(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	cutoff := time.Now().UTC()
	mock.ExpectExec("UPDATE documents").
		WithArgs(string(domain.StatusExpired), sqlmock.AnyArg(), string(domain.StatusPending), cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := ledger.ExpirePendingBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ExpirePendingBefore() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 expired, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteMissingRowReturnsNotFound(t *testing.T) {
	ledger, mock, done := newLedgerWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := ledger.Delete(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
