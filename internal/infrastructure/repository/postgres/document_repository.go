package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/printpoint/handoff/internal/core/domain"
)

const uniqueViolationCode = "23505"

// DocumentLedger is the Postgres-backed authoritative record of document
// state. All lifecycle mutations go through Transition's conditional
// update; nothing else rewrites status.
type DocumentLedger struct {
	db *sql.DB
}

func NewDocumentLedger(db *sql.DB) *DocumentLedger {
	return &DocumentLedger{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (l *DocumentLedger) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/janitor startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	center_id TEXT NOT NULL,
	file_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	blob_key TEXT NOT NULL,
	encryption_key BYTEA NOT NULL,
	otp TEXT NOT NULL,
	otp_expires_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	destination TEXT NOT NULL,
	uploader_name TEXT,
	uploader_phone TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_center_status ON documents(center_id, status);
CREATE INDEX IF NOT EXISTS idx_documents_otp_expires_at ON documents(otp_expires_at);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, center_id, file_name, mime_type, blob_key, encryption_key, otp, otp_expires_at, status, destination, uploader_name, uploader_phone, created_at, updated_at`

func (l *DocumentLedger) Create(ctx context.Context, doc *domain.Document) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO documents (
	id, center_id, file_name, mime_type, blob_key, encryption_key, otp, otp_expires_at, status, destination, uploader_name, uploader_phone, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.CenterID, doc.FileName, doc.MimeType, doc.BlobKey, doc.EncryptionKey,
		doc.OTP, doc.OTPExpiresAt, string(doc.Status), doc.Destination,
		nullable(doc.UploaderName), nullable(doc.UploaderPhone), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.WrapError(domain.ErrConflict, "insert document", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (l *DocumentLedger) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)
	return scanDocument(row, "fetch document")
}

func (l *DocumentLedger) FindPendingByCenterAndCode(ctx context.Context, centerID, code string) (*domain.Document, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE center_id = $1 AND otp = $2 AND status = $3
`, centerID, code, string(domain.StatusPending))
	return scanDocument(row, "find pending document")
}

// Transition is the single race-safe mutation point: the update applies
// only while the stored status still equals from, so of N concurrent
// redemptions exactly one row update wins and the rest observe
// ErrConflict.
func (l *DocumentLedger) Transition(ctx context.Context, id string, from, to domain.Status) (*domain.Document, error) {
	if !domain.CanTransition(from, to) {
		return nil, domain.WrapError(domain.ErrConflict, "transition document",
			fmt.Errorf("illegal transition %s -> %s", from, to))
	}

	row := l.db.QueryRowContext(ctx, `
UPDATE documents
SET status = $3, updated_at = $4
WHERE id = $1 AND status = $2
RETURNING `+documentColumns+`
`, id, string(from), string(to), time.Now().UTC())

	doc, err := scanDocument(row, "transition document")
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			// Either the id is unknown or another writer got there first;
			// disambiguate so the caller can report "already printed".
			if _, getErr := l.GetByID(ctx, id); getErr == nil {
				return nil, domain.WrapError(domain.ErrConflict, "transition document",
					fmt.Errorf("status no longer %s", from))
			}
			return nil, err
		}
		return nil, err
	}
	return doc, nil
}

func (l *DocumentLedger) ListByCenter(ctx context.Context, centerID string, status domain.Status) ([]domain.Document, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE center_id = $1 AND status = $2
ORDER BY created_at DESC
`, centerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows, "list documents")
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// ExpirePendingBefore is the reaper's bulk sweep: every pending document
// whose code expired before cutoff moves to expired in one statement.
func (l *DocumentLedger) ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
UPDATE documents
SET status = $1, updated_at = $2
WHERE status = $3 AND otp_expires_at < $4
`, string(domain.StatusExpired), time.Now().UTC(), string(domain.StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending documents: %w", err)
	}
	return affected, nil
}

func (l *DocumentLedger) Delete(ctx context.Context, id string) error {
	res, err := l.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete document", sql.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, operation string) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var uploaderName, uploaderPhone sql.NullString

	err := row.Scan(
		&doc.ID, &doc.CenterID, &doc.FileName, &doc.MimeType, &doc.BlobKey, &doc.EncryptionKey,
		&doc.OTP, &doc.OTPExpiresAt, &status, &doc.Destination,
		&uploaderName, &uploaderPhone, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, operation, err)
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	doc.Status = domain.Status(status)
	doc.UploaderName = uploaderName.String
	doc.UploaderPhone = uploaderPhone.String
	return &doc, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
