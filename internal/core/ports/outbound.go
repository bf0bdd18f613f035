package ports

import (
	"context"
	"io"
	"time"

	"github.com/printpoint/handoff/internal/core/domain"
)

// DocumentLedger is the authoritative record of document metadata and
// lifecycle state.
type DocumentLedger interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// FindPendingByCenterAndCode is scoped to one center so OTP collisions
	// across centers cannot cross-authorize.
	FindPendingByCenterAndCode(ctx context.Context, centerID, code string) (*domain.Document, error)
	// Transition succeeds only if the stored status still equals from;
	// a stale state yields domain.ErrConflict. Concurrent redemptions of
	// the same document race here and at most one wins.
	Transition(ctx context.Context, id string, from, to domain.Status) (*domain.Document, error)
	ListByCenter(ctx context.Context, centerID string, status domain.Status) ([]domain.Document, error)
	ExpirePendingBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Delete(ctx context.Context, id string) error
}

// BlobStore durably stores opaque byte payloads by key. Delete is
// idempotent: removing a missing key is not an error.
type BlobStore interface {
	Put(ctx context.Context, key string, data io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Notifier delivers a short text message to a destination address. Upload
// treats delivery failures as best-effort.
type Notifier interface {
	Send(ctx context.Context, destination, message string) error
}

// Cipher is per-document authenticated encryption. Seal draws a fresh
// nonce on every call; Open authenticates before releasing plaintext.
type Cipher interface {
	GenerateKey() ([]byte, error)
	Seal(plaintext, key []byte) ([]byte, error)
	Open(sealed, key []byte) ([]byte, error)
}

// CodeIssuer generates and checks one-time pickup codes.
type CodeIssuer interface {
	Issue() (code string, expiresAt time.Time, err error)
	Verify(code string, expiresAt, now time.Time, candidate string) bool
}

// StagingStore holds decrypted plaintext for a bounded time between
// redemption and print.
type StagingStore interface {
	Stage(ctx context.Context, id string, plaintext []byte) (path string, err error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// Remove is idempotent; callers release the staged artifact on every
	// redemption exit path and the janitor sweeps whatever is left.
	Remove(ctx context.Context, path string) error
	Sweep(ctx context.Context, maxAge time.Duration) (removed int, err error)
}

// GrantSigner issues and verifies short-lived signed retrieval handles for
// staged plaintext.
type GrantSigner interface {
	Issue(documentID, stagedPath string, ttl time.Duration) (handle string, expiresAt time.Time, err error)
	Verify(handle string) (documentID, stagedPath string, err error)
}
