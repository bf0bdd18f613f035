package ports

import (
	"context"

	"github.com/printpoint/handoff/internal/core/domain"
)

// DocumentUploader is the inbound contract for the deposit side of the
// handoff.
type DocumentUploader interface {
	Upload(ctx context.Context, req UploadRequest) (*domain.Document, error)
}

// UploadRequest carries everything needed to deposit a document for
// pickup. UploaderName and UploaderPhone may be empty for an
// authenticated uploader and are required for anonymous kiosk drop-off
// only by the excluded outer layer.
type UploadRequest struct {
	CenterID      string
	FileName      string
	MimeType      string
	Payload       []byte
	Destination   string
	UploaderName  string
	UploaderPhone string
}

// DocumentRedeemer is the inbound contract for the pickup side. Both
// operations are performed by a center, not the uploader.
type DocumentRedeemer interface {
	// Redeem verifies the code against a known document id.
	Redeem(ctx context.Context, centerID, documentID, code string) (*domain.PrintGrant, error)
	// RedeemByCode locates the pending document by code alone, scoped to
	// the presenting center.
	RedeemByCode(ctx context.Context, centerID, code string) (*domain.PrintGrant, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByCenter(ctx context.Context, centerID string, status domain.Status) ([]domain.Document, error)
}

// DocumentRemover deletes a document's blob and ledger row.
type DocumentRemover interface {
	Remove(ctx context.Context, id string) error
}

// ExpiryReaper moves pending documents past their code expiry to the
// expired state.
type ExpiryReaper interface {
	ReapExpired(ctx context.Context) (int64, error)
}
