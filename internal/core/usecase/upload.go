package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/core/ports"
)

// MIME kinds accepted for deposit; everything else is rejected before any
// byte is stored.
var acceptedMimeTypes = map[string]struct{}{
	"application/pdf": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
}

type UploadUseCase struct {
	ledger   ports.DocumentLedger
	blobs    ports.BlobStore
	cipher   ports.Cipher
	codes    ports.CodeIssuer
	notifier ports.Notifier
	logger   *slog.Logger
}

func NewUploadUseCase(
	ledger ports.DocumentLedger,
	blobs ports.BlobStore,
	cipher ports.Cipher,
	codes ports.CodeIssuer,
	notifier ports.Notifier,
	logger *slog.Logger,
) *UploadUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadUseCase{
		ledger:   ledger,
		blobs:    blobs,
		cipher:   cipher,
		codes:    codes,
		notifier: notifier,
		logger:   logger,
	}
}

// Upload deposits a document for pickup: seal under a fresh per-document
// key, store the sealed payload, record the pending ledger row, then
// dispatch the pickup code. Storage failure aborts before the ledger
// insert so no row ever points at a missing blob; notification failure
// never rolls anything back.
func (uc *UploadUseCase) Upload(ctx context.Context, req ports.UploadRequest) (*domain.Document, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	key, err := uc.cipher.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate document key: %w", err)
	}
	sealed, err := uc.cipher.Seal(req.Payload, key)
	if err != nil {
		return nil, fmt.Errorf("seal payload: %w", err)
	}

	blobKey := "documents/" + uuid.NewString()
	if err := uc.blobs.Put(ctx, blobKey, bytes.NewReader(sealed)); err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "store sealed payload", err)
	}

	code, expiresAt, err := uc.codes.Issue()
	if err != nil {
		return nil, fmt.Errorf("issue pickup code: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:            uuid.NewString(),
		CenterID:      req.CenterID,
		FileName:      req.FileName,
		MimeType:      req.MimeType,
		BlobKey:       blobKey,
		EncryptionKey: key,
		OTP:           code,
		OTPExpiresAt:  expiresAt,
		Status:        domain.StatusPending,
		Destination:   req.Destination,
		UploaderName:  req.UploaderName,
		UploaderPhone: req.UploaderPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := uc.ledger.Create(ctx, doc); err != nil {
		// Do not leave an orphaned blob behind a failed insert.
		if delErr := uc.blobs.Delete(ctx, blobKey); delErr != nil {
			uc.logger.Warn("cleanup of orphaned blob failed", "blob_key", blobKey, "error", delErr)
		}
		return nil, fmt.Errorf("record document: %w", err)
	}

	// Best effort: the code is already durable in the ledger and can be
	// re-delivered through a side channel, so a delivery failure must not
	// fail the upload. The code itself is never logged.
	msg := fmt.Sprintf("Your pickup code for %s is %s. It expires at %s.",
		doc.FileName, code, expiresAt.Format("15:04 MST"))
	if err := uc.notifier.Send(ctx, doc.Destination, msg); err != nil {
		uc.logger.Warn("pickup code delivery failed", "document_id", doc.ID, "error", err)
	}

	return doc, nil
}

func validateUpload(req ports.UploadRequest) error {
	if len(req.Payload) == 0 {
		return domain.WrapError(domain.ErrValidation, "validate upload", errors.New("empty payload"))
	}
	if _, ok := acceptedMimeTypes[req.MimeType]; !ok {
		return domain.WrapError(domain.ErrValidation, "validate upload",
			fmt.Errorf("unsupported mime type %q", req.MimeType))
	}
	if strings.TrimSpace(req.Destination) == "" {
		return domain.WrapError(domain.ErrValidation, "validate upload", errors.New("destination is required"))
	}
	if strings.TrimSpace(req.CenterID) == "" {
		return domain.WrapError(domain.ErrValidation, "validate upload", errors.New("center id is required"))
	}
	return nil
}
