package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/core/ports"
)

type RedeemUseCase struct {
	ledger   ports.DocumentLedger
	blobs    ports.BlobStore
	cipher   ports.Cipher
	codes    ports.CodeIssuer
	staging  ports.StagingStore
	grants   ports.GrantSigner
	grantTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewRedeemUseCase(
	ledger ports.DocumentLedger,
	blobs ports.BlobStore,
	cipher ports.Cipher,
	codes ports.CodeIssuer,
	staging ports.StagingStore,
	grants ports.GrantSigner,
	grantTTL time.Duration,
	logger *slog.Logger,
) *RedeemUseCase {
	if grantTTL <= 0 {
		grantTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedeemUseCase{
		ledger:   ledger,
		blobs:    blobs,
		cipher:   cipher,
		codes:    codes,
		staging:  staging,
		grants:   grants,
		grantTTL: grantTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// Redeem verifies the code for a known document and, on success, exposes
// the plaintext through a time-boxed grant. The pending -> printed
// transition commits BEFORE staging: a document cannot be printed twice
// even if this pickup attempt never fetches the bytes, at the cost of
// burning the code if staging fails afterwards.
func (uc *RedeemUseCase) Redeem(ctx context.Context, centerID, documentID, code string) (*domain.PrintGrant, error) {
	doc, err := uc.ledger.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	// Scoped to the presenting center: a code leaked to another kiosk
	// authorizes nothing.
	if doc.CenterID != centerID {
		return nil, domain.WrapError(domain.ErrNotFound, "redeem document",
			fmt.Errorf("document not addressed to center"))
	}
	return uc.consume(ctx, doc, code)
}

// RedeemByCode locates the pending document by code alone, scoped to the
// presenting center.
func (uc *RedeemUseCase) RedeemByCode(ctx context.Context, centerID, code string) (*domain.PrintGrant, error) {
	doc, err := uc.ledger.FindPendingByCenterAndCode(ctx, centerID, code)
	if err != nil {
		return nil, err
	}
	return uc.consume(ctx, doc, code)
}

func (uc *RedeemUseCase) consume(ctx context.Context, doc *domain.Document, code string) (*domain.PrintGrant, error) {
	switch doc.Status {
	case domain.StatusPending:
	case domain.StatusPrinted:
		return nil, domain.WrapError(domain.ErrAlreadyConsumed, "redeem document",
			fmt.Errorf("document %s already printed", doc.ID))
	case domain.StatusExpired:
		return nil, domain.WrapError(domain.ErrExpired, "redeem document",
			fmt.Errorf("document %s expired", doc.ID))
	default:
		return nil, domain.WrapError(domain.ErrNotFound, "redeem document",
			fmt.Errorf("document %s is %s", doc.ID, doc.Status))
	}

	now := uc.now().UTC()
	if now.After(doc.OTPExpiresAt) {
		// Opportunistic reap; the janitor's sweep would get there anyway.
		if _, err := uc.ledger.Transition(ctx, doc.ID, domain.StatusPending, domain.StatusExpired); err != nil {
			uc.logger.Warn("opportunistic expiry failed", "document_id", doc.ID, "error", err)
		}
		return nil, domain.WrapError(domain.ErrExpired, "redeem document",
			fmt.Errorf("code expired at %s", doc.OTPExpiresAt.Format(time.RFC3339)))
	}

	if !uc.codes.Verify(doc.OTP, doc.OTPExpiresAt, now, code) {
		return nil, domain.WrapError(domain.ErrInvalidCode, "redeem document",
			fmt.Errorf("code mismatch for document %s", doc.ID))
	}

	// Single-use gate. Of N concurrent redemptions exactly one passes;
	// the rest surface as already consumed.
	doc, err := uc.ledger.Transition(ctx, doc.ID, domain.StatusPending, domain.StatusPrinted)
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, domain.WrapError(domain.ErrAlreadyConsumed, "redeem document", err)
		}
		return nil, err
	}

	grant, err := uc.stageAndGrant(ctx, doc)
	if err != nil {
		// The transition already committed; the code is burned by policy.
		uc.logger.Error("staging after consume failed", "document_id", doc.ID, "error", err)
		return nil, err
	}
	return grant, nil
}

func (uc *RedeemUseCase) stageAndGrant(ctx context.Context, doc *domain.Document) (*domain.PrintGrant, error) {
	rc, err := uc.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "fetch sealed payload", err)
	}
	sealed, err := io.ReadAll(rc)
	closeErr := rc.Close()
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "read sealed payload", err)
	}
	if closeErr != nil {
		uc.logger.Warn("close sealed payload reader failed", "document_id", doc.ID, "error", closeErr)
	}

	plaintext, err := uc.cipher.Open(sealed, doc.EncryptionKey)
	if err != nil {
		// Corrupted ciphertext is an operator-level event, never a retry.
		uc.logger.Error("sealed payload failed authentication", "document_id", doc.ID, "blob_key", doc.BlobKey)
		return nil, err
	}

	path, err := uc.staging.Stage(ctx, doc.ID, plaintext)
	if err != nil {
		return nil, fmt.Errorf("stage plaintext: %w", err)
	}

	handle, expiresAt, err := uc.grants.Issue(doc.ID, path, uc.grantTTL)
	if err != nil {
		// Release the staged plaintext on this exit path; the janitor is
		// only the backstop.
		if rmErr := uc.staging.Remove(ctx, path); rmErr != nil {
			uc.logger.Warn("release staged artifact failed", "document_id", doc.ID, "error", rmErr)
		}
		return nil, fmt.Errorf("issue retrieval handle: %w", err)
	}

	return &domain.PrintGrant{
		DocumentID: doc.ID,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		StagedPath: path,
		Handle:     handle,
		ExpiresAt:  expiresAt,
	}, nil
}
