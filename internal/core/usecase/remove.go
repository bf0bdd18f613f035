package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/core/ports"
)

// RemoveUseCase handles explicit deletion: blob first, row second, so a
// partial failure can only leave a row pointing at nothing rather than an
// unreferenced blob that nobody would ever clean up.
type RemoveUseCase struct {
	ledger ports.DocumentLedger
	blobs  ports.BlobStore
	logger *slog.Logger
}

func NewRemoveUseCase(ledger ports.DocumentLedger, blobs ports.BlobStore, logger *slog.Logger) *RemoveUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoveUseCase{ledger: ledger, blobs: blobs, logger: logger}
}

func (uc *RemoveUseCase) Remove(ctx context.Context, id string) error {
	doc, err := uc.ledger.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := uc.blobs.Delete(ctx, doc.BlobKey); err != nil {
		return domain.WrapError(domain.ErrStorage, "delete sealed payload", err)
	}
	if err := uc.ledger.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	uc.logger.Info("document removed", "document_id", doc.ID)
	return nil
}
