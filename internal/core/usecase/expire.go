package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/printpoint/handoff/internal/core/ports"
)

// ExpiryUseCase is the ledger-side reaper: pending documents whose code
// lapsed move to expired in bulk, independent of anyone presenting the
// code.
type ExpiryUseCase struct {
	ledger ports.DocumentLedger
	logger *slog.Logger
	now    func() time.Time
}

func NewExpiryUseCase(ledger ports.DocumentLedger, logger *slog.Logger) *ExpiryUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryUseCase{ledger: ledger, logger: logger, now: time.Now}
}

func (uc *ExpiryUseCase) ReapExpired(ctx context.Context) (int64, error) {
	n, err := uc.ledger.ExpirePendingBefore(ctx, uc.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reap expired documents: %w", err)
	}
	if n > 0 {
		uc.logger.Info("expired pending documents", "count", n)
	}
	return n, nil
}
