package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/printpoint/handoff/internal/config"
	"github.com/printpoint/handoff/internal/core/ports"
	"github.com/printpoint/handoff/internal/core/usecase"
	"github.com/printpoint/handoff/internal/infrastructure/cipher/aesgcm"
	"github.com/printpoint/handoff/internal/infrastructure/grant/jwtgrant"
	natsnotifier "github.com/printpoint/handoff/internal/infrastructure/notifier/nats"
	"github.com/printpoint/handoff/internal/infrastructure/otp"
	"github.com/printpoint/handoff/internal/infrastructure/repository/postgres"
	"github.com/printpoint/handoff/internal/infrastructure/resilience"
	"github.com/printpoint/handoff/internal/infrastructure/storage/localfs"
	"github.com/printpoint/handoff/internal/infrastructure/storage/staging"
)

type App struct {
	Config config.Config

	Ledger  ports.DocumentLedger
	Staging ports.StagingStore
	Grants  ports.GrantSigner

	UploadUC *usecase.UploadUseCase
	RedeemUC *usecase.RedeemUseCase
	RemoveUC *usecase.RemoveUseCase
	ExpiryUC *usecase.ExpiryUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ledger := postgres.NewDocumentLedger(db)
	if err := ledger.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	blobs, err := localfs.New(cfg.BlobPath)
	if err != nil {
		return nil, fmt.Errorf("init blob store: %w", err)
	}
	resilientBlobs := localfs.WithResilience(blobs, executor)

	stagingArea, err := staging.New(cfg.StagingPath, logger)
	if err != nil {
		return nil, fmt.Errorf("init staging area: %w", err)
	}

	notifier, err := natsnotifier.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsnotifier.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init notifier: %w", err)
	}

	signer, err := jwtgrant.NewSigner([]byte(cfg.GrantSecret))
	if err != nil {
		return nil, fmt.Errorf("init grant signer: %w", err)
	}

	cipher := aesgcm.New()
	codes := otp.NewIssuer(cfg.CodeTTL)

	uploadUC := usecase.NewUploadUseCase(ledger, resilientBlobs, cipher, codes, notifier, logger)
	redeemUC := usecase.NewRedeemUseCase(ledger, resilientBlobs, cipher, codes, stagingArea, signer, cfg.GrantTTL, logger)
	removeUC := usecase.NewRemoveUseCase(ledger, resilientBlobs, logger)
	expiryUC := usecase.NewExpiryUseCase(ledger, logger)

	return &App{
		Config: cfg,

		Ledger:  ledger,
		Staging: stagingArea,
		Grants:  signer,

		UploadUC: uploadUC,
		RedeemUC: redeemUC,
		RemoveUC: removeUC,
		ExpiryUC: expiryUC,

		closeFn: func() {
			notifier.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
