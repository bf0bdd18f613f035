package staging

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Area holds decrypted plaintext between redemption and print. Every file
// here is transient: the redemption handler releases its own artifact on
// exit and the janitor sweeps anything left behind, so nothing decrypted
// outlives the staging TTL.
type Area struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func New(dir string, logger *slog.Logger) (*Area, error) {
	if dir == "" {
		dir = "./data/staging"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Area{dir: dir, logger: logger, now: time.Now}, nil
}

// Stage writes plaintext under a collision-free name (id plus nanos), so
// concurrent sweeps and writes never target the same path destructively.
func (a *Area) Stage(ctx context.Context, id string, plaintext []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d", id, a.now().UnixNano())
	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, plaintext, 0o600); err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	return path, nil
}

func (a *Area) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := a.contains(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read staged artifact: %w", err)
	}
	return data, nil
}

// Remove is idempotent; the janitor may have beaten the caller to it.
func (a *Area) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged artifact: %w", err)
	}
	return nil
}

// Sweep deletes every staged artifact older than maxAge. Individual
// failures are logged and skipped so one bad file cannot stall the
// backstop.
func (a *Area) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return 0, fmt.Errorf("list staging dir: %w", err)
	}

	cutoff := a.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			a.logger.Warn("stat staged artifact failed", "name", entry.Name(), "error", err)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(a.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("remove staged artifact failed", "name", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (a *Area) contains(path string) error {
	rel, err := filepath.Rel(a.dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path %q is outside the staging area", path)
	}
	return nil
}
