package staging

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"
)

func newTestArea(t *testing.T) *Area {
	t.Helper()
	area, err := New(t.TempDir(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return area
}

func TestStageReadRemove(t *testing.T) {
	area := newTestArea(t)
	ctx := context.Background()

	path, err := area.Stage(ctx, "doc-1", []byte("decrypted bytes"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	got, err := area.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "decrypted bytes" {
		t.Fatalf("unexpected staged contents %q", got)
	}

	if err := area.Remove(ctx, path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// Removing twice must be safe; the janitor may race the handler.
	if err := area.Remove(ctx, path); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}
	if _, err := area.ReadFile(ctx, path); err == nil {
		t.Fatalf("expected error reading removed artifact")
	}
}

func TestStagePathsAreCollisionFree(t *testing.T) {
	area := newTestArea(t)
	ctx := context.Background()

	a, err := area.Stage(ctx, "doc-1", []byte("first"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	b, err := area.Stage(ctx, "doc-1", []byte("second"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	if a == b {
		t.Fatalf("two stagings of the same document share path %s", a)
	}
}

func TestSweepRemovesOnlyAgedArtifacts(t *testing.T) {
	area := newTestArea(t)
	ctx := context.Background()

	oldPath, err := area.Stage(ctx, "doc-old", []byte("stale plaintext"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}
	freshPath, err := area.Stage(ctx, "doc-fresh", []byte("fresh plaintext"))
	if err != nil {
		t.Fatalf("Stage() error = %v", err)
	}

	// Age the first artifact past the TTL without waiting.
	aged := time.Now().Add(-10 * time.Minute)
	if err := os.Chtimes(oldPath, aged, aged); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	removed, err := area.Sweep(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("aged artifact still present")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Fatalf("fresh artifact missing: %v", err)
	}
}

func TestSweepEmptyAreaIsNoop(t *testing.T) {
	area := newTestArea(t)
	removed, err := area.Sweep(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removed, got %d", removed)
	}
}

func TestRemoveRejectsOutsidePaths(t *testing.T) {
	area := newTestArea(t)
	if err := area.Remove(context.Background(), "/etc/hosts"); err == nil {
		t.Fatalf("expected rejection of path outside staging area")
	}
}
