package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/printpoint/handoff/internal/core/domain"
	"github.com/printpoint/handoff/internal/core/ports"
)

func uploadRequest(payload []byte) ports.UploadRequest {
	return ports.UploadRequest{
		CenterID:    "center-1",
		FileName:    "statement.pdf",
		MimeType:    "application/pdf",
		Payload:     payload,
		Destination: "a@b.com",
	}
}

func TestUploadSuccess(t *testing.T) {
	ledger := newFakeLedger()
	blobs := newFakeBlobStore()
	notifier := &fakeNotifier{}
	codes := &fakeCodes{code: "123456", ttl: 30 * time.Minute}
	uc := NewUploadUseCase(ledger, blobs, &fakeCipher{}, codes, notifier, nil)

	payload := bytes.Repeat([]byte{0xAB}, 1200)
	doc, err := uc.Upload(context.Background(), uploadRequest(payload))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	if doc.Status != domain.StatusPending {
		t.Fatalf("expected pending, got %s", doc.Status)
	}
	if len(doc.OTP) != 6 {
		t.Fatalf("expected 6-digit code, got %q", doc.OTP)
	}
	if doc.OTPExpiresAt.Before(time.Now()) {
		t.Fatalf("code already expired at %v", doc.OTPExpiresAt)
	}

	keys := blobs.keys()
	if len(keys) != 1 {
		t.Fatalf("expected exactly one blob, got %d", len(keys))
	}
	if bytes.Equal(blobs.data[keys[0]], payload) {
		t.Fatalf("blob store holds unsealed plaintext")
	}

	stored, err := ledger.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("ledger row missing: %v", err)
	}
	if stored.BlobKey != keys[0] {
		t.Fatalf("ledger blob key %q does not match stored blob %q", stored.BlobKey, keys[0])
	}
	if len(stored.EncryptionKey) == 0 {
		t.Fatalf("ledger row has no encryption key")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if !strings.HasPrefix(notifier.sent[0], "a@b.com|") {
		t.Fatalf("notification went to %q", notifier.sent[0])
	}
	if !strings.Contains(notifier.sent[0], "123456") {
		t.Fatalf("notification does not carry the code")
	}
}

func TestUploadEachDocumentGetsItsOwnKey(t *testing.T) {
	ledger := newFakeLedger()
	uc := NewUploadUseCase(ledger, newFakeBlobStore(), &fakeCipher{},
		&fakeCodes{code: "123456", ttl: time.Minute}, &fakeNotifier{}, nil)

	a, err := uc.Upload(context.Background(), uploadRequest([]byte("first")))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	b, err := uc.Upload(context.Background(), uploadRequest([]byte("second")))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	docA, _ := ledger.GetByID(context.Background(), a.ID)
	docB, _ := ledger.GetByID(context.Background(), b.ID)
	if bytes.Equal(docA.EncryptionKey, docB.EncryptionKey) {
		t.Fatalf("two documents share an encryption key")
	}
}

func TestUploadValidation(t *testing.T) {
	uc := NewUploadUseCase(newFakeLedger(), newFakeBlobStore(), &fakeCipher{},
		&fakeCodes{code: "123456", ttl: time.Minute}, &fakeNotifier{}, nil)

	tests := []struct {
		name   string
		mutate func(*ports.UploadRequest)
	}{
		{"empty payload", func(r *ports.UploadRequest) { r.Payload = nil }},
		{"unsupported mime", func(r *ports.UploadRequest) { r.MimeType = "image/png" }},
		{"missing destination", func(r *ports.UploadRequest) { r.Destination = "  " }},
		{"missing center", func(r *ports.UploadRequest) { r.CenterID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest([]byte("content"))
			tt.mutate(&req)
			if _, err := uc.Upload(context.Background(), req); !domain.IsKind(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestUploadStorageFailureAbortsBeforeLedger(t *testing.T) {
	ledger := newFakeLedger()
	blobs := newFakeBlobStore()
	blobs.putErr = errors.New("disk full")
	notifier := &fakeNotifier{}
	uc := NewUploadUseCase(ledger, blobs, &fakeCipher{},
		&fakeCodes{code: "123456", ttl: time.Minute}, notifier, nil)

	_, err := uc.Upload(context.Background(), uploadRequest([]byte("content")))
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if len(ledger.docs) != 0 {
		t.Fatalf("ledger row created despite storage failure")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("notification sent despite storage failure")
	}
}

func TestUploadNotifierFailureStillSucceeds(t *testing.T) {
	ledger := newFakeLedger()
	notifier := &fakeNotifier{err: errors.New("sms gateway down")}
	uc := NewUploadUseCase(ledger, newFakeBlobStore(), &fakeCipher{},
		&fakeCodes{code: "123456", ttl: time.Minute}, notifier, nil)

	doc, err := uc.Upload(context.Background(), uploadRequest([]byte("content")))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := ledger.GetByID(context.Background(), doc.ID); err != nil {
		t.Fatalf("document not durable after delivery failure: %v", err)
	}
}

func TestUploadLedgerFailureRemovesBlob(t *testing.T) {
	ledger := newFakeLedger()
	ledger.createErr = errors.New("db down")
	blobs := newFakeBlobStore()
	uc := NewUploadUseCase(ledger, blobs, &fakeCipher{},
		&fakeCodes{code: "123456", ttl: time.Minute}, &fakeNotifier{}, nil)

	if _, err := uc.Upload(context.Background(), uploadRequest([]byte("content"))); err == nil {
		t.Fatalf("expected error")
	}
	if len(blobs.keys()) != 0 {
		t.Fatalf("orphaned blob left after ledger failure")
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("expected one blob cleanup, got %d", len(blobs.deleted))
	}
}
