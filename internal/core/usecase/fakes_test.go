package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/printpoint/handoff/internal/core/domain"
)

type fakeLedger struct {
	mu        sync.Mutex
	docs      map[string]*domain.Document
	createErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{docs: make(map[string]*domain.Document)}
}

func (f *fakeLedger) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.docs[doc.ID]; ok {
		return domain.WrapError(domain.ErrConflict, "insert document", errors.New("duplicate id"))
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *fakeLedger) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch document", errors.New("no row"))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *fakeLedger) FindPendingByCenterAndCode(_ context.Context, centerID, code string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.docs {
		if doc.CenterID == centerID && doc.OTP == code && doc.Status == domain.StatusPending {
			copyDoc := *doc
			return &copyDoc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrNotFound, "find pending document", errors.New("no row"))
}

// Transition mirrors the conditional UPDATE: the check and the write
// happen under one lock, so concurrent callers race to exactly one
// winner.
func (f *fakeLedger) Transition(_ context.Context, id string, from, to domain.Status) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "transition document", errors.New("no row"))
	}
	if doc.Status != from {
		return nil, domain.WrapError(domain.ErrConflict, "transition document",
			fmt.Errorf("status is %s, not %s", doc.Status, from))
	}
	if !domain.CanTransition(from, to) {
		return nil, domain.WrapError(domain.ErrConflict, "transition document",
			fmt.Errorf("illegal transition %s -> %s", from, to))
	}
	doc.Status = to
	doc.UpdatedAt = time.Now().UTC()
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *fakeLedger) ListByCenter(_ context.Context, centerID string, status domain.Status) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.CenterID == centerID && doc.Status == status {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *fakeLedger) ExpirePendingBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, doc := range f.docs {
		if doc.Status == domain.StatusPending && doc.OTPExpiresAt.Before(cutoff) {
			doc.Status = domain.StatusExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.WrapError(domain.ErrNotFound, "delete document", errors.New("no row"))
	}
	delete(f.docs, id)
	return nil
}

type fakeBlobStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	putErr    error
	getErr    error
	deleteErr error
	deleted   []string
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{data: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = raw
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[key]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.data {
		out = append(out, k)
	}
	return out
}

// fakeCipher seals by prefixing the key so Open can authenticate without
// real crypto: a mismatched prefix behaves like a failed GCM tag.
type fakeCipher struct {
	keyCounter int
}

func (f *fakeCipher) GenerateKey() ([]byte, error) {
	f.keyCounter++
	return fmt.Appendf(nil, "key-%032d", f.keyCounter), nil
}

func (f *fakeCipher) Seal(plaintext, key []byte) ([]byte, error) {
	return append(append([]byte{}, key...), plaintext...), nil
}

func (f *fakeCipher) Open(sealed, key []byte) ([]byte, error) {
	if len(sealed) < len(key) || !bytes.Equal(sealed[:len(key)], key) {
		return nil, domain.WrapError(domain.ErrIntegrity, "open sealed payload", errors.New("authentication failed"))
	}
	return sealed[len(key):], nil
}

type fakeCodes struct {
	code string
	ttl  time.Duration
}

func (f *fakeCodes) Issue() (string, time.Time, error) {
	return f.code, time.Now().UTC().Add(f.ttl), nil
}

func (f *fakeCodes) Verify(code string, expiresAt, now time.Time, candidate string) bool {
	return !now.After(expiresAt) && code == candidate
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, destination, message string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, destination+"|"+message)
	return nil
}

type fakeStaging struct {
	mu       sync.Mutex
	files    map[string][]byte
	counter  int
	stageErr error
	removed  []string
}

func newFakeStaging() *fakeStaging {
	return &fakeStaging{files: make(map[string][]byte)}
}

func (f *fakeStaging) Stage(_ context.Context, id string, plaintext []byte) (string, error) {
	if f.stageErr != nil {
		return "", f.stageErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter++
	path := fmt.Sprintf("/staging/%s_%d", id, f.counter)
	f.files[path] = append([]byte(nil), plaintext...)
	return path, nil
}

func (f *fakeStaging) ReadFile(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, errors.New("no staged artifact")
	}
	return data, nil
}

func (f *fakeStaging) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeStaging) Sweep(context.Context, time.Duration) (int, error) {
	return 0, errors.New("not implemented")
}

type fakeGrants struct {
	err error
}

func (f *fakeGrants) Issue(documentID, stagedPath string, ttl time.Duration) (string, time.Time, error) {
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	return "handle-" + documentID, time.Now().UTC().Add(ttl), nil
}

func (f *fakeGrants) Verify(handle string) (string, string, error) {
	return "", "", errors.New("not implemented")
}
