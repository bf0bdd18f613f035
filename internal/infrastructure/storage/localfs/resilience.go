package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/printpoint/handoff/internal/core/ports"
	"github.com/printpoint/handoff/internal/infrastructure/resilience"
)

// ResilientStore decorates a BlobStore with retry and circuit breaking.
// Put failures abort uploads, so transient filesystem/NFS hiccups are
// worth a bounded retry before surfacing as storage errors.
type ResilientStore struct {
	inner    ports.BlobStore
	executor *resilience.Executor
}

func WithResilience(inner ports.BlobStore, executor *resilience.Executor) *ResilientStore {
	return &ResilientStore{inner: inner, executor: executor}
}

func (s *ResilientStore) Put(ctx context.Context, key string, data io.Reader) error {
	// A reader can only be consumed once, so Put is not retried; the
	// breaker still records the failure.
	return s.executor.Execute(ctx, "blobstore.put", func(ctx context.Context) error {
		return s.inner.Put(ctx, key, data)
	}, classifyStorageError(false))
}

func (s *ResilientStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.executor.Execute(ctx, "blobstore.get", func(ctx context.Context) error {
		var callErr error
		rc, callErr = s.inner.Get(ctx, key)
		return callErr
	}, classifyStorageError(true))
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *ResilientStore) Delete(ctx context.Context, key string) error {
	return s.executor.Execute(ctx, "blobstore.delete", func(ctx context.Context) error {
		return s.inner.Delete(ctx, key)
	}, classifyStorageError(true))
}

func classifyStorageError(retryable bool) resilience.Classifier {
	return func(err error) resilience.Classification {
		if err == nil {
			return resilience.Classification{}
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return resilience.Classification{Retryable: false, RecordFailure: false}
		}
		// A missing blob is an answer, not an outage.
		if errors.Is(err, fs.ErrNotExist) {
			return resilience.Classification{Retryable: false, RecordFailure: false}
		}
		return resilience.Classification{Retryable: retryable, RecordFailure: true}
	}
}
