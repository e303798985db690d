// Package store defines the shared keyed store contract between the
// merge engine and the notification layer, plus the Redis and in-memory
// implementations. The store is the only channel between the two sides
// of the pipeline.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a keyed record store. Set is a full overwrite with
// last-writer-wins semantics; there is no merge or delta update at this
// layer.
type Store interface {
	Set(ctx context.Context, key string, record []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Scan returns all keys under the given prefix, in store order.
	Scan(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Retry policy for store writes. Failures are retried with exponential
// backoff; persistent failure surfaces to the caller, which degrades the
// session rather than crashing the loop.
const (
	retryAttempts = 3
	retryBaseWait = 50 * time.Millisecond
)

// SetWithRetry writes a record with bounded retry.
func SetWithRetry(ctx context.Context, s Store, key string, record []byte) error {
	var err error
	wait := retryBaseWait
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = s.Set(ctx, key, record); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
