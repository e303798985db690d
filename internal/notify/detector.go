// Package notify implements the change-notification layer: a
// fingerprint-based change detector over the keyed store and a websocket
// hub that fans changed lines out to live viewers.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"caption-merge-service/internal/store"
)

// Detector tracks the last-broadcast content fingerprint of every line
// key under one session's prefix. A line is reported at most once per
// content version; unchanged lines are never re-sent. Key disappearance
// is deliberately not diffed — removals are only ever communicated by
// the global clear control message.
type Detector struct {
	store        store.Store
	prefix       string
	fingerprints map[string]uint64
}

// NewDetector creates a detector for one session's line keys.
func NewDetector(s store.Store, sessionID string) *Detector {
	return &Detector{
		store:        s,
		prefix:       store.SessionPrefix(sessionID),
		fingerprints: make(map[string]uint64),
	}
}

// Diff scans the session's line keys and returns the serialized records
// whose content changed since the previous successful scan, in scan
// order. There is no cross-line ordering guarantee. Fingerprints commit
// only once the whole scan succeeds: a failed scan marks nothing as
// delivered, so the next scan reports the same lines again.
func (d *Detector) Diff(ctx context.Context) ([][]byte, error) {
	keys, err := d.store.Scan(ctx, d.prefix)
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", d.prefix, err)
	}

	var updated [][]byte
	changed := make(map[string]uint64)
	for _, key := range keys {
		record, err := d.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between scan and get; removals are not pushed.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", key, err)
		}

		fp := xxhash.Sum64(record)
		if d.fingerprints[key] == fp {
			continue
		}
		changed[key] = fp
		updated = append(updated, record)
	}

	for key, fp := range changed {
		d.fingerprints[key] = fp
	}
	return updated, nil
}
