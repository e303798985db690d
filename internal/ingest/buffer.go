// Package ingest provides fragment intake: sources that consume
// upstream worker output and the per-session buffer the merge engine
// drains.
package ingest

import (
	"sync"

	"caption-merge-service/internal/models"
)

// Buffer holds queued fragments per session, in arrival order. Sources
// append; the merge engine drains. Arrival order across ticks is
// preserved as-is, fragments are never re-ordered here.
type Buffer struct {
	mu       sync.Mutex
	sessions map[string][]*models.Fragment
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{sessions: make(map[string][]*models.Fragment)}
}

// Push appends a fragment to its session's queue.
func (b *Buffer) Push(f *models.Fragment) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[f.SessionID] = append(b.sessions[f.SessionID], f)
}

// Drain atomically removes and returns all queued fragments for a
// session. Returns nil when the queue is empty.
func (b *Buffer) Drain(sessionID string) []*models.Fragment {
	b.mu.Lock()
	defer b.mu.Unlock()
	queued := b.sessions[sessionID]
	if len(queued) == 0 {
		return nil
	}
	delete(b.sessions, sessionID)
	return queued
}

// Requeue puts fragments back at the head of a session's queue, ahead
// of anything that arrived since they were drained. Used when a store
// failure interrupts a batch mid-drain.
func (b *Buffer) Requeue(sessionID string, fragments []*models.Fragment) {
	if len(fragments) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[sessionID] = append(append([]*models.Fragment{}, fragments...), b.sessions[sessionID]...)
}

// Sessions returns the ids of every session with at least one queued
// fragment.
func (b *Buffer) Sessions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of fragments queued for a session.
func (b *Buffer) Len(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}
