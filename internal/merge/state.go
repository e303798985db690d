// Package merge implements the fragment merge engine: the polling loop
// that turns per-session streams of utterance fragments into stable,
// incrementally growing lines in the shared keyed store.
package merge

import (
	"time"

	"caption-merge-service/internal/models"
)

// SessionState tracks the merge state of one session. A session holds at
// most one open thread at a time for the entire session, not per
// speaker: a fragment from a different speaker or language always closes
// the current thread, even when that speaker already has earlier lines.
//
// SessionState is exclusively owned by the Engine and is only touched
// between ticks of a single goroutine, so it carries no lock.
//
// Thread lifecycle:
//
//	(no thread) ── open(fragment) ──→ OPEN
//	  OPEN ── merge predicate holds ──→ OPEN (same thread, appended)
//	  OPEN ── superseded / idle sweep ──→ (no thread)
//
// A closed thread's stored record is never deleted; it simply stops
// receiving appends.
type SessionState struct {
	sessionID string

	// open is the session's current thread, nil when no thread is open.
	open *models.Line

	// lastWrite is the wall-clock time of the last successful store
	// write for this session. The merge window is measured against it.
	lastWrite time.Time

	// lastActivity is the wall-clock time of the last fragment seen,
	// used for TTL reaping.
	lastActivity time.Time

	// degraded marks the session after a store write failed through all
	// retries. Cleared by the next successful write.
	degraded bool
}

func newSessionState(sessionID string, now time.Time) *SessionState {
	return &SessionState{
		sessionID:    sessionID,
		lastWrite:    now,
		lastActivity: now,
	}
}

// HasOpenThread reports whether the session has a current thread.
func (s *SessionState) HasOpenThread() bool {
	return s.open != nil
}

// OpenThread returns the current thread, nil when none is open.
func (s *SessionState) OpenThread() *models.Line {
	return s.open
}

// SilentFor returns the elapsed wall time since the last write.
func (s *SessionState) SilentFor(now time.Time) time.Duration {
	return now.Sub(s.lastWrite)
}

// IdleFor returns the elapsed wall time since the last fragment.
func (s *SessionState) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.lastActivity)
}

// Degraded reports whether the last write attempt for this session
// exhausted its retries.
func (s *SessionState) Degraded() bool {
	return s.degraded
}

// mergeable evaluates the merge predicate against the open thread:
// same speaker, same language, and elapsed wall time within the window
// (inclusive). The elapsed test deliberately uses processing wall-clock
// time rather than fragment timestamps: it bounds staleness of live
// streams, at the cost of merging a quickly-processed backlog of old
// fragments regardless of their audio-time gaps.
func (s *SessionState) mergeable(f *models.Fragment, now time.Time, window time.Duration) bool {
	if s.open == nil {
		return false
	}
	return f.SpeakerID == s.open.SpeakerID &&
		f.Language == s.open.Language &&
		now.Sub(s.lastWrite) <= window
}

// commitWrite records a successful store write.
func (s *SessionState) commitWrite(line *models.Line, now time.Time) {
	s.open = line
	s.lastWrite = now
	s.degraded = false
}

// clearThread drops the open-thread pointer without a write. Used by the
// idle sweep and the TTL reaper.
func (s *SessionState) clearThread() {
	s.open = nil
}
