package merge

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"caption-merge-service/internal/ingest"
	"caption-merge-service/internal/models"
	"caption-merge-service/internal/observability/metrics"
	"caption-merge-service/internal/store"
)

// Finalize reasons for metrics.
const (
	reasonSuperseded = "superseded"
	reasonIdle       = "idle"
	reasonReaped     = "reaped"
)

// Config holds merge engine configuration.
type Config struct {
	// Window is the maximum wall-clock gap between writes within which a
	// fragment from the same speaker and language is appended to the
	// open thread rather than starting a new one. Inclusive boundary.
	Window time.Duration

	// TickInterval is the polling interval of the engine loop.
	TickInterval time.Duration

	// SessionTTL bounds how long inactive session state is retained.
	// Sessions idle beyond it are reaped; zero disables reaping.
	SessionTTL time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Window:       15 * time.Second,
		TickInterval: 500 * time.Millisecond,
		SessionTTL:   30 * time.Minute,
	}
}

// Engine is the merge/aggregation loop. Per tick it drains each active
// session's queued fragments, applies the merge predicate in
// batch-timestamp order, writes resulting lines to the store, sweeps
// idle threads, and reaps long-inactive sessions.
//
// The engine assumes it is the single writer for every session it owns.
// Running unpartitioned engine instances against the same sessions
// corrupts merge state; multi-instance deployments must shard sessions
// disjointly (session-affinity routing) before scaling out.
type Engine struct {
	store      store.Store
	buffer     *ingest.Buffer
	listSource *ingest.RedisListSource
	cfg        Config
	sessions   map[string]*SessionState

	// now is the engine's clock, swappable in tests.
	now func() time.Time

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a merge engine. listSource may be nil when fragments only
// arrive through the buffer (e.g. via the Kafka source).
func New(s store.Store, buffer *ingest.Buffer, listSource *ingest.RedisListSource, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultConfig().TickInterval
	}
	return &Engine{
		store:      s,
		buffer:     buffer,
		listSource: listSource,
		cfg:        cfg,
		sessions:   make(map[string]*SessionState),
		now:        time.Now,
		logger:     logger.With().Str("component", "merge-engine").Logger(),
		metrics:    metrics.DefaultMetrics,
	}
}

// Run executes the polling loop until the context is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info().
		Dur("window", e.cfg.Window).
		Dur("tick", e.cfg.TickInterval).
		Dur("sessionTTL", e.cfg.SessionTTL).
		Msg("Merge engine running")

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Merge engine stopped")
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick performs one full engine pass. Sessions are processed
// sequentially; each session's work completes before the next begins.
func (e *Engine) Tick(ctx context.Context) {
	if e.listSource != nil {
		if _, err := e.listSource.Drain(ctx); err != nil {
			// Intake halts for this tick; buffered and in-memory state
			// stay intact for the next one.
			e.logger.Error().Err(err).Msg("Fragment list drain failed, halting intake this tick")
		}
	}

	for _, sessionID := range e.activeSessions() {
		e.processSession(ctx, sessionID)
	}

	e.reapIdleSessions()
	e.metrics.SessionsActive.Set(float64(len(e.sessions)))
}

// activeSessions returns every session with queued fragments or live
// merge state, sorted for deterministic processing order.
func (e *Engine) activeSessions() []string {
	seen := make(map[string]struct{})
	for _, id := range e.buffer.Sessions() {
		seen[id] = struct{}{}
	}
	for id := range e.sessions {
		seen[id] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) processSession(ctx context.Context, sessionID string) {
	batch := e.buffer.Drain(sessionID)
	st := e.sessions[sessionID]

	if len(batch) == 0 {
		// Idle sweep: force-finalize a thread that has been silent
		// longer than the window. No write; the stored record already
		// holds the full accumulated line.
		if st != nil && st.HasOpenThread() && st.SilentFor(e.now()) > e.cfg.Window {
			e.logger.Debug().
				Str("sessionId", sessionID).
				Int64("baseTimestamp", st.open.StartTimestamp).
				Msg("Idle sweep finalizing thread")
			st.clearThread()
			e.metrics.RecordThreadFinalized(reasonIdle)
		}
		return
	}

	if st == nil {
		st = newSessionState(sessionID, e.now())
		e.sessions[sessionID] = st
	}
	st.lastActivity = e.now()
	e.metrics.RecordMergeBatch(len(batch))

	// Sort the drained batch only. Out-of-order arrival across separate
	// ticks is not corrected; this is an accepted limitation.
	sort.SliceStable(batch, func(i, j int) bool {
		return *batch[i].StartTimestamp < *batch[j].StartTimestamp
	})

	for i, fragment := range batch {
		if err := e.mergeFragment(ctx, st, fragment); err != nil {
			// Store unavailable through all retries: degrade the
			// session, requeue the unprocessed tail, and stop draining.
			st.degraded = true
			e.metrics.RecordSessionDegraded()
			e.buffer.Requeue(sessionID, batch[i:])
			e.logger.Error().
				Err(err).
				Str("sessionId", sessionID).
				Int("requeued", len(batch)-i).
				Msg("Store write failed, session degraded")
			return
		}
	}
}

// mergeFragment applies the merge algorithm to a single fragment. State
// mutations are committed only after the corresponding store write
// succeeds, so a failed write leaves the session replayable.
func (e *Engine) mergeFragment(ctx context.Context, st *SessionState, f *models.Fragment) error {
	now := e.now()

	if !st.HasOpenThread() {
		line := models.NewLine(f)
		if err := e.writeLine(ctx, line); err != nil {
			return err
		}
		st.commitWrite(line, now)
		e.metrics.RecordThreadOpened()
		return nil
	}

	if st.mergeable(f, now, e.cfg.Window) {
		merged := *st.open
		merged.Append(f)
		if err := e.writeLine(ctx, &merged); err != nil {
			return err
		}
		st.commitWrite(&merged, now)
		e.logger.Debug().
			Str("sessionId", st.sessionID).
			Int64("fragmentTimestamp", *f.StartTimestamp).
			Int64("baseTimestamp", merged.StartTimestamp).
			Msg("Merged fragment into open thread")
		return nil
	}

	// Supersede: re-write the open thread unchanged (a no-op beyond
	// re-stamping the write time), then open a new thread.
	if err := e.writeLine(ctx, st.open); err != nil {
		return err
	}
	e.metrics.RecordThreadFinalized(reasonSuperseded)

	line := models.NewLine(f)
	if err := e.writeLine(ctx, line); err != nil {
		// The old thread is finalized but the new one is not yet open;
		// the fragment is requeued by the caller and reopens it next
		// tick.
		st.clearThread()
		return err
	}
	st.commitWrite(line, now)
	e.metrics.RecordThreadOpened()
	return nil
}

// writeLine serializes and stores a line under its stable key, fully
// overwriting any previous record.
func (e *Engine) writeLine(ctx context.Context, line *models.Line) error {
	record, err := line.Encode()
	if err != nil {
		return err
	}
	key := store.LineKey(line.SessionID, line.SpeakerID, line.StartTimestamp)

	start := e.now()
	err = store.SetWithRetry(ctx, e.store, key, record)
	e.metrics.RecordStoreOp("set", err, e.now().Sub(start).Seconds())
	return err
}

// reapIdleSessions drops session state inactive beyond the TTL. The
// original system kept session state forever; the TTL bounds memory
// growth without changing merge semantics, since any open thread of a
// reapable session was already swept by the idle pass long before.
func (e *Engine) reapIdleSessions() {
	if e.cfg.SessionTTL <= 0 {
		return
	}
	now := e.now()
	for id, st := range e.sessions {
		if st.IdleFor(now) <= e.cfg.SessionTTL {
			continue
		}
		if st.HasOpenThread() {
			st.clearThread()
			e.metrics.RecordThreadFinalized(reasonReaped)
		}
		delete(e.sessions, id)
		e.metrics.RecordSessionReaped()
		e.logger.Info().Str("sessionId", id).Msg("Reaped idle session")
	}
}

// SessionCount returns the number of sessions with live merge state.
func (e *Engine) SessionCount() int {
	return len(e.sessions)
}
