package notify

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"caption-merge-service/internal/store"
)

// Notifier drives the change-detection loop: per tick, for each viewer
// of each session, it diffs the store against that viewer's fingerprint
// cache and pushes changed lines through the hub. Caches are kept per
// connection, so a viewer joining a session after lines already exist
// receives every existing line on its first scan, within one tick.
// The store is the only channel between the merge engine and this layer;
// visibility of a merge write is bounded by one tick interval.
type Notifier struct {
	store  store.Store
	hub    *Hub
	tick   time.Duration
	logger zerolog.Logger

	// mu guards detectors: the tick loop and the admin clear handler
	// touch them from different goroutines.
	mu        sync.Mutex
	detectors map[*websocket.Conn]*Detector
}

// NewNotifier creates the fan-out loop.
func NewNotifier(s store.Store, hub *Hub, tick time.Duration, logger zerolog.Logger) *Notifier {
	if tick <= 0 {
		tick = 500 * time.Millisecond
	}
	return &Notifier{
		store:     s,
		hub:       hub,
		detectors: make(map[*websocket.Conn]*Detector),
		tick:      tick,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// Run executes the fan-out loop until the context is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info().Dur("tick", n.tick).Msg("Notifier running")
	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.logger.Info().Msg("Notifier stopped")
			return
		case <-ticker.C:
			n.Tick(ctx)
		}
	}
}

// Tick performs one change-detection pass over every connected viewer.
func (n *Notifier) Tick(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	live := make(map[*websocket.Conn]bool)
	for _, sessionID := range n.hub.SessionsWithViewers() {
		for _, conn := range n.hub.Viewers(sessionID) {
			live[conn] = true

			detector := n.detectors[conn]
			if detector == nil {
				// Fresh cache: the first scan delivers the session's
				// entire current state to this viewer.
				detector = NewDetector(n.store, sessionID)
				n.detectors[conn] = detector
			}

			updated, err := detector.Diff(ctx)
			if err != nil {
				n.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Change detection failed")
				continue
			}
			n.hub.Send(sessionID, conn, updated)
		}
	}

	// Drop fingerprint caches of viewers that disconnected.
	for conn := range n.detectors {
		if !live[conn] {
			delete(n.detectors, conn)
		}
	}
}

// Reset discards every fingerprint cache. Called after an administrative
// clear so re-created lines are pushed fresh.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.detectors = make(map[*websocket.Conn]*Detector)
}
