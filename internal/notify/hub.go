package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"caption-merge-service/internal/observability/metrics"
)

// ClearMessage is the control message broadcast after an administrative
// clear. Clients must discard all local state on receipt; it is the only
// way a removal is ever communicated.
var ClearMessage = []byte(`{"type":"clear"}`)

// viewer is one live connection. Writes to the underlying websocket are
// serialized through mu; gorilla supports at most one concurrent writer.
type viewer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub manages live viewer connections per session. The hub lock only
// guards the connection sets; websocket writes happen outside it, so a
// stalled viewer delays neither other viewers nor Register. A send
// failure to one connection drops that connection and delivery continues
// to the rest.
type Hub struct {
	mu           sync.Mutex
	sessions     map[string]map[*websocket.Conn]*viewer
	writeTimeout time.Duration
	metrics      *metrics.Metrics
}

// NewHub creates an empty hub. writeTimeout bounds each send so a
// non-responsive but not-yet-closed connection cannot stall the fan-out.
func NewHub(writeTimeout time.Duration) *Hub {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Hub{
		sessions:     make(map[string]map[*websocket.Conn]*viewer),
		writeTimeout: writeTimeout,
		metrics:      metrics.DefaultMetrics,
	}
}

// Register adds a viewer connection to a session's set.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*websocket.Conn]*viewer)
	}
	h.sessions[sessionID][conn] = &viewer{conn: conn}
	h.metrics.RecordViewerConnected()
	log.Info().
		Str("sessionId", sessionID).
		Int("viewers", len(h.sessions[sessionID])).
		Msg("Viewer connected")
}

// Unregister removes a viewer connection and closes it.
func (h *Hub) Unregister(sessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.removeLocked(sessionID, conn)
	remaining := len(h.sessions[sessionID])
	h.mu.Unlock()
	log.Info().
		Str("sessionId", sessionID).
		Int("viewers", remaining).
		Msg("Viewer disconnected")
}

func (h *Hub) removeLocked(sessionID string, conn *websocket.Conn) {
	set := h.sessions[sessionID]
	v, ok := set[conn]
	if !ok {
		return
	}
	delete(set, conn)
	v.conn.Close()
	h.metrics.RecordViewerDisconnected()
	if len(set) == 0 {
		delete(h.sessions, sessionID)
	}
}

// ViewerCount returns the number of connected viewers for a session.
func (h *Hub) ViewerCount(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// SessionsWithViewers returns every session id with at least one
// connected viewer.
func (h *Hub) SessionsWithViewers() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Viewers returns a snapshot of the session's connections.
func (h *Hub) Viewers(sessionID string) []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.sessions[sessionID]))
	for conn := range h.sessions[sessionID] {
		conns = append(conns, conn)
	}
	return conns
}

// Send pushes each payload as an individual message to one viewer. A
// failed or timed-out send drops that connection from the set; other
// viewers are unaffected. Returns false when the viewer was dropped or
// is already gone.
func (h *Hub) Send(sessionID string, conn *websocket.Conn, payloads [][]byte) bool {
	if len(payloads) == 0 {
		return true
	}
	h.mu.Lock()
	v := h.sessions[sessionID][conn]
	h.mu.Unlock()
	if v == nil {
		return false
	}

	if err := h.writeAll(v, payloads); err != nil {
		log.Warn().
			Err(err).
			Str("sessionId", sessionID).
			Msg("Dropping viewer on send failure")
		h.metrics.RecordSendFailure()
		h.mu.Lock()
		h.removeLocked(sessionID, conn)
		h.mu.Unlock()
		return false
	}
	return true
}

func (h *Hub) writeAll(v *viewer, payloads [][]byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, payload := range payloads {
		v.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := v.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
		h.metrics.RecordLinePushed()
	}
	return nil
}

// Broadcast pushes each payload to every connected viewer of the
// session.
func (h *Hub) Broadcast(sessionID string, payloads [][]byte) {
	if len(payloads) == 0 {
		return
	}
	for _, conn := range h.Viewers(sessionID) {
		h.Send(sessionID, conn, payloads)
	}
}

// BroadcastControl sends a control message to every viewer in every
// session.
func (h *Hub) BroadcastControl(message []byte) {
	for _, sessionID := range h.SessionsWithViewers() {
		h.Broadcast(sessionID, [][]byte{message})
	}
}

// CloseAll closes every connection. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, set := range h.sessions {
		for _, v := range set {
			v.conn.Close()
			h.metrics.RecordViewerDisconnected()
		}
		delete(h.sessions, sessionID)
	}
}
