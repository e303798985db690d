// Package http provides the public HTTP surface: liveness, the live
// transcript websocket endpoint, and the administrative clear.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"caption-merge-service/internal/notify"
	"caption-merge-service/internal/observability/metrics"
	"caption-merge-service/internal/store"
)

var upgrader = websocket.Upgrader{
	// Viewers connect from browser frontends on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(s store.Store, hub *notify.Hub, notifier *notify.Notifier) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Liveness check
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	})

	// Live transcript feed, one connection per viewer, scoped to a
	// session. The server only pushes; no client payload is read beyond
	// close detection.
	r.Get("/ws/transcript/{sessionID}", transcriptHandler(hub))

	// Administrative clear: deletes every pipeline-owned key and
	// broadcasts the clear control message to all sessions.
	r.Get("/admin/clear-translations", clearHandler(s, hub, notifier))

	return r
}

func transcriptHandler(hub *notify.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("sessionId", sessionID).Msg("Websocket upgrade failed")
			return
		}

		hub.Register(sessionID, conn)

		// Block on the read side to detect protocol-level close; send
		// failures are detected independently by the hub.
		go func() {
			defer hub.Unregister(sessionID, conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func clearHandler(s store.Store, hub *notify.Hub, notifier *notify.Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := s.Scan(r.Context(), store.RootPrefix)
		if err != nil {
			log.Error().Err(err).Msg("Clear scan failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "scan failed"})
			return
		}

		deleted := make([]string, 0, len(keys))
		for _, key := range keys {
			if err := s.Delete(r.Context(), key); err != nil {
				log.Error().Err(err).Str("key", key).Msg("Clear delete failed")
				continue
			}
			deleted = append(deleted, key)
		}

		notifier.Reset()
		hub.BroadcastControl(notify.ClearMessage)
		metrics.DefaultMetrics.RecordClear()

		log.Info().Int("count", len(deleted)).Msg("Cleared stored lines")
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "cleared",
			"deleted": deleted,
			"count":   len(deleted),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
