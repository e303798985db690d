package notify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFixture runs a websocket server that registers every connection with
// the hub under the session named in the query string.
type wsFixture struct {
	server      *httptest.Server
	hub         *Hub
	serverConns chan *websocket.Conn
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	f := &wsFixture{
		hub:         NewHub(time.Second),
		serverConns: make(chan *websocket.Conn, 8),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		f.hub.Register(r.URL.Query().Get("session"), conn)
		f.serverConns <- conn
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, sessionID string) (client, server *websocket.Conn) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?session=" + sessionID
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-f.serverConns:
	case <-time.After(time.Second):
		t.Fatal("server connection not registered")
	}
	return client, server
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(message)
}

func TestHub_BroadcastToSessionViewers(t *testing.T) {
	f := newWSFixture(t)
	client1, _ := f.dial(t, "s1")
	client2, _ := f.dial(t, "s1")

	f.hub.Broadcast("s1", [][]byte{[]byte("line-1"), []byte("line-2")})

	for _, client := range []*websocket.Conn{client1, client2} {
		if got := readMessage(t, client); got != "line-1" {
			t.Errorf("first message = %q, want %q", got, "line-1")
		}
		if got := readMessage(t, client); got != "line-2" {
			t.Errorf("second message = %q, want %q", got, "line-2")
		}
	}
}

func TestHub_BroadcastScopedToSession(t *testing.T) {
	f := newWSFixture(t)
	_, _ = f.dial(t, "s1")
	client2, _ := f.dial(t, "s2")

	f.hub.Broadcast("s1", [][]byte{[]byte("only-s1")})

	client2.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := client2.ReadMessage(); err == nil {
		t.Error("s2 viewer must not receive s1 lines")
	}
}

func TestHub_SendFailureIsolated(t *testing.T) {
	f := newWSFixture(t)
	healthy, _ := f.dial(t, "s1")
	_, failedServer := f.dial(t, "s1")

	// Kill one server-side connection so its next write errors.
	failedServer.Close()

	f.hub.Broadcast("s1", [][]byte{[]byte("after-failure")})

	if got := readMessage(t, healthy); got != "after-failure" {
		t.Errorf("healthy viewer message = %q", got)
	}
	if got := f.hub.ViewerCount("s1"); got != 1 {
		t.Errorf("expected failing viewer dropped, count = %d", got)
	}
}

func TestHub_BroadcastControlReachesAllSessions(t *testing.T) {
	f := newWSFixture(t)
	client1, _ := f.dial(t, "s1")
	client2, _ := f.dial(t, "s2")

	f.hub.BroadcastControl(ClearMessage)

	if got := readMessage(t, client1); got != `{"type":"clear"}` {
		t.Errorf("s1 control = %q", got)
	}
	if got := readMessage(t, client2); got != `{"type":"clear"}` {
		t.Errorf("s2 control = %q", got)
	}
}

func TestHub_Unregister(t *testing.T) {
	f := newWSFixture(t)
	_, server := f.dial(t, "s1")

	f.hub.Unregister("s1", server)
	if got := f.hub.ViewerCount("s1"); got != 0 {
		t.Errorf("expected 0 viewers, got %d", got)
	}
	if got := len(f.hub.SessionsWithViewers()); got != 0 {
		t.Errorf("expected no watched sessions, got %d", got)
	}
}

func TestHub_EmptyBroadcastIsNoop(t *testing.T) {
	f := newWSFixture(t)
	client, _ := f.dial(t, "s1")

	f.hub.Broadcast("s1", nil)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := client.ReadMessage(); err == nil {
		t.Error("expected no message for empty broadcast")
	}
}
