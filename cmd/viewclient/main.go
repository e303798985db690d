// viewclient connects to the live transcript websocket for a session
// and prints every pushed line and control message.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
)

func main() {
	server := flag.String("server", "localhost:8006", "Service address")
	sessionID := flag.String("session", "", "Session ID to watch")
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("missing -session")
	}

	url := "ws://" + *server + "/ws/transcript/" + *sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("dial %s failed: %v", url, err)
	}
	defer conn.Close()

	log.Printf("Watching session %s", *sessionID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("read error: %v", err)
				return
			}
			log.Printf("%s", message)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}
