// feedclient pushes sample fragments onto the upstream Redis list,
// simulating the transcription/translation workers. Useful for manual
// end-to-end testing against a running service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type fragment struct {
	SessionID      string `json:"session_id"`
	SpeakerID      string `json:"speaker_id"`
	Language       string `json:"language"`
	StartTimestamp int64  `json:"start_timestamp"`
	Text           string `json:"text"`
	Translation    string `json:"translation"`
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address")
	listKey := flag.String("list", "caption:unmerged", "Upstream fragment list key")
	sessionID := flag.String("session", "demo-"+time.Now().Format("150405"), "Session ID")
	flag.Parse()

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis connect failed: %v", err)
	}

	fragments := []fragment{
		{SpeakerID: "speaker-a", Language: "en", StartTimestamp: 1000, Text: "Hello", Translation: "Hola"},
		{SpeakerID: "speaker-a", Language: "en", StartTimestamp: 5000, Text: "world", Translation: "mundo"},
		{SpeakerID: "speaker-b", Language: "en", StartTimestamp: 6000, Text: "Hi", Translation: "Hola"},
	}

	for _, f := range fragments {
		f.SessionID = *sessionID
		payload, err := json.Marshal(f)
		if err != nil {
			log.Fatalf("marshal failed: %v", err)
		}
		if err := client.RPush(ctx, *listKey, payload).Err(); err != nil {
			log.Fatalf("rpush failed: %v", err)
		}
		log.Printf("Pushed fragment: speaker=%s ts=%d text=%q", f.SpeakerID, f.StartTimestamp, f.Text)
		time.Sleep(200 * time.Millisecond)
	}

	log.Printf("Done. Watch ws://localhost:8006/ws/transcript/%s", *sessionID)
}
