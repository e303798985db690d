package ingest

import (
	"testing"

	"caption-merge-service/internal/models"
)

func fragment(session, speaker string, ts int64, text string) *models.Fragment {
	translation := text + "-t"
	return &models.Fragment{
		SessionID:      session,
		SpeakerID:      speaker,
		Language:       "en",
		StartTimestamp: &ts,
		Text:           &text,
		Translation:    &translation,
	}
}

func TestBuffer_PushDrain(t *testing.T) {
	b := NewBuffer()
	b.Push(fragment("s1", "a", 1000, "one"))
	b.Push(fragment("s1", "a", 2000, "two"))
	b.Push(fragment("s2", "b", 3000, "three"))

	batch := b.Drain("s1")
	if len(batch) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(batch))
	}
	if *batch[0].Text != "one" || *batch[1].Text != "two" {
		t.Errorf("arrival order not preserved: %q, %q", *batch[0].Text, *batch[1].Text)
	}

	// Drain is atomic: nothing left for s1, s2 untouched.
	if got := b.Drain("s1"); got != nil {
		t.Errorf("expected empty second drain, got %d fragments", len(got))
	}
	if b.Len("s2") != 1 {
		t.Errorf("expected s2 untouched, got %d", b.Len("s2"))
	}
}

func TestBuffer_DrainEmpty(t *testing.T) {
	b := NewBuffer()
	if got := b.Drain("absent"); got != nil {
		t.Errorf("expected nil for unknown session, got %v", got)
	}
}

func TestBuffer_Sessions(t *testing.T) {
	b := NewBuffer()
	b.Push(fragment("s1", "a", 1, "x"))
	b.Push(fragment("s2", "a", 2, "y"))

	sessions := b.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %v", sessions)
	}

	b.Drain("s1")
	b.Drain("s2")
	if len(b.Sessions()) != 0 {
		t.Errorf("expected no sessions after drain, got %v", b.Sessions())
	}
}

func TestBuffer_Requeue(t *testing.T) {
	b := NewBuffer()
	b.Push(fragment("s1", "a", 1000, "one"))
	b.Push(fragment("s1", "a", 2000, "two"))

	batch := b.Drain("s1")

	// New arrival while the batch was out.
	b.Push(fragment("s1", "a", 3000, "three"))

	// Requeue the unprocessed tail ahead of the new arrival.
	b.Requeue("s1", batch[1:])

	redrained := b.Drain("s1")
	if len(redrained) != 2 {
		t.Fatalf("expected 2 fragments, got %d", len(redrained))
	}
	if *redrained[0].Text != "two" || *redrained[1].Text != "three" {
		t.Errorf("requeued fragments must come first: %q, %q", *redrained[0].Text, *redrained[1].Text)
	}
}

func TestBuffer_RequeueEmpty(t *testing.T) {
	b := NewBuffer()
	b.Requeue("s1", nil)
	if len(b.Sessions()) != 0 {
		t.Errorf("empty requeue must not create a session entry")
	}
}
