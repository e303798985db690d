package store

import "testing"

func TestLineKey(t *testing.T) {
	key := LineKey("sess-1", "speaker-a", 1000)
	want := "caption:line:sess-1:speaker-a:1000"
	if key != want {
		t.Errorf("LineKey() = %q, want %q", key, want)
	}
}

func TestLineKey_UnderRootPrefix(t *testing.T) {
	key := LineKey("s", "a", 1)
	if len(key) < len(RootPrefix) || key[:len(RootPrefix)] != RootPrefix {
		t.Errorf("line key %q not under root prefix %q", key, RootPrefix)
	}
}

func TestSessionPrefix_CoversLineKeys(t *testing.T) {
	prefix := SessionPrefix("sess-1")
	key := LineKey("sess-1", "speaker-a", 1000)
	if key[:len(prefix)] != prefix {
		t.Errorf("key %q not under session prefix %q", key, prefix)
	}

	// A session id sharing a prefix must not match.
	other := LineKey("sess-10", "speaker-a", 1000)
	if other[:len(prefix)] == prefix {
		t.Errorf("key %q must not match prefix %q", other, prefix)
	}
}

func TestParseLineKey(t *testing.T) {
	session, speaker, ts, err := ParseLineKey("caption:line:sess-1:speaker-a:1000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session != "sess-1" || speaker != "speaker-a" || ts != 1000 {
		t.Errorf("ParseLineKey() = (%q, %q, %d)", session, speaker, ts)
	}
}

func TestParseLineKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"wrong prefix", "other:line:s:a:1"},
		{"too few parts", "caption:line:s:a"},
		{"bad timestamp", "caption:line:s:a:xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := ParseLineKey(tt.key); err == nil {
				t.Error("expected error")
			}
		})
	}
}
