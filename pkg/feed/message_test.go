package feed

import (
	"strings"
	"testing"
	"time"
)

func TestDecode_ValidText(t *testing.T) {
	t.Parallel()

	line := `{"type":"TEXT","text":{"session_id":"s1","timestamp":"2025-03-01T10:00:00Z","text":"hello","sentiment_score":-0.4}}`
	msg, err := Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.Type != MsgText || msg.Text.SessionID != "s1" || msg.Text.Sentiment != -0.4 {
		t.Errorf("msg = %+v", msg)
	}
	want := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	if !msg.Text.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v", msg.Text.Timestamp)
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	t.Parallel()

	if _, err := Decode([]byte(`{"type":"TEXT"`)); err == nil {
		t.Error("truncated JSON accepted")
	}
}

func TestDecode_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"type":"SHUTDOWN"}`))
	if err == nil || !strings.Contains(err.Error(), "unknown message type") {
		t.Errorf("err = %v", err)
	}
}

func TestValidate_PayloadMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
	}{
		{"text without payload", `{"type":"TEXT"}`},
		{"text without session", `{"type":"TEXT","text":{"text":"hi"}}`},
		{"emotion without payload", `{"type":"EMOTION"}`},
		{"feedback without id", `{"type":"FEEDBACK","feedback":{"user_response":"accepted"}}`},
		{"resolve without session", `{"type":"RESOLVE","resolve":{}}`},
		{"close without session", `{"type":"CLOSE","close":{}}`},
	}
	for _, tt := range tests {
		if _, err := Decode([]byte(tt.line)); err == nil {
			t.Errorf("%s: accepted", tt.name)
		}
	}
}

func TestValidate_OpenWithoutSessionIsFine(t *testing.T) {
	t.Parallel()

	// OPEN may omit session_id; the engine mints one.
	if _, err := Decode([]byte(`{"type":"OPEN","open":{}}`)); err != nil {
		t.Errorf("open without session rejected: %v", err)
	}
}
