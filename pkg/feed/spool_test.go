package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func afterSpool() time.Time {
	return time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
}

func TestSpool_SweepIngestsAndMarksDone(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	id := srv.Handle(ctx, Message{Type: MsgOpen, Open: &OpenPayload{SessionID: "s1"}}).Ack.SessionID

	dir := t.TempDir()
	content := `{"type":"TEXT","text":{"session_id":"` + id + `","timestamp":"2025-03-01T10:00:00Z","text":"I feel hopeless"}}
{"type":"TEXT","text":{"session_id":"` + id + `","timestamp":"2025-03-01T10:00:05Z","text":"still struggling"}}
`
	path := filepath.Join(dir, "drop.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sp := NewSpool(dir, srv, nil)
	sp.Sweep(ctx)

	// File consumed and renamed.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("spool file still present: %v", err)
	}
	if _, err := os.Stat(path + ".done"); err != nil {
		t.Errorf("done marker missing: %v", err)
	}

	// The messages reached the engine.
	reply := srv.Handle(ctx, Message{Type: MsgText, Text: &TextPayload{
		SessionID: id, Timestamp: afterSpool(), Text: "checking in",
	}})
	if reply.Ack.Level != 1 {
		t.Errorf("level after spool ingest = %d, want 1", reply.Ack.Level)
	}
}

func TestSpool_PoisonLineDoesNotWedge(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	id := srv.Handle(ctx, Message{Type: MsgOpen, Open: &OpenPayload{SessionID: "s1"}}).Ack.SessionID

	dir := t.TempDir()
	content := `this is not json
{"type":"TEXT","text":{"session_id":"` + id + `","timestamp":"2025-03-01T10:00:00Z","text":"I feel hopeless"}}
`
	path := filepath.Join(dir, "drop.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sp := NewSpool(dir, srv, nil)
	sp.Sweep(ctx)

	// The bad line is skipped, the good one applied, the file consumed.
	if _, err := os.Stat(path + ".done"); err != nil {
		t.Errorf("poison line wedged the spool: %v", err)
	}
	reply := srv.Handle(ctx, Message{Type: MsgText, Text: &TextPayload{
		SessionID: id, Timestamp: afterSpool(), Text: "checking in",
	}})
	if reply.Ack.Level != 1 {
		t.Errorf("level = %d, want 1 from the good line", reply.Ack.Level)
	}
}

func TestSpool_FilesInNameOrder(t *testing.T) {
	srv, _ := setupTestServer(t)
	ctx := context.Background()

	id := srv.Handle(ctx, Message{Type: MsgOpen, Open: &OpenPayload{SessionID: "s1"}}).Ack.SessionID

	dir := t.TempDir()
	// Strict timestamp ordering across the two files only holds if they
	// replay in name order.
	older := `{"type":"TEXT","text":{"session_id":"` + id + `","timestamp":"2025-03-01T10:00:00Z","text":"hello"}}` + "\n"
	newer := `{"type":"TEXT","text":{"session_id":"` + id + `","timestamp":"2025-03-01T10:05:00Z","text":"hello again"}}` + "\n"
	if err := os.WriteFile(filepath.Join(dir, "01.jsonl"), []byte(older), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "02.jsonl"), []byte(newer), 0o644); err != nil {
		t.Fatal(err)
	}

	sp := NewSpool(dir, srv, nil)
	sp.Sweep(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".done" {
			t.Errorf("unconsumed spool entry %q", e.Name())
		}
	}
}
