package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"vigil/pkg/dispatch"
	"vigil/pkg/escalation"
)

// fileNotifier hands notifications to the user-facing layer by appending
// line-delimited JSON to a well-known file the UI tails. Emergency-protocol
// notifications are additionally logged at error level so they never hide in
// a file nobody is watching.
type fileNotifier struct {
	mu   sync.Mutex
	path string
	log  *slog.Logger
}

func newFileNotifier(path string, log *slog.Logger) *fileNotifier {
	return &fileNotifier{path: path, log: log}
}

func (n *fileNotifier) Notify(_ context.Context, note dispatch.Notification) error {
	line, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open notification feed: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}

	if note.Type == escalation.EmergencyProtocol {
		n.log.Error("emergency protocol notification",
			"session", note.SessionID, "level", note.TriggerLevel)
	}
	return nil
}
