package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"vigil/pkg/dispatch"
	"vigil/pkg/engine"
	"vigil/pkg/risk"
	"vigil/pkg/store"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// transcript is a recorded session for offline replay.
type transcript struct {
	Session string            `yaml:"session"`
	Events  []transcriptEvent `yaml:"events"`
}

// transcriptEvent is one input: either a text message (Text set) or an
// emotion sample (Emotion set).
type transcriptEvent struct {
	At         time.Time `yaml:"at"`
	Text       string    `yaml:"text"`
	Sentiment  float64   `yaml:"sentiment"`
	Emotion    string    `yaml:"emotion"`
	Confidence float64   `yaml:"confidence"`
	Face       *bool     `yaml:"face"`
}

// newReplayCmd creates the "vigil replay" subcommand. Replay runs a recorded
// transcript through a fresh in-memory engine; identical transcripts always
// produce identical assessment sequences, which makes it the review tool for
// incident analysis and threshold tuning.
func newReplayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "replay <transcript.yaml>",
		Short: "Replay a recorded transcript through a fresh engine",
		Long:  "Reads a YAML transcript of text and emotion events and runs it\nthrough an in-memory engine, printing every assessment and\nintervention. Replay is deterministic: the same transcript always\nyields the same sequence.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file with threshold overrides")

	return cmd
}

func runReplay(cmd *cobra.Command, path, configPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	var tr transcript
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return fmt.Errorf("parse transcript %s: %w", path, err)
	}
	if len(tr.Events) == 0 {
		return fmt.Errorf("transcript %s has no events", path)
	}

	cfg, err := engine.Load(configPath)
	if err != nil {
		return err
	}
	lex, err := cfg.Lexicon()
	if err != nil {
		return err
	}

	db, err := openDB(":memory:")
	if err != nil {
		return err
	}
	// A pooled in-memory database is one database per connection.
	db.SetMaxOpenConns(1)
	defer func() { _ = db.Close() }()

	st, err := store.New(db)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	notifier := &collectNotifier{}
	disp := dispatch.New(cfg.DispatchRuntimeConfig(), st, notifier, dispatch.DefaultCatalog(), quiet)
	eng := engine.New(cfg, lex, st, disp, quiet)

	ctx := cmd.Context()
	sessionID, err := eng.OpenSession(ctx, tr.Session)
	if err != nil {
		return err
	}

	for i, ev := range tr.Events {
		var a risk.Assessment
		switch {
		case ev.Text != "":
			a, _, err = eng.SubmitText(ctx, sessionID, ev.At, ev.Text, ev.Sentiment, nil)
		case ev.Emotion != "":
			face := true
			if ev.Face != nil {
				face = *ev.Face
			}
			a, _, err = eng.SubmitEmotion(ctx, risk.EmotionSample{
				SessionID:    sessionID,
				Timestamp:    ev.At,
				Emotion:      ev.Emotion,
				Confidence:   ev.Confidence,
				FaceDetected: face,
			})
		default:
			return fmt.Errorf("transcript event %d has neither text nor emotion", i+1)
		}
		if err != nil {
			return fmt.Errorf("event %d: %w", i+1, err)
		}
		fmt.Fprintf(out, "%s  score=%-2d level=%d  %s\n",
			ev.At.Format(time.RFC3339), a.Score,
			a.EscalationLevelAfter,
			strings.Join(a.Factors, "; "))

		// Drain async dispatches so intervention lines land under the
		// event that triggered them, in a stable order.
		disp.Wait()
		for _, note := range notifier.drain() {
			fmt.Fprintf(out, "  -> intervention %s (trigger level %d)\n", note.Type, note.TriggerLevel)
		}
	}

	return nil
}

// collectNotifier buffers replay notifications so the command can print them
// deterministically between events.
type collectNotifier struct {
	mu    sync.Mutex
	notes []dispatch.Notification
}

func (n *collectNotifier) Notify(_ context.Context, note dispatch.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

func (n *collectNotifier) drain() []dispatch.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.notes
	n.notes = nil
	return out
}
