package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"vigil/pkg/store"

	"github.com/spf13/cobra"
)

// exportSession is one anonymized session record in the research export.
// Session identifiers are replaced by truncated SHA-256 digests so exported
// data cannot be joined back to live sessions.
type exportSession struct {
	Session       string             `json:"session"`
	Status        string             `json:"status"`
	MaxLevel      int                `json:"max_level"`
	AvgScore      float64            `json:"avg_score"`
	Assessments   []exportAssessment `json:"assessments"`
	Interventions []exportIntervention `json:"interventions"`
}

type exportAssessment struct {
	Timestamp time.Time `json:"timestamp"`
	Score     int       `json:"score"`
	Factors   []string  `json:"factors"`
	Imminent  bool      `json:"imminent"`
	Level     int       `json:"level"`
}

type exportIntervention struct {
	Timestamp     time.Time `json:"timestamp"`
	Type          string    `json:"type"`
	TriggerLevel  int       `json:"trigger_level"`
	UserResponse  string    `json:"user_response,omitempty"`
	Effectiveness int       `json:"effectiveness_score,omitempty"`
}

// newExportCmd creates the "vigil export" subcommand.
func newExportCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export anonymized session data as JSON",
		Long:  "Writes the audit trail to stdout as JSON for research analysis.\nSession identifiers are anonymized; raw text never leaves the\ndatabase because it is never stored there.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}
			r, err := store.NewReader(paths.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			return writeExport(cmd, r, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "max sessions to export (0 = all)")

	return cmd
}

func writeExport(cmd *cobra.Command, r *store.Reader, limit int) error {
	ctx := cmd.Context()
	sessions, err := r.Sessions(ctx, limit)
	if err != nil {
		return err
	}

	out := make([]exportSession, 0, len(sessions))
	for _, s := range sessions {
		summary, err := r.SessionSummary(ctx, s.ID)
		if err != nil {
			return err
		}
		es := exportSession{
			Session:  anonymize(s.ID),
			Status:   string(s.Status),
			MaxLevel: int(summary.MaxLevel),
			AvgScore: summary.AvgScore,
		}

		assessments, err := r.Assessments(ctx, s.ID, 0)
		if err != nil {
			return err
		}
		for _, a := range assessments {
			es.Assessments = append(es.Assessments, exportAssessment{
				Timestamp: a.Timestamp,
				Score:     a.Score,
				Factors:   a.Factors,
				Imminent:  a.Imminent,
				Level:     int(a.LevelAfter),
			})
		}

		interventions, err := r.Interventions(ctx, s.ID)
		if err != nil {
			return err
		}
		for _, iv := range interventions {
			ei := exportIntervention{
				Timestamp:    iv.Timestamp,
				Type:         string(iv.Type),
				TriggerLevel: int(iv.TriggerLevel),
				UserResponse: iv.UserResponse,
			}
			if iv.Effectiveness >= 0 {
				ei.Effectiveness = iv.Effectiveness
			}
			es.Interventions = append(es.Interventions, ei)
		}

		out = append(out, es)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		ExportedAt time.Time       `json:"exported_at"`
		Sessions   []exportSession `json:"sessions"`
	}{time.Now().UTC(), out})
}

// anonymize replaces a session id with a stable truncated digest.
func anonymize(sessionID string) string {
	sum := sha256.Sum256([]byte(sessionID))
	return hex.EncodeToString(sum[:8])
}
