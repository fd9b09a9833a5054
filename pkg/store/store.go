package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"vigil/pkg/dispatch"
	"vigil/pkg/escalation"
	"vigil/pkg/risk"
	"vigil/pkg/safetyplan"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store is the append-only writer over the audit database. It implements
// dispatch.Recorder. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// New creates a Store backed by the given SQLite database and initializes
// the schema.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(context.Background(), SchemaDDL); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// FeedbackStateError reports a feedback write that would violate the
// write-once rule or reference a missing intervention.
type FeedbackStateError struct {
	InterventionID int64
}

func (e *FeedbackStateError) Error() string {
	return fmt.Sprintf("intervention %d: feedback missing or already recorded", e.InterventionID)
}

// CreateSession inserts the session row.
func (s *Store) CreateSession(ctx context.Context, sess escalation.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, escalation_level, created_at) VALUES (?, ?, ?, ?)`,
		sess.ID, string(sess.Status), int(sess.EscalationLevel), ts(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

// CloseSession archives the session with its final status.
func (s *Store) CloseSession(ctx context.Context, id string, status escalation.SessionStatus, closedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, closed_at = ? WHERE session_id = ?`,
		string(status), ts(closedAt), id)
	if err != nil {
		return fmt.Errorf("close session %s: %w", id, err)
	}
	return nil
}

// UpdateSessionLevel sets the session's current level outside the normal
// assessment path. Used by the resolve transition, which is not an
// assessment.
func (s *Store) UpdateSessionLevel(ctx context.Context, id string, level escalation.Level) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET escalation_level = ? WHERE session_id = ?`, int(level), id)
	if err != nil {
		return fmt.Errorf("update session level %s: %w", id, err)
	}
	return nil
}

// AppendAssessment writes one assessment row and brings the session's
// current level along with it. Assessments are never updated or deleted
// while a session is active.
func (s *Store) AppendAssessment(ctx context.Context, a risk.Assessment) error {
	factors, err := json.Marshal(a.Factors)
	if err != nil {
		return fmt.Errorf("marshal factors: %w", err)
	}
	caveats, err := json.Marshal(a.Caveats)
	if err != nil {
		return fmt.Errorf("marshal caveats: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO risk_assessments (session_id, timestamp, score, factors, caveats, imminent, escalation_level_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.SessionID, ts(a.Timestamp), a.Score, string(factors), string(caveats), boolInt(a.Imminent), a.EscalationLevelAfter)
	if err != nil {
		return fmt.Errorf("append assessment for %s: %w", a.SessionID, err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET escalation_level = ? WHERE session_id = ?`,
		a.EscalationLevelAfter, a.SessionID)
	if err != nil {
		return fmt.Errorf("update session level for %s: %w", a.SessionID, err)
	}
	return tx.Commit()
}

// AppendIntervention writes one intervention row and fills iv.ID.
// Implements dispatch.Recorder.
func (s *Store) AppendIntervention(ctx context.Context, iv *dispatch.Intervention) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interventions (session_id, timestamp, intervention_type, trigger_level, payload)
		 VALUES (?, ?, ?, ?, ?)`,
		iv.SessionID, ts(iv.Timestamp), string(iv.Type), int(iv.TriggerLevel), iv.Payload)
	if err != nil {
		return fmt.Errorf("append intervention for %s: %w", iv.SessionID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("intervention id: %w", err)
	}
	iv.ID = id
	return nil
}

// SetInterventionFeedback records the user response and effectiveness score
// for a dispatched intervention, exactly once. A second write, or a write
// against an unknown intervention, returns FeedbackStateError.
func (s *Store) SetInterventionFeedback(ctx context.Context, interventionID int64, userResponse string, effectiveness int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interventions SET user_response = ?, effectiveness_score = ?
		 WHERE id = ? AND user_response IS NULL AND effectiveness_score IS NULL`,
		userResponse, effectiveness, interventionID)
	if err != nil {
		return fmt.Errorf("intervention feedback %d: %w", interventionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("intervention feedback %d: %w", interventionID, err)
	}
	if n == 0 {
		return &FeedbackStateError{InterventionID: interventionID}
	}
	return nil
}

// InterventionSession returns the owning session and type of an
// intervention, for feedback routing.
func (s *Store) InterventionSession(ctx context.Context, interventionID int64) (sessionID string, typ escalation.InterventionType, err error) {
	var t string
	err = s.db.QueryRowContext(ctx,
		`SELECT session_id, intervention_type FROM interventions WHERE id = ?`, interventionID).
		Scan(&sessionID, &t)
	if err == sql.ErrNoRows {
		return "", "", &FeedbackStateError{InterventionID: interventionID}
	}
	if err != nil {
		return "", "", fmt.Errorf("lookup intervention %d: %w", interventionID, err)
	}
	return sessionID, escalation.InterventionType(t), nil
}

// AppendSafetyPlan writes one safety plan row. Plans are append-only: a new
// plan supersedes without overwriting.
func (s *Store) AppendSafetyPlan(ctx context.Context, p safetyplan.Plan) error {
	cols := make([]string, 0, 5)
	for _, field := range [][]string{p.WarningSigns, p.CopingStrategies, p.SupportContacts, p.ProfessionalContacts, p.ReasonsToLive} {
		data, err := json.Marshal(field)
		if err != nil {
			return fmt.Errorf("marshal plan field: %w", err)
		}
		cols = append(cols, string(data))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO safety_plans (session_id, created_at, warning_signs, coping_strategies, support_contacts, professional_contacts, reasons_to_live)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.SessionID, ts(p.CreatedAt), cols[0], cols[1], cols[2], cols[3], cols[4])
	if err != nil {
		return fmt.Errorf("append safety plan for %s: %w", p.SessionID, err)
	}
	return nil
}

// HasSafetyPlan reports whether any plan exists for the session.
func (s *Store) HasSafetyPlan(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM safety_plans WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count safety plans for %s: %w", sessionID, err)
	}
	return n > 0, nil
}

// AppendEvent writes one engine event log row.
func (s *Store) AppendEvent(ctx context.Context, typ, sessionID, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (type, session_id, detail) VALUES (?, ?, ?)`,
		typ, sessionID, detail)
	if err != nil {
		return fmt.Errorf("append event %s: %w", typ, err)
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
