package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"vigil/pkg/escalation"
	"vigil/pkg/safetyplan"

	_ "modernc.org/sqlite" // SQLite driver
)

// Reader provides read-only access to the audit database for the CLI and
// export tooling. It opens its own connection so queries never block the
// engine's writer.
type Reader struct {
	db *sql.DB
}

// NewReader opens the audit database in read-only mode with WAL. Returns an
// error if the database does not exist.
func NewReader(dbPath string) (*Reader, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?mode=ro&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db read-only: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit db: %w", err)
	}
	return &Reader{db: db}, nil
}

// NewReaderFromDB wraps an existing handle (for tests).
func NewReaderFromDB(db *sql.DB) *Reader { return &Reader{db: db} }

// Close releases the read connection.
func (r *Reader) Close() error { return r.db.Close() }

// SessionRow is one row of the sessions table.
type SessionRow struct {
	ID        string
	Status    escalation.SessionStatus
	Level     escalation.Level
	CreatedAt time.Time
	ClosedAt  time.Time // zero while active
}

// Sessions lists sessions newest-first.
func (r *Reader) Sessions(ctx context.Context, limit int) ([]SessionRow, error) {
	q := `SELECT session_id, status, escalation_level, created_at, COALESCE(closed_at, '') FROM sessions ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var (
			s        SessionRow
			status   string
			level    int
			created  string
			closedAt string
		)
		if err := rows.Scan(&s.ID, &status, &level, &created, &closedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Status = escalation.SessionStatus(status)
		s.Level = escalation.Level(level)
		s.CreatedAt = parseTS(created)
		s.ClosedAt = parseTS(closedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// AssessmentRow is one row of the risk_assessments audit trail.
type AssessmentRow struct {
	ID         int64
	SessionID  string
	Timestamp  time.Time
	Score      int
	Factors    []string
	Caveats    []string
	Imminent   bool
	LevelAfter escalation.Level
}

// Assessments returns the assessment history for a session in applied order.
func (r *Reader) Assessments(ctx context.Context, sessionID string, limit int) ([]AssessmentRow, error) {
	q := `SELECT id, session_id, timestamp, score, factors, caveats, imminent, escalation_level_after
	      FROM risk_assessments WHERE session_id = ? ORDER BY id`
	args := []any{sessionID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AssessmentRow
	for rows.Next() {
		var (
			a                    AssessmentRow
			tsStr, facts, cavs   string
			imminent, levelAfter int
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &tsStr, &a.Score, &facts, &cavs, &imminent, &levelAfter); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Timestamp = parseTS(tsStr)
		a.Imminent = imminent != 0
		a.LevelAfter = escalation.Level(levelAfter)
		_ = json.Unmarshal([]byte(facts), &a.Factors)
		_ = json.Unmarshal([]byte(cavs), &a.Caveats)
		out = append(out, a)
	}
	return out, rows.Err()
}

// InterventionRow is one row of the interventions table.
type InterventionRow struct {
	ID            int64
	SessionID     string
	Timestamp     time.Time
	Type          escalation.InterventionType
	TriggerLevel  escalation.Level
	UserResponse  string // empty until feedback
	Effectiveness int    // -1 until feedback
}

// Interventions returns the intervention history for a session.
func (r *Reader) Interventions(ctx context.Context, sessionID string) ([]InterventionRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, timestamp, intervention_type, trigger_level,
		        COALESCE(user_response, ''), COALESCE(effectiveness_score, -1)
		 FROM interventions WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query interventions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []InterventionRow
	for rows.Next() {
		var (
			iv         InterventionRow
			tsStr, typ string
			level      int
		)
		if err := rows.Scan(&iv.ID, &iv.SessionID, &tsStr, &typ, &level, &iv.UserResponse, &iv.Effectiveness); err != nil {
			return nil, fmt.Errorf("scan intervention: %w", err)
		}
		iv.Timestamp = parseTS(tsStr)
		iv.Type = escalation.InterventionType(typ)
		iv.TriggerLevel = escalation.Level(level)
		out = append(out, iv)
	}
	return out, rows.Err()
}

// Summary aggregates a session's audit trail for status display: peak and
// average level, intervention count, and the recent risk trend.
type Summary struct {
	SessionID         string
	Status            escalation.SessionStatus
	CurrentLevel      escalation.Level
	MaxLevel          escalation.Level
	AvgScore          float64
	AssessmentCount   int
	InterventionCount int
	Trend             string // rising | falling | stable
}

// SessionSummary computes the monitoring summary for one session.
func (r *Reader) SessionSummary(ctx context.Context, sessionID string) (Summary, error) {
	var (
		s      Summary
		status string
		level  int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT status, escalation_level FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&status, &level)
	if err == sql.ErrNoRows {
		return Summary{}, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return Summary{}, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	s.SessionID = sessionID
	s.Status = escalation.SessionStatus(status)
	s.CurrentLevel = escalation.Level(level)

	var maxLevel sql.NullInt64
	var avgScore sql.NullFloat64
	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MAX(escalation_level_after), AVG(score) FROM risk_assessments WHERE session_id = ?`,
		sessionID).Scan(&s.AssessmentCount, &maxLevel, &avgScore)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate assessments for %s: %w", sessionID, err)
	}
	s.MaxLevel = escalation.Level(maxLevel.Int64)
	s.AvgScore = avgScore.Float64

	err = r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interventions WHERE session_id = ?`, sessionID).Scan(&s.InterventionCount)
	if err != nil {
		return Summary{}, fmt.Errorf("count interventions for %s: %w", sessionID, err)
	}

	s.Trend = r.trend(ctx, sessionID)
	return s, nil
}

// trend compares the first and last of the ten most recent scores.
func (r *Reader) trend(ctx context.Context, sessionID string) string {
	rows, err := r.db.QueryContext(ctx,
		`SELECT score FROM (SELECT id, score FROM risk_assessments WHERE session_id = ? ORDER BY id DESC LIMIT 10) ORDER BY id`,
		sessionID)
	if err != nil {
		return "stable"
	}
	defer func() { _ = rows.Close() }()

	var scores []int
	for rows.Next() {
		var sc int
		if rows.Scan(&sc) == nil {
			scores = append(scores, sc)
		}
	}
	if len(scores) < 3 {
		return "stable"
	}
	switch {
	case scores[len(scores)-1] > scores[0]:
		return "rising"
	case scores[len(scores)-1] < scores[0]:
		return "falling"
	default:
		return "stable"
	}
}

// SafetyPlan returns the most recent safety plan for a session.
// sql.ErrNoRows is passed through when none exists.
func (r *Reader) SafetyPlan(ctx context.Context, sessionID string) (safetyplan.Plan, error) {
	var (
		p       safetyplan.Plan
		created string
		fields  [5]string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT created_at, warning_signs, coping_strategies, support_contacts, professional_contacts, reasons_to_live
		 FROM safety_plans WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID).
		Scan(&created, &fields[0], &fields[1], &fields[2], &fields[3], &fields[4])
	if err == sql.ErrNoRows {
		return safetyplan.Plan{}, err
	}
	if err != nil {
		return safetyplan.Plan{}, fmt.Errorf("query safety plan for %s: %w", sessionID, err)
	}
	p.SessionID = sessionID
	p.CreatedAt = parseTS(created)
	for i, dst := range []*[]string{&p.WarningSigns, &p.CopingStrategies, &p.SupportContacts, &p.ProfessionalContacts, &p.ReasonsToLive} {
		if err := json.Unmarshal([]byte(fields[i]), dst); err != nil {
			return safetyplan.Plan{}, fmt.Errorf("decode safety plan for %s: %w", sessionID, err)
		}
	}
	return p, nil
}

// Events returns engine event log rows, optionally filtered by session.
func (r *Reader) Events(ctx context.Context, sessionID string, limit int) ([]EventRow, error) {
	q := `SELECT id, type, COALESCE(session_id, ''), COALESCE(detail, ''), created_at FROM events`
	var args []any
	if sessionID != "" {
		q += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	q += ` ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []EventRow
	for rows.Next() {
		var e EventRow
		var created string
		if err := rows.Scan(&e.ID, &e.Type, &e.SessionID, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = parseTS(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EventRow is one engine event log entry.
type EventRow struct {
	ID        int64
	Type      string
	SessionID string
	Detail    string
	CreatedAt time.Time
}

func parseTS(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// events table uses SQLite datetime('now')
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}
