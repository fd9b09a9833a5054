// Package engine binds the escalation core together: per-session lanes that
// run the full extract, aggregate, transition and dispatch cycle serially
// for one session while independent sessions evaluate in parallel. The lane
// lock covers the whole cycle, so partial application (level changed but
// intervention not yet created, or vice versa) is never observable.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/pkg/dispatch"
	"vigil/pkg/escalation"
	"vigil/pkg/risk"
	"vigil/pkg/safetyplan"
)

// AuditStore is the append-only persistence surface the engine writes to.
// Production impl is *store.Store.
type AuditStore interface {
	CreateSession(ctx context.Context, sess escalation.Session) error
	CloseSession(ctx context.Context, id string, status escalation.SessionStatus, closedAt time.Time) error
	UpdateSessionLevel(ctx context.Context, id string, level escalation.Level) error
	AppendAssessment(ctx context.Context, a risk.Assessment) error
	AppendSafetyPlan(ctx context.Context, p safetyplan.Plan) error
	HasSafetyPlan(ctx context.Context, sessionID string) (bool, error)
	AppendEvent(ctx context.Context, typ, sessionID, detail string) error
	SetInterventionFeedback(ctx context.Context, interventionID int64, userResponse string, effectiveness int) error
	InterventionSession(ctx context.Context, interventionID int64) (string, escalation.InterventionType, error)
}

// Dispatcher hands interventions to the storage and notification
// collaborators. Production impl is *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, iv *dispatch.Intervention) (dispatch.Receipt, error)
}

// lane is the per-session mutable state. Its mutex is the single-writer
// guard for the session: held for the full evaluation cycle.
type lane struct {
	mu      sync.Mutex
	session escalation.Session
	machine *escalation.Machine
	window  *risk.Window
	lastTS  time.Time
}

// Engine is the risk/crisis escalation engine. Safe for concurrent use;
// sessions evaluate independently.
type Engine struct {
	cfg        Config
	lex        *risk.CompiledLexicon
	store      AuditStore
	dispatcher Dispatcher
	log        *slog.Logger

	mu    sync.Mutex
	lanes map[string]*lane

	// nowFunc allows tests to control time.
	nowFunc func() time.Time
}

// New creates an Engine. The lexicon is compiled from cfg unless lex is
// given (tests pass one directly).
func New(cfg Config, lex *risk.CompiledLexicon, st AuditStore, disp Dispatcher, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if lex == nil {
		lex = risk.MustCompileDefault()
	}
	return &Engine{
		cfg:        cfg.WithDefaults(),
		lex:        lex,
		store:      st,
		dispatcher: disp,
		log:        log,
		lanes:      make(map[string]*lane),
		nowFunc:    time.Now,
	}
}

// OpenSession creates a session and its lane. An empty id mints a UUID.
// Returns the session id.
func (e *Engine) OpenSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := e.nowFunc()
	sess := escalation.Session{ID: id, Status: escalation.SessionActive, CreatedAt: now}

	e.mu.Lock()
	if _, exists := e.lanes[id]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("session %s already open", id)
	}
	e.lanes[id] = &lane{
		session: sess,
		machine: escalation.NewMachine(e.cfg.EscalationConfig()),
		window:  risk.NewWindow(e.cfg.WindowCap),
	}
	e.mu.Unlock()

	if err := e.store.CreateSession(ctx, sess); err != nil {
		e.mu.Lock()
		delete(e.lanes, id)
		e.mu.Unlock()
		return "", err
	}
	_ = e.store.AppendEvent(ctx, "session_open", id, "")
	e.log.Info("session opened", "session", id)
	return id, nil
}

// CloseSession archives a session. Later samples for it are dropped as
// input errors.
func (e *Engine) CloseSession(ctx context.Context, id string, status escalation.SessionStatus) error {
	ln, err := e.lane(id)
	if err != nil {
		return err
	}

	ln.mu.Lock()
	if ln.session.Status != escalation.SessionActive {
		ln.mu.Unlock()
		return &SessionClosedError{SessionID: id}
	}
	ln.session.Status = status
	ln.session.ClosedAt = e.nowFunc()
	closedAt := ln.session.ClosedAt
	ln.mu.Unlock()

	e.mu.Lock()
	delete(e.lanes, id)
	e.mu.Unlock()

	if err := e.store.CloseSession(ctx, id, status, closedAt); err != nil {
		return err
	}
	_ = e.store.AppendEvent(ctx, "session_close", id, string(status))
	e.log.Info("session closed", "session", id, "status", string(status))
	return nil
}

// SubmitText evaluates one user message plus its externally computed
// sentiment score and optional advisory factors from the conversation
// collaborator. Returns the applied assessment and the transition decision.
func (e *Engine) SubmitText(ctx context.Context, sessionID string, ts time.Time, text string, sentiment float64, advisories []string) (risk.Assessment, escalation.Decision, error) {
	ln, err := e.lane(sessionID)
	if err != nil {
		return risk.Assessment{}, escalation.Decision{}, err
	}

	// Extraction is pure and runs outside the lane lock.
	signals := risk.ExtractTextSignals(e.lex, text)
	if s, ok := risk.SentimentSignal(e.cfg.SentimentRiskConfig(), sentiment); ok {
		signals = append(signals, s)
	}
	for _, adv := range advisories {
		signals = append(signals, risk.AdvisorySignal(adv))
	}

	return e.evaluate(ctx, ln, ts, signals, risk.WindowMeta{})
}

// SubmitEmotion appends one emotion sample to the session's bounded window
// and evaluates the window. Gaps in the sample stream are tolerated; absence
// is never a negative signal.
func (e *Engine) SubmitEmotion(ctx context.Context, sample risk.EmotionSample) (risk.Assessment, escalation.Decision, error) {
	ln, err := e.lane(sample.SessionID)
	if err != nil {
		return risk.Assessment{}, escalation.Decision{}, err
	}
	if sample.Emotion == "" && sample.FaceDetected {
		_ = e.store.AppendEvent(ctx, "input_error", sample.SessionID, "emotion sample without label")
		e.log.Warn("dropped malformed emotion sample", "session", sample.SessionID)
		return risk.Assessment{}, escalation.Decision{}, nil
	}
	if sample.Confidence < 0 || sample.Confidence > 1 {
		_ = e.store.AppendEvent(ctx, "input_error", sample.SessionID, fmt.Sprintf("confidence %.3f out of range", sample.Confidence))
		e.log.Warn("dropped malformed emotion sample", "session", sample.SessionID, "confidence", sample.Confidence)
		return risk.Assessment{}, escalation.Decision{}, nil
	}

	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.session.Status != escalation.SessionActive {
		return risk.Assessment{}, escalation.Decision{}, &SessionClosedError{SessionID: sample.SessionID}
	}
	if err := e.checkOrder(ctx, ln, sample.Timestamp); err != nil {
		return risk.Assessment{}, escalation.Decision{}, err
	}

	ln.window.Append(sample)
	signals, meta := risk.ExtractEmotionSignals(e.cfg.EmotionConfig(), ln.window.Samples())
	return e.evaluateLocked(ctx, ln, sample.Timestamp, signals, meta)
}

// evaluate runs one locked evaluation cycle for signals that need no window
// access.
func (e *Engine) evaluate(ctx context.Context, ln *lane, ts time.Time, signals []risk.Signal, meta risk.WindowMeta) (risk.Assessment, escalation.Decision, error) {
	ln.mu.Lock()
	defer ln.mu.Unlock()
	if ln.session.Status != escalation.SessionActive {
		return risk.Assessment{}, escalation.Decision{}, &SessionClosedError{SessionID: ln.session.ID}
	}
	if err := e.checkOrder(ctx, ln, ts); err != nil {
		return risk.Assessment{}, escalation.Decision{}, err
	}
	return e.evaluateLocked(ctx, ln, ts, signals, meta)
}

// evaluateLocked is the atomic aggregate, transition and dispatch unit.
// Caller holds ln.mu and has validated ordering.
func (e *Engine) evaluateLocked(ctx context.Context, ln *lane, ts time.Time, signals []risk.Signal, meta risk.WindowMeta) (risk.Assessment, escalation.Decision, error) {
	ln.lastTS = ts

	a := risk.Aggregate(ln.session.ID, ts, signals, meta)
	decision := ln.machine.Apply(a)
	a.EscalationLevelAfter = int(ln.machine.Level())
	ln.session.EscalationLevel = ln.machine.Level()

	if err := e.store.AppendAssessment(ctx, a); err != nil {
		// The level already changed; the audit gap is loud, not fatal.
		e.log.Error("assessment persist failed", "session", ln.session.ID, "error", err)
		_ = e.store.AppendEvent(ctx, "audit_gap", ln.session.ID, err.Error())
	}

	if decision.Transitioned {
		e.log.Info("escalation transition",
			"session", ln.session.ID,
			"from", decision.From.String(), "to", decision.To.String(),
			"score", a.Score)
		_ = e.store.AppendEvent(ctx, "transition", ln.session.ID,
			fmt.Sprintf("%s -> %s (score %d)", decision.From, decision.To, a.Score))
		e.emitInterventions(ctx, ln, ts, decision)
	}

	return a, decision, nil
}

// emitInterventions dispatches the destination level's intervention set.
// EmergencyProtocol blocks this session's lane until delivery completes or
// fails open; nothing here blocks other sessions. Caller holds ln.mu.
func (e *Engine) emitInterventions(ctx context.Context, ln *lane, ts time.Time, decision escalation.Decision) {
	for _, typ := range decision.Interventions {
		iv := &dispatch.Intervention{
			SessionID:    ln.session.ID,
			Timestamp:    ts,
			Type:         typ,
			TriggerLevel: decision.To,
		}

		if typ == escalation.SafetyPlanOffer && decision.To >= escalation.LevelHigh {
			// Mandatory default plan on entry to high risk if none exists.
			iv.Payload = e.ensureSafetyPlan(ctx, ln.session.ID, ts)
		}

		if _, err := e.dispatcher.Dispatch(ctx, iv); err != nil {
			e.log.Error("intervention dispatch failed",
				"session", ln.session.ID, "type", string(typ), "error", err)
			_ = e.store.AppendEvent(ctx, "dispatch_failure", ln.session.ID, err.Error())
		}
	}
}

// ensureSafetyPlan builds and persists a default plan if the session has
// none, returning the rendered plan text for the notification payload.
func (e *Engine) ensureSafetyPlan(ctx context.Context, sessionID string, ts time.Time) string {
	has, err := e.store.HasSafetyPlan(ctx, sessionID)
	if err != nil {
		e.log.Error("safety plan lookup failed", "session", sessionID, "error", err)
		return ""
	}
	if has {
		return ""
	}
	plan := safetyplan.Build(sessionID, nil, ts)
	if err := e.store.AppendSafetyPlan(ctx, plan); err != nil {
		e.log.Error("safety plan persist failed", "session", sessionID, "error", err)
		return plan.Render()
	}
	_ = e.store.AppendEvent(ctx, "safety_plan_created", sessionID, "mandatory default")
	return plan.Render()
}

// BuildSafetyPlan constructs and persists a plan with the caller's
// preferences, superseding any earlier plan.
func (e *Engine) BuildSafetyPlan(ctx context.Context, sessionID string, prefs *safetyplan.Preferences) (safetyplan.Plan, error) {
	if _, err := e.lane(sessionID); err != nil {
		return safetyplan.Plan{}, err
	}
	plan := safetyplan.Build(sessionID, prefs, e.nowFunc())
	if err := e.store.AppendSafetyPlan(ctx, plan); err != nil {
		return safetyplan.Plan{}, err
	}
	_ = e.store.AppendEvent(ctx, "safety_plan_created", sessionID, "user customized")
	return plan, nil
}

// Feedback records the one-shot user response and effectiveness score for a
// dispatched intervention. Accepting a safety plan offer builds and persists
// the plan with the caller's preferences.
func (e *Engine) Feedback(ctx context.Context, interventionID int64, userResponse string, effectiveness int, prefs *safetyplan.Preferences) error {
	sessionID, typ, err := e.store.InterventionSession(ctx, interventionID)
	if err != nil {
		return err
	}
	if err := e.store.SetInterventionFeedback(ctx, interventionID, userResponse, effectiveness); err != nil {
		return err
	}
	if typ == escalation.SafetyPlanOffer && userResponse == "accepted" {
		plan := safetyplan.Build(sessionID, prefs, e.nowFunc())
		if err := e.store.AppendSafetyPlan(ctx, plan); err != nil {
			return err
		}
		_ = e.store.AppendEvent(ctx, "safety_plan_created", sessionID, "offer accepted")
	}
	return nil
}

// Resolve releases sticky level 5 on explicit human confirmation. Below
// level 5 it is a no-op.
func (e *Engine) Resolve(ctx context.Context, sessionID string) (escalation.Decision, error) {
	ln, err := e.lane(sessionID)
	if err != nil {
		return escalation.Decision{}, err
	}

	ln.mu.Lock()
	defer ln.mu.Unlock()
	decision := ln.machine.Resolve()
	if !decision.Transitioned {
		return decision, nil
	}
	ln.session.EscalationLevel = ln.machine.Level()

	if err := e.store.UpdateSessionLevel(ctx, sessionID, ln.machine.Level()); err != nil {
		e.log.Error("resolve persist failed", "session", sessionID, "error", err)
	}
	_ = e.store.AppendEvent(ctx, "resolve", sessionID,
		fmt.Sprintf("%s -> %s (human confirmed)", decision.From, decision.To))
	e.log.Info("emergency resolved", "session", sessionID)
	return decision, nil
}

// SessionLevel returns the current level and hysteresis counter for a
// session.
func (e *Engine) SessionLevel(sessionID string) (escalation.Level, int, error) {
	ln, err := e.lane(sessionID)
	if err != nil {
		return 0, 0, err
	}
	ln.mu.Lock()
	defer ln.mu.Unlock()
	return ln.machine.Level(), ln.machine.BelowStreak(), nil
}

// OpenSessions returns the ids of all active sessions.
func (e *Engine) OpenSessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.lanes))
	for id := range e.lanes {
		out = append(out, id)
	}
	return out
}

// checkOrder enforces strict arrival-timestamp ordering per session. Caller
// holds ln.mu.
func (e *Engine) checkOrder(ctx context.Context, ln *lane, ts time.Time) error {
	if ts.Before(ln.lastTS) {
		err := &StateCorruptionError{
			SessionID: ln.session.ID,
			Reason: fmt.Sprintf("assessment timestamp %s precedes last applied %s",
				ts.Format(time.RFC3339Nano), ln.lastTS.Format(time.RFC3339Nano)),
		}
		e.log.Error("refusing out-of-order assessment", "session", ln.session.ID, "error", err)
		_ = e.store.AppendEvent(ctx, "state_corruption", ln.session.ID, err.Error())
		return err
	}
	return nil
}

func (e *Engine) lane(sessionID string) (*lane, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ln, ok := e.lanes[sessionID]
	if !ok {
		return nil, &SessionNotFoundError{SessionID: sessionID}
	}
	return ln, nil
}
