// Package dispatch converts state-machine transition decisions into discrete
// intervention events: append-only persistence via the storage collaborator
// and a notification to the user-facing layer. Emergency-protocol dispatch is
// synchronous and blocking for its session lane; everything else is
// dispatched asynchronously with bounded retry. The authoritative escalation
// level has already changed by the time dispatch runs, so delivery failure is
// fatal only for the single intervention, never for the session.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vigil/pkg/escalation"
)

// Intervention is one safety intervention record. UserResponse and
// EffectivenessScore are the only fields mutable after creation, each
// settable exactly once via the feedback loop (owned by the store).
type Intervention struct {
	ID           int64
	SessionID    string
	Timestamp    time.Time
	Type         escalation.InterventionType
	TriggerLevel escalation.Level
	Payload      string // rendered safety-plan text or supportive content, may be empty
}

// Notification is the event handed to the notification collaborator, one per
// dispatched intervention. InterventionID is the audit row id the feedback
// message must echo back; it is zero only when the notification went out
// before the row could be persisted.
type Notification struct {
	SessionID      string                      `json:"session_id"`
	InterventionID int64                       `json:"intervention_id,omitempty"`
	Type           escalation.InterventionType `json:"intervention_type"`
	TriggerLevel   escalation.Level            `json:"trigger_level"`
	Resources      []Resource                  `json:"resources,omitempty"`
	Payload        string                      `json:"payload,omitempty"`
}

// Recorder persists interventions. Production impl is the SQLite audit store.
type Recorder interface {
	AppendIntervention(ctx context.Context, iv *Intervention) error
}

// Notifier surfaces notifications to the user-facing layer.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DispatchTimeoutError reports that storage or notification stayed
// unreachable past the retry budget for a single intervention.
type DispatchTimeoutError struct {
	SessionID string
	Type      escalation.InterventionType
	Attempts  int
	Last      error
}

func (e *DispatchTimeoutError) Error() string {
	return fmt.Sprintf("dispatch of %s for session %s failed after %d attempts: %v",
		e.Type, e.SessionID, e.Attempts, e.Last)
}

func (e *DispatchTimeoutError) Unwrap() error { return e.Last }

// Receipt acknowledges a dispatch call.
type Receipt struct {
	Sync      bool // true for the blocking emergency path
	Delivered bool // true once both persist and notify succeeded (sync path only)
}

// Config tunes the dispatcher.
type Config struct {
	EmergencyTimeout time.Duration // bound on the blocking emergency dispatch (default 5s)
	CallTimeout      time.Duration // per-attempt bound on storage/notify calls (default 2s)
	RetryAttempts    int           // async retry budget (default 3)
	RetryBackoff     time.Duration // initial backoff, doubled per attempt (default 500ms)
}

func (c Config) withDefaults() Config {
	out := c
	if out.EmergencyTimeout == 0 {
		out.EmergencyTimeout = 5 * time.Second
	}
	if out.CallTimeout == 0 {
		out.CallTimeout = 2 * time.Second
	}
	if out.RetryAttempts == 0 {
		out.RetryAttempts = 3
	}
	if out.RetryBackoff == 0 {
		out.RetryBackoff = 500 * time.Millisecond
	}
	return out
}

// Dispatcher hands interventions to the storage and notification
// collaborators. Safe for concurrent use by independent session lanes.
type Dispatcher struct {
	cfg      Config
	recorder Recorder
	notifier Notifier
	catalog  Catalog
	log      *slog.Logger

	wg sync.WaitGroup

	// sleepFunc allows tests to skip real backoff waits.
	sleepFunc func(time.Duration)
}

// New creates a Dispatcher.
func New(cfg Config, rec Recorder, notif Notifier, catalog Catalog, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		cfg:       cfg.withDefaults(),
		recorder:  rec,
		notifier:  notif,
		catalog:   catalog,
		log:       log,
		sleepFunc: time.Sleep,
	}
}

// Dispatch routes one intervention. EmergencyProtocol blocks the calling
// session lane until delivery completes or fails open at the timeout; all
// other types return immediately and deliver in the background with bounded
// backoff.
func (d *Dispatcher) Dispatch(ctx context.Context, iv *Intervention) (Receipt, error) {
	if iv.Type == escalation.EmergencyProtocol {
		return d.dispatchEmergency(ctx, iv)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatchWithRetry(iv)
	}()
	return Receipt{}, nil
}

// Wait blocks until all in-flight async dispatches finish. Used on shutdown.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// dispatchEmergency is the synchronous level-5 path. It persists and
// notifies within EmergencyTimeout; if normal delivery fails it makes one
// fallback direct-notify attempt so the engine never goes silent on an
// emergency, then fails open.
func (d *Dispatcher) dispatchEmergency(ctx context.Context, iv *Intervention) (Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.EmergencyTimeout)
	defer cancel()

	persistErr := d.recorder.AppendIntervention(ctx, iv)
	if persistErr != nil {
		d.log.Error("emergency intervention persist failed",
			"session", iv.SessionID, "error", persistErr)
	}

	// Built after the persist attempt so a successful append puts the row
	// id on the notification.
	n := d.notification(iv)

	notifyErr := d.notifier.Notify(ctx, n)
	if notifyErr != nil {
		// Fallback direct-notify: one more attempt on a fresh timeout,
		// bypassing the retry queue entirely.
		fbCtx, fbCancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
		notifyErr = d.notifier.Notify(fbCtx, n)
		fbCancel()
	}

	if notifyErr != nil {
		err := &DispatchTimeoutError{SessionID: iv.SessionID, Type: iv.Type, Attempts: 2, Last: notifyErr}
		d.log.Error("emergency notify failed open", "session", iv.SessionID, "error", notifyErr)
		return Receipt{Sync: true}, err
	}
	return Receipt{Sync: true, Delivered: persistErr == nil}, persistErr
}

// dispatchWithRetry is the async path: persist then notify, retrying the
// whole pair with doubling backoff. Exhaustion is fatal for this
// intervention only; for high-level alerts a final direct-notify attempt is
// still made.
func (d *Dispatcher) dispatchWithRetry(iv *Intervention) {
	n := d.notification(iv)
	backoff := d.cfg.RetryBackoff

	var last error
	persisted := false
	for attempt := 1; attempt <= d.cfg.RetryAttempts; attempt++ {
		last = d.deliverOnce(iv, &n, &persisted)
		if last == nil {
			return
		}
		if attempt < d.cfg.RetryAttempts {
			d.sleepFunc(backoff)
			backoff *= 2
		}
	}

	if iv.TriggerLevel >= escalation.LevelHigh {
		// Never go silent on a level-4 alert: one direct attempt outside
		// the retry loop.
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
		if err := d.notifier.Notify(ctx, n); err == nil {
			last = nil
		}
		cancel()
	}

	if last != nil {
		err := &DispatchTimeoutError{SessionID: iv.SessionID, Type: iv.Type, Attempts: d.cfg.RetryAttempts, Last: last}
		d.log.Error("intervention dispatch exhausted retries",
			"session", iv.SessionID, "type", string(iv.Type), "error", err)
	}
}

// deliverOnce performs one persist+notify attempt. The persist half is
// tracked so a retry after a notify failure does not append duplicate audit
// rows; a successful append also stamps the row id onto the notification.
func (d *Dispatcher) deliverOnce(iv *Intervention, n *Notification, persisted *bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.CallTimeout)
	defer cancel()

	if !*persisted {
		if err := d.recorder.AppendIntervention(ctx, iv); err != nil {
			return fmt.Errorf("persist intervention: %w", err)
		}
		*persisted = true
		n.InterventionID = iv.ID
	}
	if err := d.notifier.Notify(ctx, *n); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

func (d *Dispatcher) notification(iv *Intervention) Notification {
	return Notification{
		SessionID:      iv.SessionID,
		InterventionID: iv.ID,
		Type:           iv.Type,
		TriggerLevel:   iv.TriggerLevel,
		Resources:      d.catalog.ForLevel(iv.TriggerLevel),
		Payload:        iv.Payload,
	}
}
