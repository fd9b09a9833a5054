package engine

import "fmt"

// StateCorruptionError reports an assessment arriving out of timestamp order
// or an evaluation against an uninitialized session. This is the one fatal
// class: applying it would corrupt the audit trail's ordering guarantee,
// so the engine refuses and surfaces it loudly instead of reordering.
type StateCorruptionError struct {
	SessionID string
	Reason    string
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("state corruption in session %s: %s", e.SessionID, e.Reason)
}

// SessionNotFoundError reports an operation against an unknown session.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// SessionClosedError reports input for an archived session. The sample is
// dropped and logged; it never affects state.
type SessionClosedError struct {
	SessionID string
}

func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s is closed", e.SessionID)
}
