// Package escalation owns the per-session escalation state machine: the
// authoritative risk level, the hysteresis counter that guards
// de-escalation, and the per-transition intervention table. The level is
// derived only through Machine.Apply and Machine.Resolve; no other
// component may set it.
package escalation

import "time"

// Level is the authoritative escalation state, 0 (none) through 5
// (emergency).
type Level int

// Escalation levels.
const (
	LevelNone     Level = 0
	LevelLow      Level = 1
	LevelModerate Level = 2
	LevelElevated Level = 3
	LevelHigh     Level = 4
	LevelCrisis   Level = 5
)

// String returns the human-readable level name used in logs and exports.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLow:
		return "low"
	case LevelModerate:
		return "moderate"
	case LevelElevated:
		return "moderate-high"
	case LevelHigh:
		return "high"
	case LevelCrisis:
		return "emergency"
	default:
		return "unknown"
	}
}

// InterventionType classifies a safety intervention emitted on a level
// transition.
type InterventionType string

// Intervention type constants.
const (
	SupportiveResponse InterventionType = "supportive_response"
	ResourceProvision  InterventionType = "resource_provision"
	SafetyPlanOffer    InterventionType = "safety_plan_offer"
	EscalationAlert    InterventionType = "escalation_alert"
	EmergencyProtocol  InterventionType = "emergency_protocol"
)

// InterventionsFor returns the intervention set emitted on entry to a level.
// Interventions are per-transition: re-entering a level after de-escalation
// re-triggers its set.
func InterventionsFor(l Level) []InterventionType {
	switch l {
	case LevelLow:
		return []InterventionType{SupportiveResponse}
	case LevelModerate:
		return []InterventionType{SupportiveResponse, ResourceProvision}
	case LevelElevated:
		return []InterventionType{ResourceProvision, SafetyPlanOffer}
	case LevelHigh:
		return []InterventionType{EscalationAlert, SafetyPlanOffer}
	case LevelCrisis:
		return []InterventionType{EmergencyProtocol}
	default:
		return nil
	}
}

// SessionStatus is the lifecycle state of a therapeutic session.
type SessionStatus string

// Session status constants.
const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionAborted   SessionStatus = "aborted"
)

// Session is the state-machine-owned record for one therapeutic
// interaction. It is created when the session starts and archived when it
// ends; EscalationLevel mutates only through machine transitions.
type Session struct {
	ID              string
	Status          SessionStatus
	EscalationLevel Level
	CreatedAt       time.Time
	ClosedAt        time.Time // zero while active
}
