package escalation

import (
	"fmt"

	"vigil/pkg/risk"
)

// Config tunes the state machine. Zero values fall back to the reference
// defaults via withDefaults.
type Config struct {
	// Thresholds[i] is the minimum score that enters level i+1, for levels
	// 1 through 4. Level 5 entry is score == MaxScore or an imminent signal.
	Thresholds [4]int
	// HysteresisCount is M: consecutive below-threshold assessments
	// required before the level drops one step.
	HysteresisCount int
}

func (c Config) withDefaults() Config {
	out := c
	if out.Thresholds == [4]int{} {
		out.Thresholds = [4]int{3, 5, 7, 9}
	}
	if out.HysteresisCount == 0 {
		out.HysteresisCount = 3
	}
	return out
}

// Validate rejects threshold tables that are not strictly increasing or
// out of score range; a misordered table would make levels unreachable.
func (c Config) Validate() error {
	c = c.withDefaults()
	prev := 0
	for i, t := range c.Thresholds {
		if t <= prev || t > risk.MaxScore {
			return fmt.Errorf("escalation threshold for level %d must be in (%d, %d], got %d", i+1, prev, risk.MaxScore, t)
		}
		prev = t
	}
	if c.HysteresisCount < 1 {
		return fmt.Errorf("hysteresis count must be at least 1, got %d", c.HysteresisCount)
	}
	return nil
}

// Decision is the outcome of applying one assessment.
type Decision struct {
	From          Level
	To            Level
	Transitioned  bool
	Interventions []InterventionType // destination-level set, empty when no transition
}

// Machine is the escalation state for one session. It is not goroutine-safe;
// the owning session lane serializes Apply calls, which also guarantees
// assessments are applied in arrival order.
type Machine struct {
	cfg         Config
	level       Level
	belowStreak int // consecutive assessments below the current level's entry threshold
}

// NewMachine creates a machine at level 0.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg.withDefaults()}
}

// Level returns the current authoritative escalation level.
func (m *Machine) Level() Level { return m.level }

// BelowStreak returns the hysteresis counter, for status display.
func (m *Machine) BelowStreak() int { return m.belowStreak }

// levelFor maps a score (and the imminent flag) to the highest level whose
// entry threshold it meets.
func (m *Machine) levelFor(score int, imminent bool) Level {
	if imminent || score >= risk.MaxScore {
		return LevelCrisis
	}
	level := LevelNone
	for i, t := range m.cfg.Thresholds {
		if score >= t {
			level = Level(i + 1)
		}
	}
	return level
}

// entryThreshold returns the score that enters the given level. Level 5 has
// no numeric threshold below MaxScore.
func (m *Machine) entryThreshold(l Level) int {
	if l <= LevelNone {
		return 0
	}
	if l >= LevelCrisis {
		return risk.MaxScore
	}
	return m.cfg.Thresholds[int(l)-1]
}

// Apply runs the transition function for one assessment. Escalation to a
// higher level is immediate and unconditional. De-escalation drops at most
// one step, and only after HysteresisCount consecutive assessments score
// below the current level's entry threshold; any assessment that does not
// qualify resets the counter. Level 5 is sticky: it never decays on scores
// alone; see Resolve.
func (m *Machine) Apply(a risk.Assessment) Decision {
	from := m.level
	target := m.levelFor(a.Score, a.Imminent)

	if target > m.level {
		m.level = target
		m.belowStreak = 0
		return Decision{From: from, To: target, Transitioned: true, Interventions: InterventionsFor(target)}
	}

	if m.level == LevelCrisis {
		// Sticky: only an explicit external confirmation releases level 5.
		return Decision{From: from, To: from}
	}

	if m.level > LevelNone && a.Score < m.entryThreshold(m.level) {
		m.belowStreak++
		if m.belowStreak >= m.cfg.HysteresisCount {
			m.level--
			m.belowStreak = 0
			return Decision{From: from, To: m.level, Transitioned: true, Interventions: InterventionsFor(m.level)}
		}
		return Decision{From: from, To: from}
	}

	m.belowStreak = 0
	return Decision{From: from, To: from}
}

// Resolve releases sticky level 5 on explicit human-acknowledged
// confirmation, dropping to level 4 with normal hysteresis thereafter. It is
// an administrative transition and emits no interventions. Calling Resolve
// below level 5 is a no-op.
func (m *Machine) Resolve() Decision {
	from := m.level
	if m.level != LevelCrisis {
		return Decision{From: from, To: from}
	}
	m.level = LevelHigh
	m.belowStreak = 0
	return Decision{From: from, To: m.level, Transitioned: true}
}
