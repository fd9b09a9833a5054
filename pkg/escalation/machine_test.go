package escalation

import (
	"testing"
	"time"

	"vigil/pkg/risk"
)

func assess(score int, imminent bool) risk.Assessment {
	return risk.Assessment{SessionID: "s1", Timestamp: time.Unix(1, 0), Score: score, Imminent: imminent}
}

func TestLevelFor_Thresholds(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})

	tests := []struct {
		score int
		want  Level
	}{
		{0, LevelNone},
		{2, LevelNone},
		{3, LevelLow},
		{4, LevelLow},
		{5, LevelModerate},
		{6, LevelModerate},
		{7, LevelElevated},
		{8, LevelElevated},
		{9, LevelHigh},
		{10, LevelCrisis},
	}
	for _, tt := range tests {
		if got := m.levelFor(tt.score, false); got != tt.want {
			t.Errorf("levelFor(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestApply_ImminentForcesCrisis(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	d := m.Apply(assess(5, true))
	if d.To != LevelCrisis || !d.Transitioned {
		t.Errorf("imminent assessment -> %+v, want transition to level 5", d)
	}
	if len(d.Interventions) != 1 || d.Interventions[0] != EmergencyProtocol {
		t.Errorf("interventions = %v, want [emergency_protocol]", d.Interventions)
	}
}

func TestApply_EscalationIsImmediate(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	d := m.Apply(assess(7, false))
	if d.From != LevelNone || d.To != LevelElevated || !d.Transitioned {
		t.Errorf("0 -> 3 jump: %+v", d)
	}
	want := []InterventionType{ResourceProvision, SafetyPlanOffer}
	if len(d.Interventions) != len(want) {
		t.Fatalf("interventions = %v, want %v", d.Interventions, want)
	}
	for i := range want {
		if d.Interventions[i] != want[i] {
			t.Errorf("intervention %d = %v, want %v", i, d.Interventions[i], want[i])
		}
	}
}

// A score of 6 keeps level 3 alive: holding requires only staying at or
// above the threshold minus hysteresis, not re-qualifying every cycle.
func TestApply_HysteresisHoldsLevel(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(7, false)) // enter level 3

	for i := 0; i < 2; i++ {
		d := m.Apply(assess(6, false))
		if d.Transitioned {
			t.Fatalf("assessment %d below threshold transitioned early: %+v", i+1, d)
		}
		if m.Level() != LevelElevated {
			t.Fatalf("level dropped early: %v", m.Level())
		}
	}

	// Third consecutive below-threshold score: drop one step.
	d := m.Apply(assess(6, false))
	if !d.Transitioned || d.To != LevelModerate {
		t.Errorf("third below-threshold assessment: %+v, want drop to level 2", d)
	}
}

func TestApply_RecoveryResetsStreak(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(7, false)) // level 3

	m.Apply(assess(6, false)) // below x1
	m.Apply(assess(6, false)) // below x2
	m.Apply(assess(8, false)) // back above: streak resets

	m.Apply(assess(6, false)) // below x1 again
	d := m.Apply(assess(6, false))
	if d.Transitioned {
		t.Errorf("streak did not reset on recovery: %+v", d)
	}
	if m.Level() != LevelElevated {
		t.Errorf("level = %v, want still 3", m.Level())
	}
}

func TestApply_DeescalationStepsOneLevel(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(9, false)) // level 4

	// Scores of zero still only drop one level per hysteresis cycle.
	for i := 0; i < 3; i++ {
		m.Apply(assess(0, false))
	}
	if m.Level() != LevelElevated {
		t.Errorf("level = %v, want single-step drop to 3", m.Level())
	}
}

func TestApply_DeescalationEmitsDestinationSet(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(5, false)) // level 2

	var d Decision
	for i := 0; i < 3; i++ {
		d = m.Apply(assess(1, false))
	}
	if !d.Transitioned || d.To != LevelLow {
		t.Fatalf("final decision: %+v", d)
	}
	if len(d.Interventions) != 1 || d.Interventions[0] != SupportiveResponse {
		t.Errorf("interventions = %v, want level-1 set", d.Interventions)
	}
}

func TestApply_CrisisIsSticky(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(10, false))

	for i := 0; i < 10; i++ {
		d := m.Apply(assess(0, false))
		if d.Transitioned {
			t.Fatalf("level 5 decayed on scores alone at assessment %d: %+v", i+1, d)
		}
	}
	if m.Level() != LevelCrisis {
		t.Errorf("level = %v, want sticky 5", m.Level())
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(10, false))

	d := m.Resolve()
	if !d.Transitioned || d.From != LevelCrisis || d.To != LevelHigh {
		t.Errorf("resolve: %+v, want 5 -> 4", d)
	}
	if len(d.Interventions) != 0 {
		t.Errorf("resolve emitted interventions: %v", d.Interventions)
	}

	// After release, normal hysteresis applies again.
	for i := 0; i < 3; i++ {
		m.Apply(assess(0, false))
	}
	if m.Level() != LevelElevated {
		t.Errorf("post-resolve level = %v, want 3 after one hysteresis cycle", m.Level())
	}
}

func TestResolve_BelowCrisisIsNoop(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(5, false))

	d := m.Resolve()
	if d.Transitioned {
		t.Errorf("resolve below level 5 transitioned: %+v", d)
	}
	if m.Level() != LevelModerate {
		t.Errorf("level = %v, want unchanged 2", m.Level())
	}
}

func TestApply_ReentryRetriggersInterventions(t *testing.T) {
	t.Parallel()

	m := NewMachine(Config{})
	m.Apply(assess(3, false)) // enter 1
	for i := 0; i < 3; i++ {
		m.Apply(assess(0, false)) // drop to 0
	}
	d := m.Apply(assess(3, false)) // re-enter 1
	if !d.Transitioned || len(d.Interventions) != 1 {
		t.Errorf("re-entry: %+v, want level-1 interventions again", d)
	}
}

func TestMachineDeterminism(t *testing.T) {
	t.Parallel()

	scores := []int{2, 4, 6, 9, 8, 8, 8, 3, 3, 3, 10, 0, 0}

	run := func() []Level {
		m := NewMachine(Config{})
		out := make([]Level, 0, len(scores))
		for _, sc := range scores {
			m.Apply(assess(sc, false))
			out = append(out, m.Level())
		}
		return out
	}

	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d diverged at step %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{}).Validate(); err != nil {
		t.Errorf("defaults rejected: %v", err)
	}
	if err := (Config{Thresholds: [4]int{5, 3, 7, 9}}).Validate(); err == nil {
		t.Error("misordered thresholds accepted")
	}
	if err := (Config{Thresholds: [4]int{3, 5, 7, 11}}).Validate(); err == nil {
		t.Error("threshold above max score accepted")
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()

	want := map[Level]string{
		LevelNone:     "none",
		LevelLow:      "low",
		LevelModerate: "moderate",
		LevelElevated: "moderate-high",
		LevelHigh:     "high",
		LevelCrisis:   "emergency",
	}
	for l, s := range want {
		if l.String() != s {
			t.Errorf("Level(%d).String() = %q, want %q", int(l), l.String(), s)
		}
	}
}
