package risk

import (
	"sort"
	"time"
)

// MaxScore is the saturation bound for an assessment score.
const MaxScore = 10

// Assessment is the aggregator's output for one session at one instant:
// the saturated score plus the ordered, deduplicated factor list. It is
// immutable once created and forms the per-session audit trail.
// EscalationLevelAfter is filled in by the state machine when the
// assessment is applied.
type Assessment struct {
	SessionID string
	Timestamp time.Time
	Score     int
	Factors   []string // contributing evidences, weight-descending
	Imminent  bool     // an imminent-danger signal was present
	Caveats   []string // data-quality notes, zero score contribution

	EscalationLevelAfter int
}

// Aggregate folds one evaluation cycle's signal set into an assessment.
// Score is the weight sum saturated to [0, MaxScore]. Factors are the
// deduplicated evidences ordered by weight descending, then kind, then
// evidence text, so identical signal sets always produce identical output.
// Aggregation is stateless: all temporal reasoning happened in the
// extractors.
func Aggregate(sessionID string, ts time.Time, signals []Signal, meta WindowMeta) Assessment {
	a := Assessment{SessionID: sessionID, Timestamp: ts, Caveats: meta.Caveats()}

	deduped := make([]Signal, 0, len(signals))
	seen := make(map[string]bool, len(signals))
	for _, s := range signals {
		key := string(s.Kind) + "\x00" + s.Evidence
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, s)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Weight != deduped[j].Weight {
			return deduped[i].Weight > deduped[j].Weight
		}
		if deduped[i].Kind != deduped[j].Kind {
			return deduped[i].Kind < deduped[j].Kind
		}
		return deduped[i].Evidence < deduped[j].Evidence
	})

	score := 0
	for _, s := range deduped {
		score += s.Weight
		if s.Imminent {
			a.Imminent = true
		}
		a.Factors = append(a.Factors, s.Evidence)
	}
	if score > MaxScore {
		score = MaxScore
	}
	if score < 0 {
		score = 0
	}
	a.Score = score

	return a
}
