// Package risk implements the pure signal-extraction and aggregation layer
// of the vigil escalation engine. Extractors turn one text message or one
// emotion-sample window into typed risk signals; Aggregate folds the signal
// set for a single evaluation instant into a bounded assessment score with
// an auditable factor list. Nothing in this package holds mutable state:
// identical inputs always produce identical outputs.
package risk

// SignalKind tags a Signal variant. The aggregator switches exhaustively
// over kinds, so new kinds must be added here and nowhere else.
type SignalKind string

// Signal kind constants.
const (
	KindKeywordMatch     SignalKind = "keyword_match"     // lexicon keyword found in text
	KindPatternMatch     SignalKind = "pattern_match"     // lexicon phrase regexp or emotion volatility
	KindEmotionTrend     SignalKind = "emotion_trend"     // sustained negative affect over the window
	KindSentimentExtreme SignalKind = "sentiment_extreme" // externally computed sentiment below threshold
	KindExternalAdvisory SignalKind = "external_advisory" // advisory factor proposed by the conversation collaborator
)

// Signal is one typed risk contribution produced by an extractor. Signals are
// ephemeral: they exist only within a single aggregation cycle and are never
// persisted standalone, only folded into an Assessment.
type Signal struct {
	Kind     SignalKind
	Weight   int
	Evidence string // the matched phrase, trend description, or score that justified it

	// Imminent marks signals from the highest lexicon tier. An imminent
	// signal forces the state machine to level 5 regardless of score.
	Imminent bool
}

// AdvisorySignal wraps a risk factor proposed by the conversation
// collaborator. Advisory input is the weakest signal class: it nudges the
// score but can never escalate on its own.
func AdvisorySignal(evidence string) Signal {
	return Signal{Kind: KindExternalAdvisory, Weight: 1, Evidence: evidence}
}
