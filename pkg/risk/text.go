package risk

import (
	"fmt"
	"strings"
)

// ExtractTextSignals matches one user message against the compiled lexicon
// and returns every keyword, pattern, and intensity hit as a typed signal.
// Empty or whitespace-only text yields no signals; that is normal input, not
// an error. The extractor is pure: it never consults history.
func ExtractTextSignals(lex *CompiledLexicon, text string) []Signal {
	lowered := normalize(text)
	if lowered == "" {
		return nil
	}

	var signals []Signal
	for _, tier := range lex.tiers {
		for _, kw := range tier.Keywords {
			if containsWord(lowered, kw) {
				signals = append(signals, Signal{
					Kind:     KindKeywordMatch,
					Weight:   tier.Weight,
					Evidence: fmt.Sprintf("%s keyword: %q", tier.Name, kw),
					Imminent: tier.Imminent,
				})
			}
		}
		for i, re := range tier.patterns {
			if re.MatchString(lowered) {
				signals = append(signals, Signal{
					Kind:     KindPatternMatch,
					Weight:   tier.Weight,
					Evidence: fmt.Sprintf("%s phrase: %q", tier.Name, tier.Patterns[i]),
					Imminent: tier.Imminent,
				})
			}
		}
	}

	// Intensity amplifiers only matter when something else already fired;
	// "I'm completely fine" must not score.
	if len(signals) > 0 {
		for _, word := range lex.intensity {
			if containsWord(lowered, word) {
				signals = append(signals, Signal{
					Kind:     KindKeywordMatch,
					Weight:   1,
					Evidence: fmt.Sprintf("intensity amplifier: %q", word),
				})
			}
		}
	}

	return signals
}

// SentimentConfig holds the thresholds for the externally supplied sentiment
// score (roughly -1..1, negative is distressed).
type SentimentConfig struct {
	Extreme float64 // at or below: strong signal (default -0.5)
	Mild    float64 // at or below: weak signal (default -0.2)
}

// DefaultSentimentConfig returns the reference thresholds.
func DefaultSentimentConfig() SentimentConfig {
	return SentimentConfig{Extreme: -0.5, Mild: -0.2}
}

// SentimentSignal converts an externally computed sentiment score into at
// most one signal. Scores above the mild threshold produce nothing.
func SentimentSignal(cfg SentimentConfig, score float64) (Signal, bool) {
	switch {
	case score <= cfg.Extreme:
		return Signal{
			Kind:     KindSentimentExtreme,
			Weight:   2,
			Evidence: fmt.Sprintf("very negative sentiment (%.2f)", score),
		}, true
	case score <= cfg.Mild:
		return Signal{
			Kind:     KindSentimentExtreme,
			Weight:   1,
			Evidence: fmt.Sprintf("negative sentiment (%.2f)", score),
		}, true
	default:
		return Signal{}, false
	}
}

// containsWord reports whether needle appears in haystack on word boundaries.
// Plain substring matching would flag "die" inside "diet", which is exactly
// the false positive a crisis lexicon cannot afford.
func containsWord(haystack, needle string) bool {
	for from := 0; ; {
		i := strings.Index(haystack[from:], needle)
		if i < 0 {
			return false
		}
		i += from
		before := i == 0 || !isWordByte(haystack[i-1])
		after := i+len(needle) == len(haystack) || !isWordByte(haystack[i+len(needle)])
		if before && after {
			return true
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '\''
}
