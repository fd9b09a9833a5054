package risk

import (
	"fmt"
	"time"
)

// EmotionSample is one classifier reading pushed by the emotion-sensing
// collaborator. Samples are immutable once created.
type EmotionSample struct {
	SessionID    string    `json:"session_id"`
	Timestamp    time.Time `json:"timestamp"`
	Emotion      string    `json:"emotion"`
	Confidence   float64   `json:"confidence"`
	FaceDetected bool      `json:"face_detected"`
}

// EmotionConfig tunes the emotion-pattern extractor. Zero values are
// replaced by reference defaults via WithDefaults.
type EmotionConfig struct {
	// Negative is the emotion label subset treated as negative affect.
	Negative []string
	// MinSustained is K: the minimum consecutive negative samples before
	// the sustained-affect signal fires. Guards against transient spikes.
	MinSustained int
	// SustainedConfidence is the minimum classifier confidence for a sample
	// to count toward a sustained run.
	SustainedConfidence float64
	// RatioThreshold is the negative-sample proportion over the full window
	// that fires the broader trend signal (requires MinRatioSamples).
	RatioThreshold  float64
	MinRatioSamples int
	// VolatilityThreshold is the emotion flip proportion that fires the
	// volatility signal.
	VolatilityThreshold float64
	// RisingSpan is the per-half sample count for the rising-distress
	// comparison: the late half of 2*RisingSpan seen samples is weighed
	// against the early half.
	RisingSpan int
	// RisingMargin is how much the late half's confidence-weighted
	// negative mass must exceed the early half's to fire.
	RisingMargin float64
	// MaskingConfidence marks samples as possibly masked when confidence
	// stays below it for half the window.
	MaskingConfidence float64
}

// WithDefaults fills unset fields with the reference configuration.
func (c EmotionConfig) WithDefaults() EmotionConfig {
	out := c
	if len(out.Negative) == 0 {
		out.Negative = []string{"Sad", "Angry", "Fear", "Disgust"}
	}
	if out.MinSustained == 0 {
		out.MinSustained = 3
	}
	if out.SustainedConfidence == 0 {
		out.SustainedConfidence = 0.6
	}
	if out.RatioThreshold == 0 {
		out.RatioThreshold = 0.8
	}
	if out.MinRatioSamples == 0 {
		out.MinRatioSamples = 5
	}
	if out.VolatilityThreshold == 0 {
		out.VolatilityThreshold = 0.7
	}
	if out.RisingSpan == 0 {
		out.RisingSpan = 10
	}
	if out.RisingMargin == 0 {
		out.RisingMargin = 3
	}
	if out.MaskingConfidence == 0 {
		out.MaskingConfidence = 0.3
	}
	return out
}

// WindowMeta carries data-quality caveats about an emotion window. Caveats
// never contribute score; they are surfaced alongside the assessment so a
// reader of the audit trail knows how much to trust the emotion channel.
type WindowMeta struct {
	NoFace          bool    // face never detected across the whole window
	PossibleMasking bool    // sustained low classifier confidence
	NegativeRatio   float64 // proportion of face-detected samples that were negative
}

// Caveats renders the meta flags as audit strings.
func (m WindowMeta) Caveats() []string {
	var out []string
	if m.NoFace {
		out = append(out, "no face detected for entire window")
	}
	if m.PossibleMasking {
		out = append(out, "sustained low detection confidence (possible masking)")
	}
	return out
}

// ExtractEmotionSignals analyzes the bounded recent emotion window and
// returns trend signals plus data-quality metadata. An empty window, or one
// where the camera never saw a face, yields no signals and only the caveat;
// absence of the user is never treated as a negative signal.
func ExtractEmotionSignals(cfg EmotionConfig, window []EmotionSample) ([]Signal, WindowMeta) {
	cfg = cfg.WithDefaults()
	var meta WindowMeta

	if len(window) == 0 {
		return nil, meta
	}

	// Only samples with a detected face carry affect information.
	seen := make([]EmotionSample, 0, len(window))
	for _, s := range window {
		if s.FaceDetected {
			seen = append(seen, s)
		}
	}
	if len(seen) == 0 {
		meta.NoFace = true
		return nil, meta
	}

	negative := make(map[string]bool, len(cfg.Negative))
	for _, e := range cfg.Negative {
		negative[e] = true
	}

	var signals []Signal

	// Sustained negative run: at least MinSustained consecutive confident
	// negative samples ending at the most recent sample. Requiring the run
	// to touch the window tail keeps the signal current rather than firing
	// forever on an old episode.
	run := 0
	runEmotion := ""
	for i := len(seen) - 1; i >= 0; i-- {
		s := seen[i]
		if !negative[s.Emotion] || s.Confidence < cfg.SustainedConfidence {
			break
		}
		run++
		runEmotion = s.Emotion
	}
	if run >= cfg.MinSustained {
		signals = append(signals, Signal{
			Kind:     KindEmotionTrend,
			Weight:   3,
			Evidence: fmt.Sprintf("sustained negative affect: %d consecutive samples ending %s", run, runEmotion),
		})
	}

	// Broad negativity across the window.
	negCount := 0
	for _, s := range seen {
		if negative[s.Emotion] {
			negCount++
		}
	}
	meta.NegativeRatio = float64(negCount) / float64(len(seen))
	if len(seen) >= cfg.MinRatioSamples && meta.NegativeRatio >= cfg.RatioThreshold {
		signals = append(signals, Signal{
			Kind:     KindEmotionTrend,
			Weight:   2,
			Evidence: fmt.Sprintf("negative affect in %d of %d recent samples", negCount, len(seen)),
		})
	}

	// Rising distress: the late half of the window carries noticeably more
	// confidence-weighted negative affect than the early half. Catches a
	// worsening trajectory before the ratio or sustained-run signals fire.
	if len(seen) >= 2*cfg.RisingSpan {
		half := seen[len(seen)-2*cfg.RisingSpan:]
		var early, late float64
		for i, s := range half {
			if !negative[s.Emotion] {
				continue
			}
			if i < cfg.RisingSpan {
				early += s.Confidence
			} else {
				late += s.Confidence
			}
		}
		if late > early+cfg.RisingMargin {
			signals = append(signals, Signal{
				Kind:     KindEmotionTrend,
				Weight:   2,
				Evidence: fmt.Sprintf("rising emotional distress: negative affect mass %.1f up from %.1f", late, early),
			})
		}
	}

	// Emotional volatility: rapid label flips across the window.
	if len(seen) >= cfg.MinRatioSamples {
		flips := 0
		for i := 1; i < len(seen); i++ {
			if seen[i].Emotion != seen[i-1].Emotion {
				flips++
			}
		}
		if float64(flips)/float64(len(seen)) >= cfg.VolatilityThreshold {
			signals = append(signals, Signal{
				Kind:     KindPatternMatch,
				Weight:   2,
				Evidence: fmt.Sprintf("high emotional volatility: %d label changes over %d samples", flips, len(seen)),
			})
		}
	}

	// Masking caveat: half the window below the confidence floor.
	low := 0
	for _, s := range seen {
		if s.Confidence < cfg.MaskingConfidence {
			low++
		}
	}
	if low*2 >= len(seen) && len(seen) >= cfg.MinSustained {
		meta.PossibleMasking = true
	}

	return signals, meta
}
