package risk

import (
	"strings"
	"testing"
	"time"
)

func sample(emotion string, conf float64, face bool) EmotionSample {
	return EmotionSample{Emotion: emotion, Confidence: conf, FaceDetected: face}
}

func TestExtractEmotionSignals_SustainedRun(t *testing.T) {
	t.Parallel()

	window := []EmotionSample{
		sample("Happy", 0.9, true),
		sample("Sad", 0.8, true),
		sample("Sad", 0.7, true),
		sample("Sad", 0.9, true),
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)

	found := false
	for _, s := range signals {
		if s.Kind == KindEmotionTrend && s.Weight == 3 {
			found = true
			if !strings.Contains(s.Evidence, "3 consecutive") {
				t.Errorf("evidence = %q, want run length 3", s.Evidence)
			}
		}
	}
	if !found {
		t.Errorf("no sustained-affect signal in %v", signals)
	}
}

func TestExtractEmotionSignals_RunMustTouchTail(t *testing.T) {
	t.Parallel()

	// Old negative run, recent recovery: no sustained signal.
	window := []EmotionSample{
		sample("Sad", 0.8, true),
		sample("Sad", 0.8, true),
		sample("Sad", 0.8, true),
		sample("Happy", 0.9, true),
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)
	for _, s := range signals {
		if s.Weight == 3 {
			t.Errorf("stale run fired sustained signal: %q", s.Evidence)
		}
	}
}

func TestExtractEmotionSignals_LowConfidenceBreaksRun(t *testing.T) {
	t.Parallel()

	window := []EmotionSample{
		sample("Sad", 0.9, true),
		sample("Sad", 0.4, true), // below the confidence floor
		sample("Sad", 0.9, true),
		sample("Sad", 0.9, true),
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)
	for _, s := range signals {
		if s.Weight == 3 {
			t.Errorf("run of 2 confident samples fired: %q", s.Evidence)
		}
	}
}

func TestExtractEmotionSignals_NegativeRatio(t *testing.T) {
	t.Parallel()

	// 4 of 5 negative (0.8) but broken runs: ratio signal only.
	window := []EmotionSample{
		sample("Sad", 0.9, true),
		sample("Angry", 0.9, true),
		sample("Happy", 0.9, true),
		sample("Fear", 0.9, true),
		sample("Sad", 0.9, true),
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)

	found := false
	for _, s := range signals {
		if s.Kind == KindEmotionTrend && s.Weight == 2 {
			found = true
		}
	}
	if !found {
		t.Errorf("no ratio signal in %v", signals)
	}
}

func TestExtractEmotionSignals_EmptyAndNoFace(t *testing.T) {
	t.Parallel()

	signals, meta := ExtractEmotionSignals(EmotionConfig{}, nil)
	if signals != nil || meta.NoFace {
		t.Errorf("empty window: signals=%v noface=%v", signals, meta.NoFace)
	}

	window := []EmotionSample{
		sample("", 0, false),
		sample("", 0, false),
	}
	signals, meta = ExtractEmotionSignals(EmotionConfig{}, window)
	if signals != nil {
		t.Errorf("face-undetected window produced signals: %v", signals)
	}
	if !meta.NoFace {
		t.Error("no-face caveat not set")
	}
	if len(meta.Caveats()) != 1 {
		t.Errorf("caveats = %v, want one", meta.Caveats())
	}
}

func TestExtractEmotionSignals_Volatility(t *testing.T) {
	t.Parallel()

	// Every sample flips the label: 5 flips over 6 samples.
	window := []EmotionSample{
		sample("Happy", 0.9, true),
		sample("Sad", 0.9, true),
		sample("Happy", 0.9, true),
		sample("Angry", 0.9, true),
		sample("Happy", 0.9, true),
		sample("Fear", 0.9, true),
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)

	found := false
	for _, s := range signals {
		if s.Kind == KindPatternMatch && strings.Contains(s.Evidence, "volatility") {
			found = true
		}
	}
	if !found {
		t.Errorf("no volatility signal in %v", signals)
	}
}

func TestExtractEmotionSignals_MaskingCaveat(t *testing.T) {
	t.Parallel()

	window := []EmotionSample{
		sample("Neutral", 0.2, true),
		sample("Neutral", 0.1, true),
		sample("Sad", 0.2, true),
		sample("Neutral", 0.8, true),
	}
	_, meta := ExtractEmotionSignals(EmotionConfig{}, window)
	if !meta.PossibleMasking {
		t.Error("sustained low confidence did not set the masking caveat")
	}
}

func TestExtractEmotionSignals_AbsenceIsNotNegative(t *testing.T) {
	t.Parallel()

	// Negative run interleaved with camera dropouts: dropouts are excluded,
	// they neither extend nor break the run of seen samples.
	window := []EmotionSample{
		sample("Sad", 0.8, true),
		sample("", 0, false),
		sample("Sad", 0.8, true),
		sample("", 0, false),
		sample("Sad", 0.8, true),
	}
	signals, meta := ExtractEmotionSignals(EmotionConfig{}, window)
	if meta.NoFace {
		t.Error("NoFace set despite detected samples")
	}
	found := false
	for _, s := range signals {
		if s.Weight == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("run across dropouts did not fire: %v", signals)
	}
}

func TestExtractEmotionSignals_RisingDistress(t *testing.T) {
	t.Parallel()

	// Calm early half, confidently negative late half.
	var window []EmotionSample
	for i := 0; i < 10; i++ {
		window = append(window, sample("Happy", 0.9, true))
	}
	for i := 0; i < 5; i++ {
		window = append(window, sample("Sad", 0.9, true))
		window = append(window, sample("Neutral", 0.9, true))
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, window)

	found := false
	for _, s := range signals {
		if strings.Contains(s.Evidence, "rising emotional distress") {
			found = true
			if s.Kind != KindEmotionTrend || s.Weight != 2 {
				t.Errorf("rising signal = %+v, want emotion trend weight 2", s)
			}
		}
	}
	if !found {
		t.Errorf("no rising-distress signal in %v", signals)
	}
}

func TestExtractEmotionSignals_RisingDistressNeedsConfidentIncrease(t *testing.T) {
	t.Parallel()

	// Flat negativity across both halves is not a rising trajectory.
	var flat []EmotionSample
	for i := 0; i < 20; i++ {
		flat = append(flat, sample("Sad", 0.9, true))
	}
	signals, _ := ExtractEmotionSignals(EmotionConfig{}, flat)
	for _, s := range signals {
		if strings.Contains(s.Evidence, "rising emotional distress") {
			t.Errorf("flat window fired rising signal: %q", s.Evidence)
		}
	}

	// A count increase at rock-bottom confidence carries too little mass.
	var shaky []EmotionSample
	for i := 0; i < 10; i++ {
		shaky = append(shaky, sample("Happy", 0.9, true))
	}
	for i := 0; i < 10; i++ {
		shaky = append(shaky, sample("Sad", 0.25, true))
	}
	signals, _ = ExtractEmotionSignals(EmotionConfig{}, shaky)
	for _, s := range signals {
		if strings.Contains(s.Evidence, "rising emotional distress") {
			t.Errorf("low-confidence increase fired rising signal: %q", s.Evidence)
		}
	}
}

func TestEmotionConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmotionConfig{}.WithDefaults()
	if cfg.MinSustained != 3 || cfg.SustainedConfidence != 0.6 {
		t.Errorf("sustained defaults = %d/%.2f, want 3/0.60", cfg.MinSustained, cfg.SustainedConfidence)
	}
	if cfg.RatioThreshold != 0.8 || cfg.MinRatioSamples != 5 {
		t.Errorf("ratio defaults = %.2f/%d, want 0.80/5", cfg.RatioThreshold, cfg.MinRatioSamples)
	}
	if cfg.RisingSpan != 10 || cfg.RisingMargin != 3 {
		t.Errorf("rising defaults = %d/%.1f, want 10/3.0", cfg.RisingSpan, cfg.RisingMargin)
	}
}

func TestAggregateEmotionWindow_ScenarioLevel(t *testing.T) {
	t.Parallel()

	// A sustained Sad run with no text signals: weight 3, level 1 entry.
	window := []EmotionSample{
		sample("Sad", 0.8, true),
		sample("Sad", 0.8, true),
		sample("Sad", 0.8, true),
	}
	signals, meta := ExtractEmotionSignals(EmotionConfig{}, window)
	a := Aggregate("s1", time.Unix(1, 0), signals, meta)
	if a.Score != 3 {
		t.Errorf("score = %d, want 3 from the sustained-affect signal alone", a.Score)
	}
}
