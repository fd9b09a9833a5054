package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"vigil/pkg/dispatch"
	"vigil/pkg/escalation"
	"vigil/pkg/risk"
)

// Config is the full configuration surface of the escalation engine, loaded
// once from vigil.toml at process start and treated as immutable thereafter.
type Config struct {
	DBPath      string `toml:"db_path"`      // audit database path
	SocketPath  string `toml:"socket_path"`  // collaborator feed socket
	SpoolDir    string `toml:"spool_dir"`    // optional file-drop ingest directory
	LexiconPath string `toml:"lexicon_path"` // optional YAML lexicon override
	LogFile     string `toml:"log_file"`
	LogLevel    string `toml:"log_level"`

	WindowCap int `toml:"emotion_window"` // bounded emotion history per session

	Escalation EscalationConfig `toml:"escalation"`
	Emotion    EmotionConfig    `toml:"emotion"`
	Sentiment  SentimentConfig  `toml:"sentiment"`
	Dispatch   DispatchConfig   `toml:"dispatch"`
}

// EscalationConfig mirrors escalation.Config in TOML form.
type EscalationConfig struct {
	// Thresholds are the entry scores for levels 1 through 4.
	Thresholds      []int `toml:"risk_thresholds"`
	HysteresisCount int   `toml:"hysteresis_count"`
}

// EmotionConfig mirrors risk.EmotionConfig in TOML form.
type EmotionConfig struct {
	NegativeEmotions    []string `toml:"negative_emotions"`
	MinSustained        int      `toml:"min_sustained_samples"`
	SustainedConfidence float64  `toml:"sustained_confidence"`
	RatioThreshold      float64  `toml:"negative_ratio_threshold"`
	VolatilityThreshold float64  `toml:"volatility_threshold"`
}

// SentimentConfig holds the sentiment-extreme thresholds.
type SentimentConfig struct {
	ExtremeThreshold float64 `toml:"extreme_threshold"`
	MildThreshold    float64 `toml:"mild_threshold"`
}

// DispatchConfig mirrors dispatch.Config in TOML form, durations in
// milliseconds.
type DispatchConfig struct {
	EmergencyTimeoutMS int `toml:"emergency_dispatch_timeout_ms"`
	CallTimeoutMS      int `toml:"call_timeout_ms"`
	RetryAttempts      int `toml:"retry_attempts"`
	RetryBackoffMS     int `toml:"retry_backoff_ms"`
}

// WithDefaults fills unset behavioral fields with the reference
// configuration. Path fields (DBPath, SocketPath, SpoolDir, LogFile) are
// left empty: the caller resolves those against its home directory, and a
// premature default here would shadow that resolution.
func (c Config) WithDefaults() Config {
	out := c
	if out.LogLevel == "" {
		out.LogLevel = "info"
	}
	if out.WindowCap == 0 {
		out.WindowCap = risk.DefaultWindowCap
	}
	if len(out.Escalation.Thresholds) == 0 {
		out.Escalation.Thresholds = []int{3, 5, 7, 9}
	}
	if out.Escalation.HysteresisCount == 0 {
		out.Escalation.HysteresisCount = 3
	}
	if out.Sentiment.ExtremeThreshold == 0 {
		out.Sentiment.ExtremeThreshold = -0.5
	}
	if out.Sentiment.MildThreshold == 0 {
		out.Sentiment.MildThreshold = -0.2
	}
	return out
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if len(c.Escalation.Thresholds) != 4 {
		return fmt.Errorf("escalation.risk_thresholds must list exactly 4 entry scores, got %d", len(c.Escalation.Thresholds))
	}
	return c.EscalationConfig().Validate()
}

// Load reads a TOML config file and applies defaults. A missing path returns
// the pure defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}.WithDefaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// EscalationConfig converts to the state machine's config type.
func (c Config) EscalationConfig() escalation.Config {
	var t [4]int
	copy(t[:], c.Escalation.Thresholds)
	return escalation.Config{Thresholds: t, HysteresisCount: c.Escalation.HysteresisCount}
}

// EmotionConfig converts to the extractor's config type.
func (c Config) EmotionConfig() risk.EmotionConfig {
	return risk.EmotionConfig{
		Negative:            c.Emotion.NegativeEmotions,
		MinSustained:        c.Emotion.MinSustained,
		SustainedConfidence: c.Emotion.SustainedConfidence,
		RatioThreshold:      c.Emotion.RatioThreshold,
		VolatilityThreshold: c.Emotion.VolatilityThreshold,
	}.WithDefaults()
}

// SentimentRiskConfig converts to the extractor's sentiment thresholds.
func (c Config) SentimentRiskConfig() risk.SentimentConfig {
	return risk.SentimentConfig{Extreme: c.Sentiment.ExtremeThreshold, Mild: c.Sentiment.MildThreshold}
}

// DispatchRuntimeConfig converts to the dispatcher's config type.
func (c Config) DispatchRuntimeConfig() dispatch.Config {
	return dispatch.Config{
		EmergencyTimeout: time.Duration(c.Dispatch.EmergencyTimeoutMS) * time.Millisecond,
		CallTimeout:      time.Duration(c.Dispatch.CallTimeoutMS) * time.Millisecond,
		RetryAttempts:    c.Dispatch.RetryAttempts,
		RetryBackoff:     time.Duration(c.Dispatch.RetryBackoffMS) * time.Millisecond,
	}
}

// Lexicon loads the configured lexicon override, or the built-in default.
func (c Config) Lexicon() (*risk.CompiledLexicon, error) {
	if c.LexiconPath == "" {
		return risk.MustCompileDefault(), nil
	}
	return risk.LoadLexicon(c.LexiconPath)
}
