package risk

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is one weighted category of the crisis lexicon. Keywords are matched
// as case-insensitive substrings; Patterns are regexps matched against the
// lowercased text.
type Tier struct {
	Name     string   `yaml:"name"`
	Weight   int      `yaml:"weight"`
	Imminent bool     `yaml:"imminent,omitempty"`
	Keywords []string `yaml:"keywords"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// Lexicon is the serializable form of the crisis lexicon. It is loaded once
// at process start and compiled; the compiled form is immutable thereafter.
type Lexicon struct {
	Tiers     []Tier   `yaml:"tiers"`
	Intensity []string `yaml:"intensity,omitempty"` // amplifier words, each worth one point
}

// compiledTier is a Tier with its patterns compiled.
type compiledTier struct {
	Tier
	patterns []*regexp.Regexp
}

// CompiledLexicon is the immutable, match-ready form of a Lexicon. Construct
// with Lexicon.Compile; share freely across goroutines.
type CompiledLexicon struct {
	tiers     []compiledTier
	intensity []string
}

// Compile validates every pattern in the lexicon and returns the match-ready
// form. A tier with a non-positive weight or an invalid regexp is a
// configuration error, not something to silently skip.
func (l Lexicon) Compile() (*CompiledLexicon, error) {
	out := &CompiledLexicon{intensity: l.Intensity}
	for _, t := range l.Tiers {
		if t.Weight <= 0 {
			return nil, fmt.Errorf("lexicon tier %q: weight must be positive, got %d", t.Name, t.Weight)
		}
		ct := compiledTier{Tier: t}
		for _, p := range t.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("lexicon tier %q: compile pattern %q: %w", t.Name, p, err)
			}
			ct.patterns = append(ct.patterns, re)
		}
		out.tiers = append(out.tiers, ct)
	}
	return out, nil
}

// LoadLexicon reads a YAML lexicon override file and compiles it.
func LoadLexicon(path string) (*CompiledLexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	if len(lex.Tiers) == 0 {
		return nil, fmt.Errorf("lexicon %s: no tiers defined", path)
	}
	return lex.Compile()
}

// DefaultLexicon returns the built-in weighted lexicon. Tier names, keywords,
// and weights follow the clinical-adjacent categories the product shipped
// with; deployments are expected to tune them via a lexicon override file.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Tiers: []Tier{
			{
				Name:     "suicidal_ideation",
				Weight:   5,
				Imminent: true,
				Keywords: []string{
					"suicide", "kill myself", "end it all", "not worth living",
					"better off dead", "want to die", "end my life", "suicidal",
				},
				Patterns: []string{
					`i want to (die|kill myself|end it all)`,
					`i should (die|kill myself)`,
					`i wish i was (dead|gone)`,
					`i have no reason to live`,
				},
			},
			{
				Name:   "self_harm",
				Weight: 4,
				Keywords: []string{
					"cut myself", "hurt myself", "self harm", "burn myself",
					"hit myself", "punish myself", "hurt my body",
				},
				Patterns: []string{
					`i want to (cut|hurt|burn) myself`,
					`i deserve to be (hurt|punished)`,
					`i should (cut|hurt) myself`,
				},
			},
			{
				Name:   "hopelessness",
				Weight: 3,
				Keywords: []string{
					"hopeless", "worthless", "useless", "no point",
					"nothing will help", "give up", "no future",
				},
				Patterns: []string{
					`there'?s no (point|hope|future)`,
					`i'?m (worthless|useless|a burden)`,
					`nothing will (help|change|get better)`,
					`i can'?t go on`,
				},
			},
			{
				Name:   "substance_abuse",
				Weight: 3,
				Keywords: []string{
					"overdose", "can't stop drinking", "addicted",
				},
				Patterns: []string{
					`i need to (drink|use|take)`,
					`i can'?t stop (drinking|using)`,
					`i want to (overdose|take too much)`,
				},
			},
			{
				Name:   "trauma",
				Weight: 3,
				Keywords: []string{
					"flashback", "nightmare", "ptsd", "triggered", "reliving",
				},
				Patterns: []string{
					`i keep (reliving|remembering)`,
					`i can'?t (forget|stop thinking about)`,
				},
			},
			{
				Name:   "isolation",
				Weight: 2,
				Keywords: []string{
					"nobody cares", "no one understands", "isolated",
					"abandoned", "rejected",
				},
				Patterns: []string{
					`nobody (cares|understands|loves) me`,
					`i'?m (alone|isolated|abandoned)`,
				},
			},
		},
		Intensity: []string{
			"extremely", "terribly", "awfully", "completely", "totally", "absolutely",
		},
	}
}

// MustCompileDefault compiles the built-in lexicon. The default lexicon is
// covered by tests, so a compile failure here is a programming error.
func MustCompileDefault() *CompiledLexicon {
	cl, err := DefaultLexicon().Compile()
	if err != nil {
		panic("risk: default lexicon does not compile: " + err.Error())
	}
	return cl
}

// normalize lowercases text for matching. Matching is substring-based, so
// punctuation is left alone; the pattern tier handles phrase structure.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
