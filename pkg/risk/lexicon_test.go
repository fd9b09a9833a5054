package risk

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultLexiconCompiles(t *testing.T) {
	t.Parallel()

	cl, err := DefaultLexicon().Compile()
	if err != nil {
		t.Fatalf("default lexicon: %v", err)
	}
	if len(cl.tiers) != 6 {
		t.Errorf("tiers = %d, want 6", len(cl.tiers))
	}
}

func TestCompile_RejectsBadWeight(t *testing.T) {
	t.Parallel()

	lex := Lexicon{Tiers: []Tier{{Name: "bad", Weight: 0, Keywords: []string{"x"}}}}
	if _, err := lex.Compile(); err == nil {
		t.Error("expected error for non-positive weight")
	}

	lex.Tiers[0].Weight = -2
	if _, err := lex.Compile(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestCompile_RejectsBadPattern(t *testing.T) {
	t.Parallel()

	lex := Lexicon{Tiers: []Tier{{Name: "bad", Weight: 3, Patterns: []string{"i feel ("}}}}
	if _, err := lex.Compile(); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func TestLoadLexicon(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	content := `tiers:
  - name: custom
    weight: 4
    imminent: true
    keywords: ["red flag"]
    patterns: ["i am (done|finished)"]
intensity: ["very"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cl, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon: %v", err)
	}

	signals := ExtractTextSignals(cl, "this is a very red flag, I am done")
	var keyword, pattern, amplifier bool
	for _, s := range signals {
		switch {
		case s.Kind == KindKeywordMatch && s.Weight == 4:
			keyword = true
			if !s.Imminent {
				t.Error("imminent flag from YAML not honored")
			}
		case s.Kind == KindPatternMatch:
			pattern = true
		case s.Weight == 1:
			amplifier = true
		}
	}
	if !keyword || !pattern || !amplifier {
		t.Errorf("keyword=%v pattern=%v amplifier=%v in %v", keyword, pattern, amplifier, signals)
	}
}

func TestLoadLexicon_Missing(t *testing.T) {
	t.Parallel()

	if _, err := LoadLexicon(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadLexicon_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("intensity: [very]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadLexicon(path); err == nil {
		t.Error("expected error for lexicon without tiers")
	}
}
