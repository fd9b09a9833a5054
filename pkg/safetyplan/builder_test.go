package safetyplan

import (
	"strings"
	"testing"
	"time"
)

func TestBuild_DefaultsFillEveryField(t *testing.T) {
	t.Parallel()

	p := Build("s1", nil, time.Unix(100, 0))
	if p.SessionID != "s1" {
		t.Errorf("session = %q", p.SessionID)
	}
	for name, field := range map[string][]string{
		"warning signs":         p.WarningSigns,
		"coping strategies":     p.CopingStrategies,
		"support contacts":      p.SupportContacts,
		"professional contacts": p.ProfessionalContacts,
		"reasons to live":       p.ReasonsToLive,
	} {
		if len(field) == 0 {
			t.Errorf("%s left empty in default plan", name)
		}
	}
}

func TestBuild_PreferencesOverride(t *testing.T) {
	t.Parallel()

	prefs := &Preferences{
		WarningSigns:    []string{"staying in bed all day"},
		SupportContacts: []string{"Alex (sibling)"},
	}
	p := Build("s1", prefs, time.Unix(100, 0))

	if len(p.WarningSigns) != 1 || p.WarningSigns[0] != "staying in bed all day" {
		t.Errorf("warning signs = %v, want the customized list", p.WarningSigns)
	}
	if len(p.SupportContacts) != 1 || p.SupportContacts[0] != "Alex (sibling)" {
		t.Errorf("support contacts = %v", p.SupportContacts)
	}
	// Untouched fields keep defaults.
	if len(p.CopingStrategies) == 0 || len(p.ReasonsToLive) == 0 {
		t.Error("unset preference fields lost their defaults")
	}
}

func TestBuild_CopiesPreferenceSlices(t *testing.T) {
	t.Parallel()

	prefs := &Preferences{WarningSigns: []string{"original"}}
	p := Build("s1", prefs, time.Unix(100, 0))
	prefs.WarningSigns[0] = "mutated"
	if p.WarningSigns[0] != "original" {
		t.Error("plan aliases the caller's preference slice")
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	p := Build("s1", &Preferences{WarningSigns: []string{"racing thoughts"}}, time.Unix(100, 0))
	out := p.Render()

	if !strings.Contains(out, "Safety Plan") {
		t.Error("render missing header")
	}
	if !strings.Contains(out, "racing thoughts") {
		t.Error("render missing customized item")
	}
}
