// Package safetyplan constructs structured, user-customizable safety plan
// documents. A plan is created on demand when a safety-plan offer is
// accepted, or mandatorily with defaults on entry to the high-risk level. A
// plan with all-default content is valid; no field is ever left empty.
package safetyplan

import (
	"strings"
	"time"
)

// Plan is one safety plan record. Immutable after user confirmation;
// superseding a plan appends a new record rather than overwriting.
type Plan struct {
	SessionID            string    `json:"session_id"`
	CreatedAt            time.Time `json:"created_at"`
	WarningSigns         []string  `json:"warning_signs"`
	CopingStrategies     []string  `json:"coping_strategies"`
	SupportContacts      []string  `json:"support_contacts"`
	ProfessionalContacts []string  `json:"professional_contacts"`
	ReasonsToLive        []string  `json:"reasons_to_live"`
}

// Preferences carries the caller's customizations. Any nil field keeps the
// default guidance text.
type Preferences struct {
	WarningSigns         []string
	CopingStrategies     []string
	SupportContacts      []string
	ProfessionalContacts []string
	ReasonsToLive        []string
}

// Build constructs a plan for the session, filling every field the
// preferences leave blank with default guidance.
func Build(sessionID string, prefs *Preferences, now time.Time) Plan {
	p := Plan{
		SessionID:            sessionID,
		CreatedAt:            now,
		WarningSigns:         defaultWarningSigns(),
		CopingStrategies:     defaultCopingStrategies(),
		SupportContacts:      defaultSupportContacts(),
		ProfessionalContacts: defaultProfessionalContacts(),
		ReasonsToLive:        defaultReasonsToLive(),
	}
	if prefs == nil {
		return p
	}
	if len(prefs.WarningSigns) > 0 {
		p.WarningSigns = append([]string(nil), prefs.WarningSigns...)
	}
	if len(prefs.CopingStrategies) > 0 {
		p.CopingStrategies = append([]string(nil), prefs.CopingStrategies...)
	}
	if len(prefs.SupportContacts) > 0 {
		p.SupportContacts = append([]string(nil), prefs.SupportContacts...)
	}
	if len(prefs.ProfessionalContacts) > 0 {
		p.ProfessionalContacts = append([]string(nil), prefs.ProfessionalContacts...)
	}
	if len(prefs.ReasonsToLive) > 0 {
		p.ReasonsToLive = append([]string(nil), prefs.ReasonsToLive...)
	}
	return p
}

// Render formats the plan as display text for the notification payload.
func (p Plan) Render() string {
	var b strings.Builder
	b.WriteString("Safety Plan\n")
	section(&b, "Warning signs to watch for", p.WarningSigns)
	section(&b, "Coping strategies", p.CopingStrategies)
	section(&b, "People I can reach out to", p.SupportContacts)
	section(&b, "Professional contacts", p.ProfessionalContacts)
	section(&b, "Reasons to live", p.ReasonsToLive)
	return b.String()
}

func section(b *strings.Builder, title string, items []string) {
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString(":\n")
	for _, item := range items {
		b.WriteString("  - ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func defaultWarningSigns() []string {
	return []string{
		"Feeling hopeless or worthless",
		"Thoughts of self-harm",
		"Withdrawing from people",
		"Increased substance use",
		"Sleep or appetite changes",
	}
}

func defaultCopingStrategies() []string {
	return []string{
		"Slow, deep breathing for two minutes",
		"Calling a trusted friend or family member",
		"Going for a walk",
		"Listening to calming music",
		"Grounding: name five things you can see",
	}
}

func defaultSupportContacts() []string {
	return []string{
		"A family member I trust",
		"A close friend",
		"A support group",
	}
}

func defaultProfessionalContacts() []string {
	return []string{
		"Therapist or counselor",
		"Primary care doctor",
		"988 Suicide & Crisis Lifeline",
		"Crisis Text Line: text HOME to 741741",
	}
}

func defaultReasonsToLive() []string {
	return []string{
		"The people who care about me",
		"Things I still want to see and do",
		"Moments that have felt better before and can again",
	}
}
