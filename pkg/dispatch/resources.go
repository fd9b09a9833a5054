package dispatch

import "vigil/pkg/escalation"

// Resource is one crisis support resource surfaced to the user-facing layer.
type Resource struct {
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	Text        string `json:"text,omitempty"`
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`
}

// Catalog is the fixed crisis resource table. Loaded once; immutable.
type Catalog struct {
	resources []Resource
}

// DefaultCatalog returns the built-in resource table.
func DefaultCatalog() Catalog {
	return Catalog{resources: []Resource{
		{
			Name:        "988 Suicide & Crisis Lifeline",
			Phone:       "988",
			Text:        "Text HOME to 741741",
			Website:     "https://988lifeline.org",
			Description: "24/7 crisis support for suicide prevention",
		},
		{
			Name:        "Crisis Text Line",
			Text:        "Text HOME to 741741",
			Website:     "https://www.crisistextline.org",
			Description: "24/7 crisis support via text message",
		},
		{
			Name:        "Emergency Services",
			Phone:       "911",
			Description: "For immediate life-threatening emergencies",
		},
		{
			Name:        "SAMHSA National Helpline",
			Phone:       "1-800-662-4357",
			Website:     "https://www.samhsa.gov/find-help/national-helpline",
			Description: "Substance abuse and mental health services",
		},
		{
			Name:        "The Trevor Project",
			Phone:       "1-866-488-7386",
			Text:        "Text START to 678678",
			Website:     "https://www.thetrevorproject.org",
			Description: "Crisis support for LGBTQ+ youth",
		},
		{
			Name:        "Veterans Crisis Line",
			Phone:       "988, then press 1",
			Text:        "Text 838255",
			Website:     "https://www.veteranscrisisline.net",
			Description: "Crisis support for veterans",
		},
	}}
}

// ForLevel returns the resources attached to notifications at the given
// level. Levels below moderate get none; emergency gets the full table with
// emergency services first.
func (c Catalog) ForLevel(l escalation.Level) []Resource {
	switch {
	case l < escalation.LevelModerate:
		return nil
	case l >= escalation.LevelCrisis:
		out := make([]Resource, 0, len(c.resources))
		for _, r := range c.resources {
			if r.Name == "Emergency Services" {
				out = append([]Resource{r}, out...)
				continue
			}
			out = append(out, r)
		}
		return out
	default:
		// Crisis lifeline, text line, and the helpline set without 911.
		out := make([]Resource, 0, len(c.resources))
		for _, r := range c.resources {
			if r.Name == "Emergency Services" {
				continue
			}
			out = append(out, r)
		}
		return out
	}
}
