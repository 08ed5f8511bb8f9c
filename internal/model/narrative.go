package model

import "time"

// SectionPlaceholder replaces the content of a section whose generation failed.
const SectionPlaceholder = "[Section unavailable: generation failed]"

// Citation is a claim paired with the source marker that follows it.
type Citation struct {
	Claim  string `json:"claim"`
	Source string `json:"source"`
}

// Section is one independently generated part of the narrative.
type Section struct {
	Key        string     `json:"key"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Failed     bool       `json:"failed,omitempty"`
	Error      string     `json:"error,omitempty"`
	Attempts   int        `json:"attempts"`
	Citations  []Citation `json:"citations"`
	Unverified []Citation `json:"unverified_citations"`
}

// NarrativeDocument is the ordered list of sections for a deal.
type NarrativeDocument struct {
	Sections     []Section `json:"sections"`
	KnownSources []string  `json:"known_sources"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Section returns the section with the given key.
func (d *NarrativeDocument) Section(key string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return Section{}, false
}

// UnverifiedCount totals unverified citations across sections.
func (d *NarrativeDocument) UnverifiedCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Unverified)
	}
	return n
}
