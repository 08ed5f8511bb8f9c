package model

import (
	"sort"
	"time"
)

// EnrichmentRecord is the outcome of one external source lookup. Exactly
// one of Payload or Error is set.
type EnrichmentRecord struct {
	Source     string         `json:"source"`
	Payload    map[string]any `json:"payload,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timeout    bool           `json:"timeout,omitempty"`
	FetchedAt  time.Time      `json:"fetched_at"`
	DurationMs int64          `json:"duration_ms"`
}

// OK reports whether the lookup produced a payload.
func (r EnrichmentRecord) OK() bool {
	return r.Error == "" && r.Payload != nil
}

// SucceededSources returns the sorted names of sources with payloads.
func SucceededSources(records map[string]EnrichmentRecord) []string {
	var out []string
	for name, r := range records {
		if r.OK() {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
