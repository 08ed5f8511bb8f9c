package synth

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// Source ids that are not per page or per enrichment source.
const (
	SourceWebsite = "website"
	SourceProfile = "profile"
	SourceText    = "text"
	SourceScore   = "score"

	enrichmentPrefix = "enrichment:"
)

var markerRe = regexp.MustCompile(`\[SOURCE:\s*([^\]]+)\]`)

// KnownSources lists the ids a narrative may cite: one per extracted page
// or slide, one per contributing fetched input, one per successful
// enrichment record, and the score.
func KnownSources(bundle *model.ExtractionBundle, enrichment map[string]model.EnrichmentRecord) []string {
	var ids []string
	if bundle != nil {
		label := bundle.PageLabel
		if label == "" {
			label = "page"
		}
		for _, p := range bundle.Pages {
			if strings.TrimSpace(p.Text) != "" {
				ids = append(ids, fmt.Sprintf("%s-%d", label, p.Number))
			}
		}
		for _, k := range bundle.Inputs {
			switch k {
			case model.KindWebsite:
				ids = append(ids, SourceWebsite)
			case model.KindProfile:
				ids = append(ids, SourceProfile)
			case model.KindText:
				ids = append(ids, SourceText)
			}
		}
	}
	for _, name := range model.SucceededSources(enrichment) {
		ids = append(ids, enrichmentPrefix+name)
	}
	ids = append(ids, SourceScore)
	return ids
}

// Validate extracts every [SOURCE: id] marker in content with the claim it
// follows. Ids outside known are returned as unverified; membership is exact
// after trimming. A marker may name several ids separated by commas.
func Validate(content string, known map[string]bool) (cited, unverified []model.Citation) {
	cited, unverified = []model.Citation{}, []model.Citation{}
	prev := 0
	for _, m := range markerRe.FindAllStringSubmatchIndex(content, -1) {
		claim := claimBefore(content[prev:m[0]])
		prev = m[1]
		for _, id := range strings.Split(content[m[2]:m[3]], ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			c := model.Citation{Claim: claim, Source: id}
			cited = append(cited, c)
			if !known[id] {
				unverified = append(unverified, c)
			}
		}
	}
	return cited, unverified
}

// claimBefore returns the last sentence of the text preceding a marker.
func claimBefore(s string) string {
	s = strings.TrimLeft(s, ".!?;, \t")
	if i := strings.LastIndex(s, "\n"); i >= 0 && strings.TrimSpace(s[i+1:]) != "" {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(strings.TrimRight(s, ".!? "), sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return strings.TrimSpace(strings.TrimLeft(s, "-*# "))
}

func sourceSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
