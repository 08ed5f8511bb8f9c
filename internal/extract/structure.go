package extract

import (
	"context"
	"fmt"

	"github.com/maroofsyyed/Duesense1/internal/llm"
	"github.com/maroofsyyed/Duesense1/internal/model"
)

const structureSystem = `You are a precise data extraction assistant for venture capital due diligence.
Output ONLY a valid JSON object. No markdown, no code fences, no commentary.
Copy values verbatim from the source text. Never infer, estimate, round or guess.
Use the string "not_mentioned" for any fact the text does not state explicitly.`

const structurePrompt = `Extract the company facts from the material below into this JSON structure.
Every string value must be copied from the text or be "not_mentioned". Lists may be empty.

{
  "company": {"name": "", "tagline": "", "founded": "", "hq_location": "", "website": "", "stage": "", "industry": ""},
  "founders": [{"name": "", "role": "", "linkedin": "", "github": "", "previous_companies": [], "education": ""}],
  "problem": {"statement": "", "market_pain": ""},
  "solution": {"product_description": "", "key_features": [], "technology_stack": []},
  "market": {"tam": "", "sam": "", "som": "", "growth_rate": "", "target_customers": ""},
  "traction": {"revenue": "", "customers": "", "growth_rate": "", "key_metrics": []},
  "business_model": {"type": "", "pricing": "", "unit_economics": ""},
  "funding": {"seeking": "", "total_raised": "", "valuation": "", "previous_rounds": []},
  "competitive_advantages": [],
  "risks": []
}

key_metrics, previous_rounds and every other list hold plain strings quoted from the text.

SOURCE MATERIAL:
%s`

func str() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

func strList() map[string]any {
	return map[string]any{
		"type":  []string{"array", "null"},
		"items": map[string]any{"type": []string{"string", "null"}},
	}
}

func object(fields ...string) map[string]any {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = str()
	}
	return map[string]any{"type": "object", "properties": props}
}

func withLists(obj map[string]any, lists ...string) map[string]any {
	props := obj["properties"].(map[string]any)
	for _, l := range lists {
		props[l] = strList()
	}
	return obj
}

// bundleSchema checks the shape of the structuring answer. Leaves may be
// null; Normalize turns those into not_mentioned. It is lenient, so a
// mistyped field defaults on its own instead of voiding the bundle.
var bundleSchema = llm.MustCompileSchema("extraction_bundle", map[string]any{
	"type":     "object",
	"required": []string{"company"},
	"properties": map[string]any{
		"company": object("name", "tagline", "founded", "hq_location", "website", "stage", "industry"),
		"founders": map[string]any{
			"type":  []string{"array", "null"},
			"items": withLists(object("name", "role", "linkedin", "github", "education"), "previous_companies"),
		},
		"problem":                object("statement", "market_pain"),
		"solution":               withLists(object("product_description"), "key_features", "technology_stack"),
		"market":                 object("tam", "sam", "som", "growth_rate", "target_customers"),
		"traction":               withLists(object("revenue", "customers", "growth_rate"), "key_metrics"),
		"business_model":         object("type", "pricing", "unit_economics"),
		"funding":                withLists(object("seeking", "total_raised", "valuation"), "previous_rounds"),
		"competitive_advantages": strList(),
		"risks":                  strList(),
	},
}).Lenient()

// structure asks the quality model to copy facts out of text.
func structure(ctx context.Context, gen llm.Generator, text string) (*model.ExtractionBundle, error) {
	bundle, _, err := llm.GenerateJSON[model.ExtractionBundle](ctx, gen, llm.Request{
		Operation: "extract.structure",
		System:    structureSystem,
		Prompt:    fmt.Sprintf(structurePrompt, text),
		Variant:   llm.VariantQuality,
	}, bundleSchema)
	if err != nil {
		return nil, err
	}
	return &bundle, nil
}
