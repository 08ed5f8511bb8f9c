package scoring

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

// WebsiteDiligence rates how much of the diligence surface the company's
// site covers, from the website_intelligence payload. Out of 10: product 3,
// pricing and go-to-market 2, customer proof 2, technical 2, trust 1.
type WebsiteDiligence struct{}

// Name implements Agent.
func (WebsiteDiligence) Name() string { return "website_dd" }

// Max implements Agent.
func (WebsiteDiligence) Max() float64 { return 10 }

// Score implements Agent.
func (WebsiteDiligence) Score(_ context.Context, in Input) (*model.AgentScore, error) {
	s := &model.AgentScore{SubBreakdown: map[string]float64{}}
	p, ok := payload(in, "website_intelligence")
	if !ok {
		s.Confidence = model.ConfidenceLow
		s.Reasoning = "website intelligence not collected"
		return s, nil
	}

	paths := set(strs(p["paths"]))
	cats := set(strs(p["categories"]))
	sales, _ := p["sales_signals"].(map[string]any)

	var product, gtm, proof, tech, trust float64
	if cats["product"] {
		product += 1.5
		s.GreenFlags = append(s.GreenFlags, "product pages published")
	} else {
		s.RedFlags = append(s.RedFlags, "no product page on site")
	}
	if paths["/features"] {
		product++
	}
	if cats["technical_docs"] {
		product += 0.5
		tech++
		s.GreenFlags = append(s.GreenFlags, "public docs or API")
	}

	if cats["pricing"] {
		gtm++
		s.GreenFlags = append(s.GreenFlags, "public pricing")
	} else {
		s.RedFlags = append(s.RedFlags, "no public pricing")
	}
	if sales["has_free_trial"] == true || sales["has_demo_cta"] == true {
		gtm += 0.5
	}
	if sales["has_talk_to_sales"] == true || cats["enterprise"] {
		gtm += 0.5
	}

	if paths["/customers"] {
		proof++
	}
	if paths["/case-studies"] || paths["/testimonials"] {
		proof++
	}
	if proof == 0 {
		s.RedFlags = append(s.RedFlags, "no customer proof on site")
	}

	tools := 0
	if stack, ok := p["tech_stack"].(map[string]any); ok {
		for _, v := range stack {
			tools += len(strs(v))
		}
	}
	switch {
	case tools >= 3:
		tech++
	case tools >= 1:
		tech += 0.5
	}

	if paths["/security"] {
		trust += 0.5
	}
	if paths["/privacy"] {
		trust += 0.25
	}
	if paths["/compliance"] {
		trust += 0.25
	}

	s.SubBreakdown["product_clarity"] = product
	s.SubBreakdown["pricing_gtm_clarity"] = gtm
	s.SubBreakdown["customer_proof"] = proof
	s.SubBreakdown["technical_credibility"] = tech
	s.SubBreakdown["trust_compliance"] = trust
	s.SubScore = product + gtm + proof + tech + trust

	crawled := number(p["pages_crawled"])
	switch {
	case crawled >= 10:
		s.Confidence = model.ConfidenceHigh
	case crawled >= 5:
		s.Confidence = model.ConfidenceMedium
	default:
		s.Confidence = model.ConfidenceLow
	}
	s.Reasoning = fmt.Sprintf("%.0f site pages analyzed, sales motion %v", crawled, p["sales_motion"])
	return s, nil
}

var (
	exitPattern      = regexp.MustCompile(`\b(acquired by|was acquired|exited|exit to|sold (?:the company|it) to|ipo)\b`)
	topSchoolPattern = regexp.MustCompile(`\b(stanford|mit|harvard|berkeley|oxford|cambridge|caltech|princeton|carnegie mellon|eth zurich|iit)\b`)
	followerPattern  = regexp.MustCompile(`([\d][\d,.]*)\s*([km])?\s+followers`)
	employeePattern  = regexp.MustCompile(`([\d][\d,]*)\s*(?:-\s*[\d,]+\s*|\+\s*)?employees`)
	integerPattern   = regexp.MustCompile(`\d[\d,]*`)
)

// LinkedInSignals rates the team's public footprint out of 5: founder
// exits 2, top-tier education 1, company followers 1, headcount 1. It reads
// the linkedin, founder_profiles and company_profile payloads.
type LinkedInSignals struct{}

// Name implements Agent.
func (LinkedInSignals) Name() string { return "linkedin_signals" }

// Max implements Agent.
func (LinkedInSignals) Max() float64 { return 5 }

// Score implements Agent.
func (LinkedInSignals) Score(_ context.Context, in Input) (*model.AgentScore, error) {
	s := &model.AgentScore{SubBreakdown: map[string]float64{}}
	page, okPage := payload(in, "linkedin")
	founders, okFounders := payload(in, "founder_profiles")
	profile, okProfile := payload(in, "company_profile")
	if !okPage && !okFounders && !okProfile {
		s.Confidence = model.ConfidenceLow
		s.Reasoning = "no profile or founder research collected"
		return s, nil
	}

	var reasons []string
	research := strings.ToLower(fmt.Sprint(founders["summary"]))
	if okFounders && exitPattern.MatchString(research) {
		s.SubBreakdown["prior_exits"] = 2
		reasons = append(reasons, "founder with a prior exit")
		s.GreenFlags = append(s.GreenFlags, "founder with a prior exit")
	}
	if okFounders && topSchoolPattern.MatchString(research) {
		s.SubBreakdown["education"] = 1
		reasons = append(reasons, "top-tier education")
	}

	content := strings.ToLower(fmt.Sprint(page["content"]))
	if followers := firstCount(followerPattern, content); followers > 10000 {
		s.SubBreakdown["followers"] = 1
		reasons = append(reasons, fmt.Sprintf("%.0f followers", followers))
	} else if followers > 1000 {
		s.SubBreakdown["followers"] = 0.5
	}

	headcount := firstCount(employeePattern, content)
	if headcount == 0 && okProfile {
		headcount, _ = leadingNumber(fmt.Sprint(profile["headcount"]))
	}
	if headcount > 50 {
		s.SubBreakdown["headcount"] = 1
		reasons = append(reasons, fmt.Sprintf("%.0f+ employees", headcount))
	} else if headcount > 10 {
		s.SubBreakdown["headcount"] = 0.5
	}

	for _, v := range s.SubBreakdown {
		s.SubScore += v
	}
	s.Confidence = bandConfidence(s.SubScore, 3, 1)
	s.Reasoning = "profile data available but limited signals"
	if len(reasons) > 0 {
		s.Reasoning = strings.Join(reasons, "; ")
	}
	return s, nil
}

// FundingQuality rates the raise out of 4: named investors 2, total raised
// 1, round history 1. It reads the deck's funding facts and the
// company_profile payload.
type FundingQuality struct{}

// Name implements Agent.
func (FundingQuality) Name() string { return "funding_quality" }

// Max implements Agent.
func (FundingQuality) Max() float64 { return 4 }

// Score implements Agent.
func (FundingQuality) Score(_ context.Context, in Input) (*model.AgentScore, error) {
	s := &model.AgentScore{SubBreakdown: map[string]float64{}}
	var funding model.FundingFacts
	if in.Bundle != nil {
		funding = in.Bundle.Funding
	}
	profile, _ := payload(in, "company_profile")

	var reasons []string
	investors := known(strs(profile["key_investors"]))
	switch {
	case len(investors) >= 3:
		s.SubBreakdown["investors"] = 2
	case len(investors) >= 1:
		s.SubBreakdown["investors"] = 1
	}
	if len(investors) > 0 {
		reasons = append(reasons, "backed by "+strings.Join(investors, ", "))
	}

	raised, ok := parseUSD(funding.TotalRaised)
	if !ok {
		raised, ok = parseUSD(fmt.Sprint(profile["total_raised"]))
	}
	switch {
	case ok && raised >= 10_000_000:
		s.SubBreakdown["total_raised"] = 1
		s.GreenFlags = append(s.GreenFlags, fmt.Sprintf("$%.1fM raised", raised/1e6))
	case ok && raised >= 1_000_000:
		s.SubBreakdown["total_raised"] = 0.5
	}
	if ok {
		reasons = append(reasons, fmt.Sprintf("$%.1fM total raised", raised/1e6))
	}

	rounds := len(funding.PreviousRounds)
	switch {
	case rounds >= 3:
		s.SubBreakdown["rounds"] = 1
	case rounds >= 2:
		s.SubBreakdown["rounds"] = 0.5
	}
	if rounds > 0 {
		reasons = append(reasons, fmt.Sprintf("%d prior rounds", rounds))
	}

	for _, v := range s.SubBreakdown {
		s.SubScore += v
	}
	s.Confidence = bandConfidence(s.SubScore, 2.5, 1)
	s.Reasoning = "no funding history found"
	if len(reasons) > 0 {
		s.Reasoning = strings.Join(reasons, "; ")
	}
	return s, nil
}

var moneyPattern = regexp.MustCompile(`(?i)([\d][\d,]*(?:\.\d+)?)\s*(k|m|b|mm|thousand|million|billion|mn|bn)?\b`)

// parseUSD reads the first amount in a phrase such as "$12.5M" or
// "EUR 3 million". Currency is ignored.
func parseUSD(s string) (float64, bool) {
	if !model.Known(s) {
		return 0, false
	}
	m := moneyPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[2]) {
	case "k", "thousand":
		v *= 1e3
	case "m", "mm", "mn", "million":
		v *= 1e6
	case "b", "bn", "billion":
		v *= 1e9
	}
	return v, true
}

// leadingNumber reads the first integer in s, ignoring thousands
// separators.
func leadingNumber(s string) (float64, bool) {
	m := integerPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	return v, err == nil
}

func firstCount(re *regexp.Regexp, text string) float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	if len(m) > 2 {
		switch m[2] {
		case "k":
			v *= 1e3
		case "m":
			v *= 1e6
		}
	}
	return v
}

func bandConfidence(score, high, medium float64) model.Confidence {
	switch {
	case score >= high:
		return model.ConfidenceHigh
	case score >= medium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// strs reads a JSON array of strings, skipping other values.
func strs(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func known(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if model.Known(v) {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func set(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}
