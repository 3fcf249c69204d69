package enrich

import "regexp"

// benefitRule maps a canonical benefit tag to the regexes that detect
// it. A benefit is emitted on the first matching regex.
type benefitRule struct {
	tag      string
	patterns []*regexp.Regexp
}

var benefitRules = []benefitRule{
	{tag: "remote", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(fully\s+)?remote\b`),
		regexp.MustCompile(`(?i)\bwork from home\b`),
		regexp.MustCompile(`(?i)\bwfh\b`),
	}},
	{tag: "flexible_hours", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bflexible\s+(hours|schedule|working)\b`),
		regexp.MustCompile(`(?i)\bflex[- ]time\b`),
	}},
	{tag: "relocation", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\brelocation\b`),
		regexp.MustCompile(`(?i)\bvisa\s+(sponsorship|support)\b`),
	}},
	{tag: "health_insurance", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhealth\s+insurance\b`),
		regexp.MustCompile(`(?i)\bmedical\s+(cover|coverage|insurance)\b`),
		regexp.MustCompile(`(?i)\bdental\b`),
	}},
	{tag: "stock_options", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bstock\s+options?\b`),
		regexp.MustCompile(`(?i)\bequity\b`),
		regexp.MustCompile(`(?i)\bRSU`),
	}},
	{tag: "unlimited_pto", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bunlimited\s+(pto|vacation|holidays?)\b`),
	}},
	{tag: "conference_budget", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bconference\s+(budget|allowance)\b`),
		regexp.MustCompile(`(?i)\b(education|learning)\s+budget\b`),
	}},
	{tag: "parental_leave", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(parental|maternity|paternity)\s+leave\b`),
	}},
	{tag: "bonus", patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(annual|performance|signing)\s+bonus\b`),
		regexp.MustCompile(`(?i)\bbonus(es)?\b`),
	}},
}

// ExtractBenefits returns the canonical benefit tags present in the
// text, in dictionary order.
func ExtractBenefits(text string) []string {
	var tags []string
	for _, rule := range benefitRules {
		for _, p := range rule.patterns {
			if p.MatchString(text) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	return tags
}

var hybridPattern = regexp.MustCompile(`(?i)\bhybrid\b`)

// DetectsHybrid reports whether the text mentions a hybrid arrangement.
func DetectsHybrid(text string) bool {
	return hybridPattern.MatchString(text)
}

func hasBenefit(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
