package enrich

import (
	"regexp"
	"strings"

	"github.com/talentbridge/matchsync/internal/domain"
)

// Minimum skill levels assigned from proximity qualifiers.
const (
	levelExpert  = 4
	levelStrong  = 3
	levelDefault = 2
	levelBasic   = 1
)

// qualifierWindow is how far (in bytes) a qualifier may sit from the
// skill mention it modifies.
const qualifierWindow = 60

var (
	expertQualifiers = regexp.MustCompile(`(?i)\b(expert|advanced|deep|extensive)\b`)
	strongQualifiers = regexp.MustCompile(`(?i)\b(strong|solid|proficient|production)\b`)
	basicQualifiers  = regexp.MustCompile(`(?i)\b(basic|familiar|exposure|nice to have)\b`)
	requiredMarkers  = regexp.MustCompile(`(?i)\b(required|must[- ]have|mandatory|essential)\b`)
)

// requiredLevelFor derives the minimum level a job asks for in a skill
// from qualifier words near the mention. Defaults to 2.
func requiredLevelFor(job *domain.Job, skill string) int {
	window := textAround(strings.ToLower(job.FreeText()), skill)
	if window == "" {
		return levelDefault
	}
	switch {
	case expertQualifiers.MatchString(window):
		return levelExpert
	case strongQualifiers.MatchString(window):
		return levelStrong
	case basicQualifiers.MatchString(window):
		return levelBasic
	default:
		return levelDefault
	}
}

// isRequiredSkill reports whether a job lists the skill as a hard
// requirement: either the skill appears in the requirements section, or
// a requirement marker sits next to the mention.
func isRequiredSkill(job *domain.Job, skill string) bool {
	if strings.Contains(strings.ToLower(job.Requirements), skill) {
		return true
	}
	window := textAround(strings.ToLower(job.FreeText()), skill)
	return window != "" && requiredMarkers.MatchString(window)
}

// textAround returns a window of text around the first occurrence of
// needle, or "" when absent.
func textAround(lowered, needle string) string {
	idx := strings.Index(lowered, needle)
	if idx < 0 {
		return ""
	}
	start := idx - qualifierWindow
	if start < 0 {
		start = 0
	}
	end := idx + len(needle) + qualifierWindow
	if end > len(lowered) {
		end = len(lowered)
	}
	return lowered[start:end]
}

// locationCodes maps known city names to normalized location codes.
var locationCodes = map[string]string{
	"new york":      "US-NYC",
	"san francisco": "US-SFO",
	"austin":        "US-AUS",
	"seattle":       "US-SEA",
	"london":        "GB-LON",
	"berlin":        "DE-BER",
	"munich":        "DE-MUC",
	"amsterdam":     "NL-AMS",
	"paris":         "FR-PAR",
	"warsaw":        "PL-WAW",
	"toronto":       "CA-TOR",
	"vancouver":     "CA-VAN",
	"lisbon":        "PT-LIS",
	"madrid":        "ES-MAD",
	"dublin":        "IE-DUB",
}

// NormalizeLocation maps a free-text location to a code. Remote-only
// postings normalize to REMOTE; unknown locations keep an uppercased
// short form of the raw string so they stay comparable.
func NormalizeLocation(raw string, remote bool) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	for city, code := range locationCodes {
		if strings.Contains(lowered, city) {
			return code
		}
	}
	if remote || strings.Contains(lowered, "remote") {
		return "REMOTE"
	}
	if lowered == "" {
		return ""
	}
	// keep the first token, uppercased, as a stable fallback code
	first := strings.FieldsFunc(lowered, func(r rune) bool { return r == ',' || r == '/' })[0]
	return strings.ToUpper(strings.TrimSpace(first))
}
