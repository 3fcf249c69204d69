package enrich

import (
	"regexp"
	"strconv"

	"github.com/talentbridge/matchsync/internal/domain"
)

// seniorityPattern is one rung of the detection ladder. Patterns are
// evaluated in order lead → senior → mid → junior; first match wins.
type seniorityPattern struct {
	level    domain.SeniorityLevel
	patterns []*regexp.Regexp
}

var seniorityLadder = []seniorityPattern{
	{
		level: domain.SeniorityLead,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(lead|principal|staff|architect|head of)\b`),
			regexp.MustCompile(`(?i)\b(1[0-9]|[2-9][0-9])\+?\s*(years?|yrs?)`),
		},
	},
	{
		level: domain.SenioritySenior,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bsenior\b`),
			regexp.MustCompile(`(?i)\b[5-9]\+?\s*(years?|yrs?)`),
		},
	},
	{
		level: domain.SeniorityMid,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(middle|mid-level|mid level)\b`),
			regexp.MustCompile(`(?i)\b[3-4]\+?\s*(years?|yrs?)`),
		},
	},
	{
		level: domain.SeniorityJunior,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(junior|entry[- ]level|intern|trainee|graduate)\b`),
			regexp.MustCompile(`(?i)\b0\s*[-–]\s*2\s*(years?|yrs?)`),
		},
	},
}

// DetectSeniority walks the pattern ladder and returns the first level
// whose patterns match. Defaults to mid when nothing matches.
func DetectSeniority(text string) domain.SeniorityLevel {
	for _, rung := range seniorityLadder {
		for _, p := range rung.patterns {
			if p.MatchString(text) {
				return rung.level
			}
		}
	}
	return domain.SeniorityMid
}

// yearsWindow limits the years-of-experience scan per spec.
const yearsWindow = 5000

// Years-of-experience clamp bounds.
const (
	minYears = 0
	maxYears = 60
)

var yearsPattern = regexp.MustCompile(`(?i)(\d+)\s*(years?|yrs?)`)

// ExtractYears finds the first years-of-experience mention within the
// first 5000 characters, clamped to [0, 60]. Defaults to 0.
func ExtractYears(text string) int {
	window := text
	if len(window) > yearsWindow {
		window = window[:yearsWindow]
	}

	m := yearsPattern.FindStringSubmatch(window)
	if m == nil {
		return 0
	}
	years, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	if years < minYears {
		return minYears
	}
	if years > maxYears {
		return maxYears
	}
	return years
}
