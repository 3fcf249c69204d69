package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/talentbridge/matchsync/internal/domain"
)

// Skill level ladder from years of hands-on use.
const (
	yearsForLevel5 = 8
	yearsForLevel4 = 5
	yearsForLevel3 = 3
	yearsForLevel2 = 1
)

// levelFromYears maps years of use to the 1..5 skill level scale.
func levelFromYears(years int) int {
	switch {
	case years >= yearsForLevel5:
		return 5
	case years >= yearsForLevel4:
		return 4
	case years >= yearsForLevel3:
		return 3
	case years >= yearsForLevel2:
		return 2
	default:
		return 1
	}
}

var skillYearsSuffix = regexp.MustCompile(`^\s*[:(–-]?\s*(\d+)\+?\s*(years?|yrs?)`)

// skillYears extracts per-skill years from a "skill: N years" style
// mention. When the resume does not qualify the skill, half of the
// total experience is assumed, at least one year.
func skillYears(text, skill string, totalYears int) int {
	lowered := strings.ToLower(text)
	idx := strings.Index(lowered, skill)
	if idx >= 0 {
		rest := lowered[idx+len(skill):]
		if m := skillYearsSuffix.FindStringSubmatch(rest); m != nil {
			if y, err := strconv.Atoi(m[1]); err == nil {
				if y > maxYears {
					y = maxYears
				}
				return y
			}
		}
	}

	assumed := totalYears / 2
	if assumed < 1 {
		assumed = 1
	}
	return assumed
}

// roleRule maps a primary-role label to its detection keywords.
type roleRule struct {
	label    string
	keywords []string
}

var roleRules = []roleRule{
	{"backend engineer", []string{"backend", "back-end", "server-side"}},
	{"frontend engineer", []string{"frontend", "front-end", "ui engineer"}},
	{"fullstack engineer", []string{"fullstack", "full-stack", "full stack"}},
	{"devops engineer", []string{"devops", "sre", "site reliability", "platform engineer"}},
	{"data engineer", []string{"data engineer", "data pipeline", "etl"}},
	{"mobile engineer", []string{"mobile", "ios", "android"}},
	{"qa engineer", []string{"qa ", "quality assurance", "test automation"}},
	{"engineering manager", []string{"engineering manager", "team lead", "head of engineering"}},
	{"software engineer", []string{"software engineer", "software developer", "programmer"}},
}

// DetectPrimaryRole returns the first matching role label; "software
// engineer" is the fallback.
func DetectPrimaryRole(text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range roleRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.label
			}
		}
	}
	return "software engineer"
}

var educationPattern = regexp.MustCompile(
	`(?i)(university|institute|college|bachelor|master|phd|b\.?sc|m\.?sc)[^\n.]{0,80}`)

var educationYearPattern = regexp.MustCompile(`\b(19[7-9]\d|20[0-4]\d)\b`)

// ExtractEducation pulls education entries from resume text. Each
// matched line becomes one entry; a four-digit year nearby is attached.
func ExtractEducation(text string) []domain.Education {
	matches := educationPattern.FindAllString(text, 5)
	if len(matches) == 0 {
		return nil
	}

	entries := make([]domain.Education, 0, len(matches))
	seen := map[string]bool{}
	for _, m := range matches {
		entry := domain.Education{Institution: strings.TrimSpace(m)}
		if y := educationYearPattern.FindString(m); y != "" {
			year, _ := strconv.Atoi(y)
			entry.Year = year
		}
		key := strings.ToLower(entry.Institution)
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, entry)
	}
	return entries
}

var languageNames = []string{
	"english", "german", "french", "spanish", "portuguese", "italian",
	"dutch", "polish", "russian", "ukrainian", "mandarin", "japanese",
}

// ExtractLanguages returns communication languages mentioned in the text.
func ExtractLanguages(text string) []string {
	lowered := strings.ToLower(text)
	var langs []string
	for _, name := range languageNames {
		if strings.Contains(lowered, name) {
			langs = append(langs, name)
		}
	}
	return langs
}
