package enrich

import (
	"regexp"
	"strconv"
	"strings"
)

// SalaryRange is the normalized salary extraction result. Min or Max is
// nil when the corresponding bound was not found in the text.
type SalaryRange struct {
	Min      *int
	Max      *int
	Currency string
}

// Figures below this are treated as thousands ("100k" == "100000").
const thousandsCutoff = 1000

var (
	salaryMinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)from\s+\$?\s*([\d][\d,.]*)\s*k?`),
		regexp.MustCompile(`(?i)\$\s*([\d][\d,.]*)\s*k?`),
		regexp.MustCompile(`(?i)([\d][\d,.]*)\s*k?\s*(usd|eur|gbp)`),
	}
	salaryMaxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:to|up to)\s+\$?\s*([\d][\d,.]*)\s*k?`),
		regexp.MustCompile(`(?i)[-–]\s*\$\s*([\d][\d,.]*)\s*k?`),
		regexp.MustCompile(`(?i)([\d][\d,.]*)\s*k\s*\$`),
	}
	currencyPatterns = []struct {
		pattern *regexp.Regexp
		code    string
	}{
		{regexp.MustCompile(`\$|(?i)\busd\b`), "USD"},
		{regexp.MustCompile(`€|(?i)\beur\b`), "EUR"},
		{regexp.MustCompile(`£|(?i)\bgbp\b`), "GBP"},
	}
)

// ExtractSalary runs the two-pass min/max extraction over the text.
// defaultCurrency applies when no explicit symbol or code is present.
func ExtractSalary(text, defaultCurrency string) SalaryRange {
	out := SalaryRange{Currency: defaultCurrency}

	for _, p := range salaryMinPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, ok := parseSalaryFigure(m[1]); ok {
				out.Min = &v
				break
			}
		}
	}
	for _, p := range salaryMaxPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if v, ok := parseSalaryFigure(m[1]); ok {
				out.Max = &v
				break
			}
		}
	}

	for _, c := range currencyPatterns {
		if c.pattern.MatchString(text) {
			out.Currency = c.code
			break
		}
	}
	return out
}

// parseSalaryFigure normalizes a captured figure. Values below 1000 are
// multiplied by 1000 so "100k" and "100000" read the same.
func parseSalaryFigure(s string) (int, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	v := int(f)
	if v < thousandsCutoff {
		v *= thousandsCutoff
	}
	return v, true
}
