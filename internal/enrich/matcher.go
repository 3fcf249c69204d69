package enrich

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// SkillMatcher finds canonical taxonomy skills in free text with a
// single Aho-Corasick pass. It is immutable after construction and safe
// for concurrent use.
type SkillMatcher struct {
	matcher  *ahocorasick.Matcher
	patterns []string // all patterns in automaton order
	toSkill  []int    // pattern index -> taxonomy index
}

// SkillHit is one matched canonical skill with the byte offset of its
// first occurrence in the normalized text.
type SkillHit struct {
	Name     string
	Category SkillCategory
	Position int
}

// NewSkillMatcher builds the automaton over the static taxonomy,
// including aliases.
func NewSkillMatcher() *SkillMatcher {
	patterns := make([]string, 0, len(taxonomy)*2)
	toSkill := make([]int, 0, len(taxonomy)*2)

	for i, s := range taxonomy {
		patterns = append(patterns, s.Name)
		toSkill = append(toSkill, i)
		for _, alias := range s.Aliases {
			patterns = append(patterns, alias)
			toSkill = append(toSkill, i)
		}
	}

	return &SkillMatcher{
		matcher:  ahocorasick.NewStringMatcher(patterns),
		patterns: patterns,
		toSkill:  toSkill,
	}
}

// Match returns the canonical skills present in the text, duplicates
// collapsed, ordered by first-occurrence position and capped at max.
func (m *SkillMatcher) Match(text string, max int) []SkillHit {
	lowered := strings.ToLower(text)

	hitIdx := m.matcher.Match([]byte(lowered))
	if len(hitIdx) == 0 {
		return nil
	}

	// The automaton tells us which patterns occur; the position of the
	// earliest alias decides ordering, so resolve offsets only for hits.
	firstPos := make(map[int]int) // taxonomy index -> earliest offset
	for _, pi := range hitIdx {
		if pi >= len(m.patterns) {
			continue
		}
		pos := firstBoundedIndex(lowered, m.patterns[pi])
		if pos < 0 {
			continue
		}
		ti := m.toSkill[pi]
		if prev, ok := firstPos[ti]; !ok || pos < prev {
			firstPos[ti] = pos
		}
	}

	hits := make([]SkillHit, 0, len(firstPos))
	for ti, pos := range firstPos {
		hits = append(hits, SkillHit{
			Name:     taxonomy[ti].Name,
			Category: taxonomy[ti].Category,
			Position: pos,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Position != hits[j].Position {
			return hits[i].Position < hits[j].Position
		}
		return TaxonomyRank(hits[i].Name) < TaxonomyRank(hits[j].Name)
	})

	if max > 0 && len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

// shortPatternLimit is the length at or below which a pattern needs
// word boundaries: "go" must not hit inside "category".
const shortPatternLimit = 4

// firstBoundedIndex returns the offset of the first occurrence of
// pattern in text, requiring word boundaries for short patterns.
func firstBoundedIndex(text, pattern string) int {
	if len(pattern) > shortPatternLimit {
		return strings.Index(text, pattern)
	}
	for from := 0; from < len(text); {
		rel := strings.Index(text[from:], pattern)
		if rel < 0 {
			return -1
		}
		pos := from + rel
		if boundedAt(text, pos, len(pattern)) {
			return pos
		}
		from = pos + 1
	}
	return -1
}

func boundedAt(text string, pos, length int) bool {
	if pos > 0 && isWordByte(text[pos-1]) {
		return false
	}
	end := pos + length
	if end < len(text) && isWordByte(text[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
