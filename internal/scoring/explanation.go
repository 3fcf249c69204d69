package scoring

import (
	"fmt"
	"strings"

	"github.com/talentbridge/matchsync/internal/domain"
)

// Learning-potential label thresholds.
const (
	highLearningAbility     = 0.7
	moderateLearningAbility = 0.5
	maxGapsForHighPotential = 2
)

// maxListedItems caps how many strengths and gaps the explanation names.
const maxListedItems = 2

// buildExplanation composes the deterministic one-paragraph summary of
// a match: score, recommendation, up to two strengths, up to two gaps,
// and a learning-potential label.
func buildExplanation(m *domain.Match, cand *domain.CandidateEnrichment) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall compatibility %.2f (%s).", m.FinalScore, m.Recommendation)

	if len(m.Strengths) > 0 {
		fmt.Fprintf(&b, " Strengths: %s.", joinLimited(m.Strengths, maxListedItems))
	}
	if len(m.Gaps) > 0 {
		fmt.Fprintf(&b, " Gaps: %s.", joinLimited(m.Gaps, maxListedItems))
	}

	fmt.Fprintf(&b, " Learning potential: %s.", learningPotential(len(m.Gaps), cand.LearningAbility))
	return b.String()
}

func joinLimited(items []string, limit int) string {
	if len(items) > limit {
		items = items[:limit]
	}
	return strings.Join(items, ", ")
}

// learningPotential derives a label from the gap count and the
// candidate's learning ability.
func learningPotential(gapCount int, learningAbility float64) string {
	switch {
	case gapCount <= maxGapsForHighPotential && learningAbility >= highLearningAbility:
		return "high"
	case learningAbility >= moderateLearningAbility:
		return "moderate"
	default:
		return "limited"
	}
}
