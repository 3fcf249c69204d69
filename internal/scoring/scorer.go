// Package scoring computes the weighted compatibility score between an
// enriched candidate and an enriched job. Scoring is pure and
// deterministic: identical inputs yield byte-identical match records,
// including the ordering of strengths and gaps.
package scoring

import (
	"sort"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/enrich"
)

// Weights are the component weights of the final score. They must sum
// to exactly 1.0.
type Weights struct {
	Skill      float64
	Seniority  float64
	Experience float64
	Culture    float64
	Growth     float64
}

// DefaultWeights returns the fixed five-term weight set.
func DefaultWeights() Weights {
	return Weights{
		Skill:      0.40,
		Seniority:  0.30,
		Experience: 0.15,
		Culture:    0.10,
		Growth:     0.05,
	}
}

// Seniority gap score table: gap 0 → 1.0, 1 → 0.7, 2 → 0.3, ≥3 → 0.0.
var seniorityGapScores = []float64{1.0, 0.7, 0.3}

// Skill aggregation weights: required skills count three times as much.
const (
	requiredSkillWeight = 3.0
	optionalSkillWeight = 1.0
)

// Culture score constants.
const (
	cultureBase        = 0.5
	cultureRemoteBonus = 0.2
	cultureHybridBonus = 0.15
)

// Growth score constants.
const (
	growthBelowCap     = 0.8
	growthBelowBoost   = 0.3
	growthEqualScore   = 0.8
	growthAboveScore   = 0.6
)

// Salary ratio tiers.
const (
	salaryFitRatio     = 1.0
	salaryStretchRatio = 1.2
	salaryHighRatio    = 1.5
	salaryFitScore     = 1.0
	salaryStretchScore = 0.8
	salaryHighScore    = 0.4
	salaryUnknownScore = 0.8
)

// Salary multiplier tiers applied to the base score.
const (
	salaryHardPenaltyBelow = 0.3
	salarySoftPenaltyBelow = 0.6
	salaryHardMultiplier   = 0.5
	salarySoftMultiplier   = 0.8
)

// Scorer computes match records. It holds only the weight table and is
// safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Score evaluates one (candidate, job) pair. Both sides must be
// successfully enriched; the engine guarantees that before calling.
func (s *Scorer) Score(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) *domain.Match {
	strengths, gaps := skillBreakdown(cand, job)
	if cand.Seniority.Rank() == job.Seniority.Rank() {
		strengths = append(strengths, "right seniority")
	}

	if len(missingRequired(cand, job)) > 0 {
		// Hard gate: a required skill is absent or below level.
		m := &domain.Match{
			FinalScore:     0,
			Recommendation: domain.RecommendationNotSuitable,
			Strengths:      strengths,
			Gaps:           gaps,
		}
		m.Explanation = buildExplanation(m, cand)
		return m
	}

	comps := domain.ComponentScores{
		Skill:      skillScore(cand, job),
		Seniority:  seniorityScore(cand.Seniority, job.Seniority),
		Experience: experienceScore(cand.TotalYears, job.RequiredYears),
		Culture:    cultureScore(cand, job),
		Growth:     growthScore(cand, job),
		Salary:     salaryScore(cand, job),
	}

	base := s.weights.Skill*comps.Skill +
		s.weights.Seniority*comps.Seniority +
		s.weights.Experience*comps.Experience +
		s.weights.Culture*comps.Culture +
		s.weights.Growth*comps.Growth

	switch {
	case comps.Salary < salaryHardPenaltyBelow:
		base *= salaryHardMultiplier
	case comps.Salary < salarySoftPenaltyBelow:
		base *= salarySoftMultiplier
	}

	final := clamp01(base)

	m := &domain.Match{
		FinalScore:     final,
		Components:     comps,
		Recommendation: domain.RecommendationFor(final),
		Strengths:      strengths,
		Gaps:           gaps,
	}
	m.Explanation = buildExplanation(m, cand)
	return m
}

// missingRequired returns required job skills the candidate lacks or
// holds below the minimum level, in taxonomy order.
func missingRequired(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) []string {
	var missing []string
	for _, req := range job.Skills {
		if !req.Required {
			continue
		}
		if cand.SkillLevel(req.Name) < req.MinimumLevel {
			missing = append(missing, req.Name)
		}
	}
	sortByTaxonomy(missing)
	return missing
}

// skillBreakdown computes strengths (required skills met at/above
// level) and gaps (required skills absent or below level), both in
// taxonomy order.
func skillBreakdown(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) (strengths, gaps []string) {
	for _, req := range job.Skills {
		if !req.Required {
			continue
		}
		if cand.SkillLevel(req.Name) >= req.MinimumLevel {
			strengths = append(strengths, req.Name)
		} else {
			gaps = append(gaps, req.Name)
		}
	}
	sortByTaxonomy(strengths)
	sortByTaxonomy(gaps)
	return strengths, gaps
}

func sortByTaxonomy(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		ri, rj := enrich.TaxonomyRank(names[i]), enrich.TaxonomyRank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
}

// skillScore is the weighted level coverage over the job's skills:
// Σ(w·s)/Σw with w=3 for required skills, s=1 when the level is met
// and candidate_level/required_level otherwise.
func skillScore(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) float64 {
	var weighted, total float64
	for _, req := range job.Skills {
		w := optionalSkillWeight
		if req.Required {
			w = requiredSkillWeight
		}
		total += w

		level := cand.SkillLevel(req.Name)
		if level >= req.MinimumLevel {
			weighted += w
		} else if req.MinimumLevel > 0 {
			weighted += w * float64(level) / float64(req.MinimumLevel)
		}
	}
	if total == 0 {
		return 1.0
	}
	return weighted / total
}

func seniorityScore(cand, job domain.SeniorityLevel) float64 {
	gap := cand.Rank() - job.Rank()
	if gap < 0 {
		gap = -gap
	}
	if gap < len(seniorityGapScores) {
		return seniorityGapScores[gap]
	}
	return 0.0
}

func experienceScore(candYears, requiredYears int) float64 {
	if requiredYears <= 0 {
		return 1.0
	}
	ratio := float64(candYears) / float64(requiredYears)
	if ratio > 1.0 {
		return 1.0
	}
	return ratio
}

func cultureScore(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) float64 {
	score := cultureBase
	// Remote preferences align when the candidate has no remote
	// requirement, or the job offers remote work.
	if !cand.RemotePreferred || job.RemoteOK {
		score += cultureRemoteBonus
	}
	if cand.HybridOK && job.HybridOK {
		score += cultureHybridBonus
	}
	return clamp01(score)
}

func growthScore(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) float64 {
	candRank, jobRank := cand.Seniority.Rank(), job.Seniority.Rank()
	switch {
	case candRank < jobRank:
		g := cand.LearningAbility + growthBelowBoost
		if g > growthBelowCap {
			g = growthBelowCap
		}
		return g
	case candRank == jobRank:
		return growthEqualScore
	default:
		return growthAboveScore
	}
}

func salaryScore(cand *domain.CandidateEnrichment, job *domain.JobEnrichment) float64 {
	offer := job.SalaryMax
	if offer == nil {
		offer = job.SalaryMin
	}
	if cand.SalaryExpectation == nil || offer == nil || *offer <= 0 {
		return salaryUnknownScore
	}

	ratio := float64(*cand.SalaryExpectation) / float64(*offer)
	switch {
	case ratio <= salaryFitRatio:
		return salaryFitScore
	case ratio <= salaryStretchRatio:
		return salaryStretchScore
	case ratio <= salaryHighRatio:
		return salaryHighScore
	default:
		return 0.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
