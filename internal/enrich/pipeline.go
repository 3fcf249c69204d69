package enrich

import (
	"fmt"
	"time"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
)

// Pipeline extracts structured feature records from free text. It holds
// only immutable state (the skill automaton) and is safe for concurrent
// use.
type Pipeline struct {
	matcher         *SkillMatcher
	defaultCurrency string
	logger          logger.Logger
}

// Difficulty score constants per the scoring table.
const (
	difficultyBase       = 0.3
	difficultySkillCap   = 0.3
	difficultyRareCap    = 0.3
	difficultyManyBonus  = 0.1
	manySkillsThreshold  = 10
	difficultySkillScale = 15
)

// Confidence score constants.
const (
	confidenceBase      = 0.5
	confidenceLenCap    = 0.3
	confidenceLenScale  = 5000
	confidenceSkillCap  = 0.2
	confidenceSkillScan = 20
)

// NewPipeline creates an enrichment pipeline. defaultCurrency is used
// when salary text carries no explicit symbol or code.
func NewPipeline(defaultCurrency string, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		matcher:         NewSkillMatcher(),
		defaultCurrency: defaultCurrency,
		logger:          log,
	}
}

// EnrichJob extracts the job feature record from posting text. Failures
// inside extraction are captured on the record: the job stays in the
// store but is excluded from scoring.
func (p *Pipeline) EnrichJob(job *domain.Job) *domain.JobEnrichment {
	out := &domain.JobEnrichment{Status: domain.EnrichmentError}

	defer func() {
		if r := recover(); r != nil {
			out.Status = domain.EnrichmentError
			out.Error = fmt.Sprintf("enrichment panic: %v", r)
			p.logger.Error("job enrichment failed",
				logger.String("job_id", job.ID),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()

	text := job.FreeText()
	hits := p.matcher.Match(text, MaxJobSkills)

	skills := make([]domain.SkillRequirement, 0, len(hits))
	for _, h := range hits {
		skills = append(skills, domain.SkillRequirement{
			Name:         h.Name,
			MinimumLevel: requiredLevelFor(job, h.Name),
			Required:     isRequiredSkill(job, h.Name),
		})
	}

	benefits := ExtractBenefits(text)
	salary := ExtractSalary(job.SalaryRaw+" "+text, p.defaultCurrency)
	now := time.Now().UTC()

	out.Skills = skills
	out.Seniority = DetectSeniority(text)
	out.RequiredYears = ExtractYears(text)
	out.Benefits = benefits
	out.SalaryMin = salary.Min
	out.SalaryMax = salary.Max
	out.Currency = salary.Currency
	out.LocationCode = NormalizeLocation(job.Location, hasBenefit(benefits, "remote"))
	out.Difficulty = jobDifficulty(skills)
	out.RemoteOK = hasBenefit(benefits, "remote")
	out.HybridOK = DetectsHybrid(text)
	out.Status = domain.EnrichmentSuccess
	out.EnrichedAt = &now
	return out
}

// EnrichCandidate extracts the candidate feature record from resume
// text. Same failure semantics as EnrichJob.
func (p *Pipeline) EnrichCandidate(cand *domain.Candidate) *domain.CandidateEnrichment {
	out := &domain.CandidateEnrichment{Status: domain.EnrichmentError}

	defer func() {
		if r := recover(); r != nil {
			out.Status = domain.EnrichmentError
			out.Error = fmt.Sprintf("enrichment panic: %v", r)
			p.logger.Error("candidate enrichment failed",
				logger.String("candidate_id", cand.ID),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()

	text := cand.ResumeText
	hits := p.matcher.Match(text, MaxCandidateSkills)
	totalYears := ExtractYears(text)

	skills := make([]domain.CandidateSkill, 0, len(hits))
	for _, h := range hits {
		years := skillYears(text, h.Name, totalYears)
		skills = append(skills, domain.CandidateSkill{
			Name:  h.Name,
			Level: levelFromYears(years),
			Years: years,
		})
	}

	benefits := ExtractBenefits(text)
	salary := ExtractSalary(text, p.defaultCurrency)
	now := time.Now().UTC()

	out.Skills = skills
	out.Seniority = DetectSeniority(text)
	out.TotalYears = totalYears
	out.PrimaryRole = DetectPrimaryRole(text)
	out.Education = ExtractEducation(text)
	out.Languages = ExtractLanguages(text)
	out.SalaryExpectation = salary.Min
	out.Currency = salary.Currency
	out.RemotePreferred = hasBenefit(benefits, "remote")
	out.HybridOK = DetectsHybrid(text)
	out.LearningAbility = learningAbility(out)
	out.Confidence = parsingConfidence(text, len(skills))
	out.Status = domain.EnrichmentSuccess
	out.EnrichedAt = &now
	return out
}

// jobDifficulty implements the fixed difficulty formula:
// base + skill-count share + rare-skill weights + many-skills bonus.
func jobDifficulty(skills []domain.SkillRequirement) float64 {
	d := difficultyBase

	share := float64(len(skills)) / difficultySkillScale
	if share > difficultySkillCap {
		share = difficultySkillCap
	}
	d += share

	rare := 0.0
	for _, s := range skills {
		rare += rareSkillWeights[s.Name]
	}
	if rare > difficultyRareCap {
		rare = difficultyRareCap
	}
	d += rare

	if len(skills) >= manySkillsThreshold {
		d += difficultyManyBonus
	}

	if d > 1.0 {
		d = 1.0
	}
	return d
}

func parsingConfidence(text string, skillCount int) float64 {
	c := confidenceBase

	lenShare := float64(len(text)) / confidenceLenScale
	if lenShare > confidenceLenCap {
		lenShare = confidenceLenCap
	}
	c += lenShare

	skillShare := float64(skillCount) / confidenceSkillScan
	if skillShare > confidenceSkillCap {
		skillShare = confidenceSkillCap
	}
	c += skillShare

	if c > 1.0 {
		c = 1.0
	}
	return c
}

// learningAbility is a coarse heuristic: candidates with formal
// education and breadth across skill categories adapt faster.
func learningAbility(e *domain.CandidateEnrichment) float64 {
	ability := 0.5
	if len(e.Education) > 0 {
		ability += 0.2
	}

	categories := map[SkillCategory]bool{}
	for _, s := range e.Skills {
		if cat, ok := CategoryOf(s.Name); ok {
			categories[cat] = true
		}
	}
	if len(categories) >= 3 {
		ability += 0.1
	}

	if ability > 1.0 {
		ability = 1.0
	}
	return ability
}
