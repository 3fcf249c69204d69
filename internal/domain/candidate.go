package domain

import "time"

// CandidateSkill is one skill extracted from a resume, with the years
// of hands-on use the resume suggests.
type CandidateSkill struct {
	Name  string `json:"name"`
	Level int    `json:"level"` // 1..5
	Years int    `json:"years"`
}

// Education is a single education entry parsed from a resume.
type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// CandidateEnrichment is the structured feature record extracted from
// resume text. Stored as a single JSONB column on the candidate row.
type CandidateEnrichment struct {
	Skills            []CandidateSkill `json:"skills"`
	Seniority         SeniorityLevel   `json:"seniority"`
	TotalYears        int              `json:"total_years"`
	PrimaryRole       string           `json:"primary_role"`
	Education         []Education      `json:"education,omitempty"`
	Languages         []string         `json:"languages,omitempty"`
	SalaryExpectation *int             `json:"salary_expectation,omitempty"`
	Currency          string           `json:"currency"`
	RemotePreferred   bool             `json:"remote_preferred"`
	HybridOK          bool             `json:"hybrid_ok"`
	LearningAbility   float64          `json:"learning_ability"` // 0..1
	Confidence        float64          `json:"confidence"`       // 0..1
	Status            EnrichmentStatus `json:"status"`
	Error             string           `json:"error,omitempty"`
	EnrichedAt        *time.Time       `json:"enriched_at,omitempty"`
}

// Candidate is an applicant with a parsed resume.
type Candidate struct {
	ID         string               `db:"id"`
	Name       string               `db:"name"`
	Email      string               `db:"email"`
	Phone      string               `db:"phone"`
	ResumeText string               `db:"resume_text"`
	UploadedAt time.Time            `db:"uploaded_at"`
	Enrichment *CandidateEnrichment `db:"-"`
	CreatedAt  time.Time            `db:"created_at"`
	UpdatedAt  time.Time            `db:"updated_at"`
}

// Enriched reports whether the candidate may be fed into the scorer.
func (c *Candidate) Enriched() bool {
	return c.Enrichment != nil && c.Enrichment.Status == EnrichmentSuccess
}

// SkillLevel returns the candidate's level for a canonical skill name,
// or 0 when the skill is absent.
func (e *CandidateEnrichment) SkillLevel(name string) int {
	for _, s := range e.Skills {
		if s.Name == name {
			return s.Level
		}
	}
	return 0
}
