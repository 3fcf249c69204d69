package domain

import "time"

// JobStatus represents the lifecycle state of a job posting.
type JobStatus string

const (
	JobStatusOpen     JobStatus = "open"
	JobStatusClosed   JobStatus = "closed"
	JobStatusArchived JobStatus = "archived"
)

// EnrichmentStatus tracks whether free text has been turned into a
// structured feature record yet.
type EnrichmentStatus string

const (
	EnrichmentPending EnrichmentStatus = "pending"
	EnrichmentSuccess EnrichmentStatus = "success"
	EnrichmentError   EnrichmentStatus = "error"
)

// SeniorityLevel is the ordered seniority scale shared by jobs and
// candidates. Rank() gives the numeric order used for gap comparisons.
type SeniorityLevel string

const (
	SeniorityJunior SeniorityLevel = "junior"
	SeniorityMid    SeniorityLevel = "mid"
	SenioritySenior SeniorityLevel = "senior"
	SeniorityLead   SeniorityLevel = "lead"
)

// Rank maps the level to its position on the junior..lead ladder.
// Unknown levels rank as mid.
func (s SeniorityLevel) Rank() int {
	switch s {
	case SeniorityJunior:
		return 1
	case SeniorityMid:
		return 2
	case SenioritySenior:
		return 3
	case SeniorityLead:
		return 4
	default:
		return 2
	}
}

// SkillRequirement is one skill a job asks for.
type SkillRequirement struct {
	Name         string `json:"name"`
	MinimumLevel int    `json:"minimum_level"` // 1..5
	Required     bool   `json:"required"`
}

// JobEnrichment is the structured feature record extracted from a job
// description. Stored as a single JSONB column on the job row.
type JobEnrichment struct {
	Skills        []SkillRequirement `json:"skills"`
	Seniority     SeniorityLevel     `json:"seniority"`
	RequiredYears int                `json:"required_years"`
	Benefits      []string           `json:"benefits"`
	SalaryMin     *int               `json:"salary_min,omitempty"`
	SalaryMax     *int               `json:"salary_max,omitempty"`
	Currency      string             `json:"currency"`
	LocationCode  string             `json:"location_code"`
	Difficulty    float64            `json:"difficulty"` // 0..1
	RemoteOK      bool               `json:"remote_ok"`
	HybridOK      bool               `json:"hybrid_ok"`
	Status        EnrichmentStatus   `json:"status"`
	Error         string             `json:"error,omitempty"`
	EnrichedAt    *time.Time         `json:"enriched_at,omitempty"`
}

// Job is a posting imported from the partner board. Identity is
// (partner_id, external_id); jobs are archived, never deleted.
type Job struct {
	ID           string         `db:"id"`
	PartnerID    string         `db:"partner_id"`
	ExternalID   string         `db:"external_id"`
	Title        string         `db:"title"`
	Description  string         `db:"description"`
	Requirements string         `db:"requirements"`
	Company      string         `db:"company"`
	Location     string         `db:"location"`
	SalaryRaw    string         `db:"salary_raw"`
	Status       JobStatus      `db:"status"`
	PostedAt     time.Time      `db:"posted_at"`
	Enrichment   *JobEnrichment `db:"-"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Enriched reports whether the job may be fed into the scorer.
func (j *Job) Enriched() bool {
	return j.Enrichment != nil && j.Enrichment.Status == EnrichmentSuccess
}

// FreeText returns the concatenated text surface used by enrichment.
func (j *Job) FreeText() string {
	return j.Title + "\n" + j.Description + "\n" + j.Requirements
}
