package domain

import "time"

// Recommendation is the categorical label derived from the final score.
type Recommendation string

const (
	RecommendationPerfect     Recommendation = "perfect"
	RecommendationGood        Recommendation = "good"
	RecommendationPossible    Recommendation = "possible"
	RecommendationNotSuitable Recommendation = "not_suitable"
)

// Recommendation score thresholds.
const (
	PerfectThreshold  = 0.85
	GoodThreshold     = 0.70
	PossibleThreshold = 0.50
)

// RecommendationFor maps a final score to its categorical label.
func RecommendationFor(score float64) Recommendation {
	switch {
	case score >= PerfectThreshold:
		return RecommendationPerfect
	case score >= GoodThreshold:
		return RecommendationGood
	case score >= PossibleThreshold:
		return RecommendationPossible
	default:
		return RecommendationNotSuitable
	}
}

// AtLeastGood reports whether the recommendation qualifies a match for
// submission to the partner.
func (r Recommendation) AtLeastGood() bool {
	return r == RecommendationPerfect || r == RecommendationGood
}

// ComponentScores holds the individual dimensions of a match score.
// Each component is in [0,1]. Stored as one JSONB column on the match.
type ComponentScores struct {
	Skill      float64 `json:"skill"`
	Seniority  float64 `json:"seniority"`
	Experience float64 `json:"experience"`
	Culture    float64 `json:"culture"`
	Growth     float64 `json:"growth"`
	Salary     float64 `json:"salary"`
}

// Match is the stored result of scoring one candidate against one job.
// Identity is (candidate_id, job_id); rebuilding replaces it atomically.
type Match struct {
	ID             string          `db:"id"             json:"id"`
	CandidateID    string          `db:"candidate_id"   json:"candidate_id"`
	JobID          string          `db:"job_id"         json:"job_id"`
	FinalScore     float64         `db:"final_score"    json:"final_score"`
	Components     ComponentScores `db:"-"              json:"components"`
	Recommendation Recommendation  `db:"recommendation" json:"recommendation"`
	Explanation    string          `db:"explanation"    json:"explanation"`
	Strengths      []string        `db:"-"              json:"strengths,omitempty"`
	Gaps           []string        `db:"-"              json:"gaps,omitempty"`
	Submitted      bool            `db:"submitted"      json:"submitted"`
	CreatedAt      time.Time       `db:"created_at"     json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"     json:"updated_at"`
}

// SameOutcome reports whether two match records describe the same
// scoring outcome. Used to suppress duplicate match.created events.
func (m *Match) SameOutcome(other *Match) bool {
	if other == nil {
		return false
	}
	return m.FinalScore == other.FinalScore && m.Recommendation == other.Recommendation
}
