package partner

import (
	"fmt"
	"strings"
	"time"

	"github.com/talentbridge/matchsync/internal/domain"
)

// Wire DTOs are decoded first and validated second; one malformed item
// is skipped with an error, it never aborts the page.

// JobDTO is a job posting as the partner board serializes it.
type JobDTO struct {
	ExternalID   string `json:"external_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Salary       string `json:"salary"`
	Status       string `json:"status"`
	PostedAt     string `json:"posted_at"`
}

// Validate converts the DTO to a domain job, rejecting items that are
// unusable downstream.
func (d *JobDTO) Validate(partnerID string) (*domain.Job, error) {
	if d.ExternalID == "" {
		return nil, fmt.Errorf("job missing external_id")
	}
	if strings.TrimSpace(d.Title) == "" {
		return nil, fmt.Errorf("job %s: missing title", d.ExternalID)
	}

	status := domain.JobStatus(d.Status)
	switch status {
	case domain.JobStatusOpen, domain.JobStatusClosed, domain.JobStatusArchived:
	case "":
		status = domain.JobStatusOpen
	default:
		return nil, fmt.Errorf("job %s: unknown status %q", d.ExternalID, d.Status)
	}

	postedAt, err := parseTimestamp(d.PostedAt)
	if err != nil {
		return nil, fmt.Errorf("job %s: bad posted_at: %w", d.ExternalID, err)
	}

	return &domain.Job{
		PartnerID:    partnerID,
		ExternalID:   d.ExternalID,
		Title:        strings.TrimSpace(d.Title),
		Description:  d.Description,
		Requirements: d.Requirements,
		Company:      d.Company,
		Location:     d.Location,
		SalaryRaw:    d.Salary,
		Status:       status,
		PostedAt:     postedAt,
	}, nil
}

// PlacementDTO is the partner's view of a placement's current state.
type PlacementDTO struct {
	ExternalID string `json:"external_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	UpdatedAt  string `json:"updated_at"`
}

// Validate parses the placement status and timestamps.
func (d *PlacementDTO) Validate() (domain.PlacementStatus, time.Time, error) {
	if d.ExternalID == "" {
		return "", time.Time{}, fmt.Errorf("placement missing external_id")
	}
	status, err := domain.ParsePlacementStatus(d.Status)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("placement %s: %w", d.ExternalID, err)
	}
	updatedAt, err := parseTimestamp(d.UpdatedAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("placement %s: bad updated_at: %w", d.ExternalID, err)
	}
	return status, updatedAt, nil
}

// CandidatePayload is one candidate in a submission batch.
type CandidatePayload struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone,omitempty"`
	ResumeText string   `json:"resume_text"`
	Skills     []string `json:"skills,omitempty"`
	MatchScore float64  `json:"match_score"`
}

// SubmissionResult reports the partner-side outcome of one submitted
// candidate.
type SubmissionResult struct {
	Email               string `json:"email"`
	ExternalPlacementID string `json:"placement_id"`
	Accepted            bool   `json:"accepted"`
	Reason              string `json:"reason,omitempty"`
}

// ListFilter narrows list requests. Status and CreatedAfter apply to
// job listings; JobID and the date window apply to placements.
type ListFilter struct {
	Status       string
	CreatedAfter time.Time
	JobID        string
	DateFrom     time.Time
	DateTo       time.Time
	PerPage      int
}

// jobsPage is the paginated jobs response envelope.
type jobsPage struct {
	Jobs    []JobDTO `json:"jobs"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}

type placementsPage struct {
	Placements []PlacementDTO `json:"placements"`
	Total      int            `json:"total"`
	HasMore    bool           `json:"has_more"`
}

type submitResponse struct {
	Results []SubmissionResult `json:"results"`
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
