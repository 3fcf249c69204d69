package domain

import (
	"fmt"
	"time"
)

// PlacementStatus mirrors the placement_status enum in PostgreSQL.
//
// Valid status graph:
//
//	submitted ──► viewed ──► interview_scheduled ──► offer_sent ──► hired
//	    │            │                 │                  │
//	    └────────────┴─────────────────┴──────────────────┴──► rejected
//	                                                           withdrawn
//	                                                           cancelled
//
// hired, rejected, withdrawn and cancelled are terminal states.
type PlacementStatus string

const (
	PlacementSubmitted          PlacementStatus = "submitted"
	PlacementViewed             PlacementStatus = "viewed"
	PlacementInterviewScheduled PlacementStatus = "interview_scheduled"
	PlacementOfferSent          PlacementStatus = "offer_sent"
	PlacementHired              PlacementStatus = "hired"
	PlacementRejected           PlacementStatus = "rejected"
	PlacementWithdrawn          PlacementStatus = "withdrawn"
	PlacementCancelled          PlacementStatus = "cancelled"
)

// validTransitions lists every allowed (from → to) pair. Terminal
// states have no outgoing transitions.
var validTransitions = map[PlacementStatus][]PlacementStatus{
	PlacementSubmitted: {
		PlacementViewed,
		PlacementRejected, PlacementWithdrawn, PlacementCancelled,
	},
	PlacementViewed: {
		PlacementInterviewScheduled,
		PlacementRejected, PlacementWithdrawn, PlacementCancelled,
	},
	PlacementInterviewScheduled: {
		PlacementOfferSent,
		PlacementRejected, PlacementWithdrawn, PlacementCancelled,
	},
	PlacementOfferSent: {
		PlacementHired,
		PlacementRejected, PlacementWithdrawn, PlacementCancelled,
	},
}

// ParsePlacementStatus converts a raw string to a PlacementStatus,
// returning an error for unknown values.
func ParsePlacementStatus(s string) (PlacementStatus, error) {
	st := PlacementStatus(s)
	switch st {
	case PlacementSubmitted, PlacementViewed, PlacementInterviewScheduled,
		PlacementOfferSent, PlacementHired, PlacementRejected,
		PlacementWithdrawn, PlacementCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown placement status %q", s)
}

// CanTransition returns true when moving from → to is permitted by the
// state machine. Statuses never move backwards.
func CanTransition(from, to PlacementStatus) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a placement in this status can still advance.
func (s PlacementStatus) Terminal() bool {
	_, ok := validTransitions[s]
	return !ok
}

// Placement is the lifecycle record of a candidate submitted upstream.
// Identity is (partner_id, external_placement_id); it references the
// match it was created from.
type Placement struct {
	ID                  string          `db:"id"                    json:"id"`
	PartnerID           string          `db:"partner_id"            json:"partner_id"`
	ExternalPlacementID string          `db:"external_placement_id" json:"external_placement_id"`
	MatchID             string          `db:"match_id"              json:"match_id"`
	CandidateID         string          `db:"candidate_id"          json:"candidate_id"`
	JobID               string          `db:"job_id"                json:"job_id"`
	Status              PlacementStatus `db:"status"                json:"status"`
	Notes               string          `db:"notes"                 json:"notes,omitempty"`
	SubmittedAt         time.Time       `db:"submitted_at"          json:"submitted_at"`
	StatusChangedAt     time.Time       `db:"status_changed_at"     json:"status_changed_at"`
	CreatedAt           time.Time       `db:"created_at"            json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at"            json:"updated_at"`
}
