package engine

import (
	"context"
	"fmt"

	"github.com/talentbridge/matchsync/internal/domain"
	"github.com/talentbridge/matchsync/internal/logger"
	"github.com/talentbridge/matchsync/internal/partner"
)

// SubmitForJob sends the job's unsubmitted matches with recommendation
// at least good and final score at or above the configured floor to the
// partner, recording accepted candidates as submitted placements.
// Returns the number of placements created.
func (e *Engine) SubmitForJob(ctx context.Context, job *domain.Job) (int, error) {
	matches, err := e.matches.ListForJob(ctx, job.ID, 0)
	if err != nil {
		return 0, fmt.Errorf("list matches: %w", err)
	}

	var eligible []*domain.Match
	for _, m := range matches {
		if !m.Submitted && m.Recommendation.AtLeastGood() && m.FinalScore >= e.minSubmit {
			eligible = append(eligible, m)
		}
	}
	if len(eligible) == 0 {
		return 0, nil
	}

	payloads := make([]partner.CandidatePayload, 0, len(eligible))
	byEmail := make(map[string]*submissionEntry, len(eligible))
	for _, m := range eligible {
		cand, loadErr := e.candidates.GetByID(ctx, m.CandidateID)
		if loadErr != nil {
			e.logger.Error("failed to load candidate for submission",
				logger.String("candidate_id", m.CandidateID),
				logger.Error(loadErr))
			continue
		}
		var skills []string
		for _, s := range cand.Enrichment.Skills {
			skills = append(skills, s.Name)
		}
		payloads = append(payloads, partner.CandidatePayload{
			Name:       cand.Name,
			Email:      cand.Email,
			Phone:      cand.Phone,
			ResumeText: cand.ResumeText,
			Skills:     skills,
			MatchScore: m.FinalScore,
		})
		byEmail[cand.Email] = &submissionEntry{match: m, candidate: cand}
	}
	if len(payloads) == 0 {
		return 0, nil
	}

	results, err := e.submitter.SubmitCandidates(ctx, job.ExternalID, payloads)
	if err != nil {
		return 0, fmt.Errorf("submit candidates: %w", err)
	}

	var created int
	for _, result := range results {
		entry, ok := byEmail[result.Email]
		if !ok {
			continue
		}
		if !result.Accepted {
			e.logger.Info("candidate rejected by partner",
				logger.String("candidate_id", entry.candidate.ID),
				logger.String("job_id", job.ID),
				logger.String("reason", result.Reason))
			continue
		}

		placement := &domain.Placement{
			PartnerID:           job.PartnerID,
			ExternalPlacementID: result.ExternalPlacementID,
			MatchID:             entry.match.ID,
			CandidateID:         entry.candidate.ID,
			JobID:               job.ID,
			Status:              domain.PlacementSubmitted,
			SubmittedAt:         e.now().UTC(),
		}
		isNew, createErr := e.placements.Create(ctx, placement)
		if createErr != nil {
			e.logger.Error("failed to create placement",
				logger.String("external_placement_id", result.ExternalPlacementID),
				logger.Error(createErr))
			continue
		}

		if markErr := e.matches.MarkSubmitted(ctx, entry.match.ID); markErr != nil {
			e.logger.Error("failed to mark match submitted",
				logger.String("match_id", entry.match.ID),
				logger.Error(markErr))
		}

		if isNew {
			created++
			e.emitPlacement(ctx, domain.EventPlacementCreated, placement)
		}
	}
	return created, nil
}

type submissionEntry struct {
	match     *domain.Match
	candidate *domain.Candidate
}

// AdvancePlacement moves a placement forward and emits
// placement.updated. Invalid transitions surface as
// domain.ErrInvalidTransition.
func (e *Engine) AdvancePlacement(ctx context.Context, placementID string, to domain.PlacementStatus, notes string) (*domain.Placement, error) {
	placement, err := e.placements.TransitionStatus(ctx, placementID, to, notes)
	if err != nil {
		return nil, err
	}

	e.emitPlacement(ctx, domain.EventPlacementUpdated, placement)
	return placement, nil
}

func (e *Engine) emitPlacement(ctx context.Context, eventType domain.EventType, p *domain.Placement) {
	correlationID := fmt.Sprintf("%s:%s:%s", eventType, p.ID, p.Status)
	err := e.dispatcher.Emit(ctx, eventType, correlationID, map[string]any{
		"placement_id":          p.ID,
		"external_placement_id": p.ExternalPlacementID,
		"candidate_id":          p.CandidateID,
		"job_id":                p.JobID,
		"status":                string(p.Status),
	})
	if err != nil {
		e.logger.Error("failed to emit placement event",
			logger.String("placement_id", p.ID),
			logger.String("event_type", string(eventType)),
			logger.Error(err))
	}
}
