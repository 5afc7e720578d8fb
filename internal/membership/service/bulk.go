package service

import (
	"context"
	"errors"

	"lted/internal/eligibility"
	"lted/internal/membership/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

// BulkDecide applies a meeting's accept/reject decisions. Each item runs in its
// own unit of work; a failed item is reported in its result and never stops
// the rest. The returned error covers only request-level problems.
func (s *Service) BulkDecide(ctx context.Context, meetingID id.MeetingID, decisions []models.MeetingDecision) ([]models.DecisionResult, error) {
	if _, err := actorFrom(ctx); err != nil {
		return nil, err
	}
	if meetingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "meetingId is required")
	}
	if len(decisions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "decisions must not be empty")
	}

	results := make([]models.DecisionResult, 0, len(decisions))
	for _, d := range decisions {
		results = append(results, s.decide(ctx, meetingID, d))
	}

	applied := 0
	for _, r := range results {
		if r.Outcome == models.OutcomeApplied {
			applied++
		}
	}
	s.logger.InfoContext(ctx, "meeting decisions applied",
		"meeting_id", meetingID.String(),
		"total", len(results),
		"applied", applied,
	)
	return results, nil
}

func (s *Service) decide(ctx context.Context, meetingID id.MeetingID, d models.MeetingDecision) models.DecisionResult {
	res := models.DecisionResult{MembershipID: d.MembershipID, Decision: d.Decision}

	var (
		m   *models.Membership
		err error
	)
	switch d.Decision {
	case models.DecisionAccept:
		var accepted *models.AcceptResult
		accepted, err = s.accept(ctx, d.MembershipID, &meetingID)
		if err == nil {
			m = accepted.Membership
			if accepted.CapacityRejected {
				res.Reasons = []string{CapacityRejectionNote}
			}
		}
	case models.DecisionReject:
		m, err = s.reject(ctx, d.MembershipID, d.Note, &meetingID)
	default:
		err = dErrors.New(dErrors.CodeValidation, "decision must be accept or reject")
	}

	res.Outcome = OutcomeOf(err)
	if err != nil {
		res.Error = err.Error()
		var ie *eligibility.IneligibleError
		if errors.As(err, &ie) {
			res.Reasons = ie.Reasons()
		}
		return res
	}
	res.Status = m.Status
	res.SeatNumber = m.SeatNumber
	return res
}
