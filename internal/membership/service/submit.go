package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"lted/internal/eligibility"
	govservice "lted/internal/governance/service"
	"lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/platform/sentinel"
)

// SubmitRequest asks for a voter to be put forward for a committee seat.
type SubmitRequest struct {
	VoterID     id.VoterID
	CommitteeID id.CommitteeID
	// TermID defaults to the active term.
	TermID         *id.TermID
	ForceAdd       bool
	OverrideReason string
	// ReplaceVoterID names an incumbent the new member should replace on acceptance.
	ReplaceVoterID *id.VoterID
	Contact        *models.Contact
	Extra          json.RawMessage
}

// SubmitResult is the submitted membership and the eligibility evaluation behind it.
type SubmitResult struct {
	Membership  *models.Membership  `json:"membership"`
	Eligibility *eligibility.Result `json:"eligibility"`
}

// Submit creates a SUBMITTED membership, or starts a fresh cycle on a row in a
// terminal status. The caller must have jurisdiction over the committee and the
// voter must pass eligibility, or be force-added by an admin.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if req.ForceAdd && !actor.CanForce() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may force-add a member")
	}
	if req.ReplaceVoterID != nil && *req.ReplaceVoterID == req.VoterID {
		return nil, dErrors.New(dErrors.CodeValidation, "a voter cannot replace themselves")
	}

	var out *SubmitResult
	err = s.transition(ctx, "submit", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		gov, err := govservice.Resolve(ctx, tx, req.TermID)
		if err != nil {
			return err
		}
		committee, err := tx.FindCommittee(ctx, req.CommitteeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if committee.TermID != gov.Term.ID {
			return dErrors.New(dErrors.CodeValidation, "committee does not belong to the requested term")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}

		freed, err := replacementSeat(ctx, tx, req.ReplaceVoterID, committee)
		if err != nil {
			return err
		}

		res, err := s.validator.Validate(ctx, tx, gov.Config, eligibility.Input{
			VoterID:     req.VoterID,
			CommitteeID: committee.ID,
			TermID:      gov.Term.ID,
		}, eligibility.Options{
			ForceAdd:       req.ForceAdd,
			OverrideReason: req.OverrideReason,
			FreedSeats:     freed,
		})
		if err != nil {
			return err
		}
		if err := res.Err(); err != nil {
			return err
		}

		meta := models.SubmissionMetadata{
			ReplaceVoterID: req.ReplaceVoterID,
			Contact:        req.Contact,
			Warnings:       res.Warnings,
			Extra:          req.Extra,
		}
		if len(res.BypassedReasons) > 0 {
			meta.Override = &models.Override{
				Reason:          strings.TrimSpace(req.OverrideReason),
				BypassedReasons: res.BypassedReasons,
				ActorID:         actor.ID,
			}
		}

		m, isNew, err := findOrNew(ctx, tx, req.VoterID, committee)
		if err != nil {
			return err
		}
		if m.Status == models.StatusSubmitted || m.Status == models.StatusActive {
			return dErrors.New(dErrors.CodeConflict, "voter already has a "+string(m.Status)+" membership on this committee")
		}
		before := m.Clone()
		if err := m.ApplySubmit(now(ctx), actor.ID, meta); err != nil {
			return err
		}
		if err := persist(ctx, tx, m, before.Status, isNew); err != nil {
			return err
		}

		metaOut := map[string]any{"committee_id": committee.ID.String()}
		if meta.Override != nil {
			metaOut["override_reason"] = meta.Override.Reason
			metaOut["bypassed_reasons"] = meta.Override.BypassedReasons
		}
		if req.ReplaceVoterID != nil {
			metaOut["replace_voter_id"] = req.ReplaceVoterID.String()
		}
		batch.Add(membershipEvent(audit.ActionMembershipSubmitted, before, m, metaOut))
		out = &SubmitResult{Membership: m, Eligibility: res}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "membership submitted",
		"membership_id", out.Membership.ID.String(),
		"committee_id", req.CommitteeID.String(),
		"forced", out.Membership.SubmissionMetadata.Override != nil,
	)
	return out, nil
}

// replacementSeat checks that a named replacement is an incumbent of the
// committee and returns the number of seats its removal would free.
func replacementSeat(ctx context.Context, tx storage.Tx, replaceVoterID *id.VoterID, committee *seatmodels.Committee) (int, error) {
	if replaceVoterID == nil {
		return 0, nil
	}
	target, err := tx.FindMembershipByKey(ctx, *replaceVoterID, committee.ID, committee.TermID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return 0, storage.Translate(err, "failed to load replacement target")
	}
	if target == nil || !target.IsActive() {
		return 0, dErrors.New(dErrors.CodeConflict, "replacement target is not an active member of this committee")
	}
	return 1, nil
}

func findOrNew(ctx context.Context, tx storage.Tx, voterID id.VoterID, committee *seatmodels.Committee) (*models.Membership, bool, error) {
	m, err := tx.FindMembershipByKey(ctx, voterID, committee.ID, committee.TermID)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, false, storage.Translate(err, "failed to load membership")
	}
	return models.NewMembership(voterID, committee.ID, committee.TermID, now(ctx)), true, nil
}
