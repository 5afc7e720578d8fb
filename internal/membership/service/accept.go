package service

import (
	"context"
	"time"

	govservice "lted/internal/governance/service"
	"lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
)

// Accept moves a SUBMITTED membership to ACTIVE. Eligibility is re-checked and
// capacity is evaluated under the committee lock; a full committee turns the
// acceptance into a REJECTED membership rather than an error. A replacement
// named at submission is removed in the same unit of work.
func (s *Service) Accept(ctx context.Context, membershipID id.MembershipID) (*models.AcceptResult, error) {
	return s.accept(ctx, membershipID, nil)
}

func (s *Service) accept(ctx context.Context, membershipID id.MembershipID, meetingID *id.MeetingID) (*models.AcceptResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.metrics.ObserveAcceptLatency(time.Since(start)) }()

	var out *models.AcceptResult
	err = s.transition(ctx, "accept", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		m, committee, err := lockSubmitted(ctx, tx, membershipID)
		if err != nil {
			return err
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}
		cfg, err := govservice.LoadConfig(ctx, tx)
		if err != nil {
			return err
		}
		res, err := s.activate(ctx, tx, batch, activation{
			kind:             "accept",
			membership:       m,
			committee:        committee,
			config:           cfg,
			revalidate:       true,
			rejectOnCapacity: true,
			replaceVoterID:   m.SubmissionMetadata.ReplaceVoterID,
			meetingID:        meetingID,
			at:               now(ctx),
		})
		if err != nil {
			return err
		}
		out = &models.AcceptResult{
			Membership:       res.membership,
			Replaced:         res.replaced,
			CapacityRejected: res.capacityRejected,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "membership accepted",
		"membership_id", membershipID.String(),
		"status", out.Membership.Status,
		"capacity_rejected", out.CapacityRejected,
	)
	return out, nil
}

// lockSubmitted locks the membership's committee and re-reads the membership
// under that lock, so the SUBMITTED guard is checked against current state.
func lockSubmitted(ctx context.Context, tx storage.Tx, membershipID id.MembershipID) (*models.Membership, *seatmodels.Committee, error) {
	m, err := tx.FindMembership(ctx, membershipID)
	if err != nil {
		return nil, nil, storage.Translate(err, "membership not found")
	}
	committee, err := tx.LockCommittee(ctx, m.CommitteeID)
	if err != nil {
		return nil, nil, storage.Translate(err, "committee not found")
	}
	m, err = tx.FindMembership(ctx, membershipID)
	if err != nil {
		return nil, nil, storage.Translate(err, "membership not found")
	}
	if m.Status != models.StatusSubmitted {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "membership is no longer SUBMITTED")
	}
	return m, committee, nil
}
