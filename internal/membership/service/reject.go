package service

import (
	"context"
	"strings"

	"lted/internal/membership/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
)

// Reject moves a SUBMITTED membership to REJECTED. The write is conditional on
// the row still being SUBMITTED, so it never clobbers a concurrent accept.
func (s *Service) Reject(ctx context.Context, membershipID id.MembershipID, note string) (*models.Membership, error) {
	return s.reject(ctx, membershipID, note, nil)
}

func (s *Service) reject(ctx context.Context, membershipID id.MembershipID, note string, meetingID *id.MeetingID) (*models.Membership, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	var out *models.Membership
	err = s.transition(ctx, "reject", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		m, err := tx.FindMembership(ctx, membershipID)
		if err != nil {
			return storage.Translate(err, "membership not found")
		}
		committee, err := tx.FindCommittee(ctx, m.CommitteeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}
		before := m.Clone()
		if err := m.ApplyReject(now(ctx), strings.TrimSpace(note)); err != nil {
			return err
		}
		if meetingID != nil {
			m.MeetingID = meetingID
		}
		if err := persist(ctx, tx, m, models.StatusSubmitted, false); err != nil {
			return err
		}
		batch.Add(membershipEvent(audit.ActionMembershipRejected, before, m, map[string]any{
			"reason": "decision",
		}))
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
