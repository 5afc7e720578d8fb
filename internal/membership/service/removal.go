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

// Resign records a member's resignation: REMOVED with reason RESIGNED.
func (s *Service) Resign(ctx context.Context, membershipID id.MembershipID, notes string) (*models.Membership, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	var out *models.Membership
	err = s.transition(ctx, "resign", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		m, err := loadManaged(ctx, tx, actor, membershipID)
		if err != nil {
			return err
		}
		before := m.Clone()
		if err := m.ApplyResign(now(ctx), strings.TrimSpace(notes)); err != nil {
			return err
		}
		if err := persist(ctx, tx, m, models.StatusActive, false); err != nil {
			return err
		}
		batch.Add(membershipEvent(audit.ActionMembershipResigned, before, m, nil))
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Remove takes an ACTIVE member off the committee with an explicit reason.
// Resignations go through Resign.
func (s *Service) Remove(ctx context.Context, membershipID id.MembershipID, reason models.RemovalReason, notes string) (*models.Membership, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	switch reason {
	case models.RemovalPartyChange, models.RemovalMovedOutOfDistrict, models.RemovalInactiveRegistration, models.RemovalOther:
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "unsupported removal reason "+string(reason))
	}
	var out *models.Membership
	err = s.transition(ctx, "remove", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		if _, err := loadManaged(ctx, tx, actor, membershipID); err != nil {
			return err
		}
		m, err := s.RemoveInTx(ctx, tx, batch, membershipID, reason, notes, nil)
		out = m
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveInTx is the ACTIVE -> REMOVED transition for callers that already hold
// a unit of work, such as flag review. The membership must still be ACTIVE.
func (s *Service) RemoveInTx(ctx context.Context, tx storage.Tx, batch *audit.Batch, membershipID id.MembershipID, reason models.RemovalReason, notes string, meta map[string]any) (*models.Membership, error) {
	m, err := tx.FindMembership(ctx, membershipID)
	if err != nil {
		return nil, storage.Translate(err, "membership not found")
	}
	if !m.IsActive() {
		return nil, dErrors.New(dErrors.CodeConflict, "membership is no longer ACTIVE")
	}
	before := m.Clone()
	if err := m.ApplyRemove(now(ctx), reason, strings.TrimSpace(notes)); err != nil {
		return nil, err
	}
	if err := persist(ctx, tx, m, models.StatusActive, false); err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["removal_reason"] = reason
	batch.Add(membershipEvent(audit.ActionMembershipRemoved, before, m, meta))
	return m, nil
}

func loadManaged(ctx context.Context, tx storage.Tx, actor id.Actor, membershipID id.MembershipID) (*models.Membership, error) {
	m, err := tx.FindMembership(ctx, membershipID)
	if err != nil {
		return nil, storage.Translate(err, "membership not found")
	}
	committee, err := tx.FindCommittee(ctx, m.CommitteeID)
	if err != nil {
		return nil, storage.Translate(err, "committee not found")
	}
	if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
		return nil, dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
	}
	return m, nil
}
