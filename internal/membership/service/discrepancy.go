package service

import (
	"context"

	govservice "lted/internal/governance/service"
	"lted/internal/membership/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
)

// AcceptDiscrepancy seats a voter the roll shows as a committee member but the
// system does not. Under the committee lock: an existing active membership on
// this committee is a no-op, one elsewhere is a conflict, and otherwise the
// voter's row is reactivated in place (or created) on the next free seat.
// Eligibility is not re-checked on this path.
func (s *Service) AcceptDiscrepancy(ctx context.Context, committeeID id.CommitteeID, voterID id.VoterID) (*models.DiscrepancyResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	var out *models.DiscrepancyResult
	err = s.transition(ctx, "discrepancy", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		cfg, err := govservice.LoadConfig(ctx, tx)
		if err != nil {
			return err
		}
		committee, err := tx.LockCommittee(ctx, committeeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}
		if _, err := tx.FindVoter(ctx, voterID); err != nil {
			return storage.Translate(err, "voter not found")
		}

		held, err := tx.ListActiveByVoter(ctx, voterID, committee.TermID)
		if err != nil {
			return storage.Translate(err, "failed to load voter memberships")
		}
		for _, h := range held {
			if h.CommitteeID == committee.ID {
				out = &models.DiscrepancyResult{Membership: h}
				return nil
			}
			return dErrors.New(dErrors.CodeConflict, "voter is active on another committee")
		}

		m, isNew, err := findOrNew(ctx, tx, voterID, committee)
		if err != nil {
			return err
		}
		if isNew {
			m.SubmittedBy = actor.ID
		}
		res, err := s.activate(ctx, tx, batch, activation{
			kind:       "discrepancy",
			membership: m,
			isNew:      isNew,
			committee:  committee,
			config:     cfg,
			at:         now(ctx),
		})
		if err != nil {
			return err
		}
		out = &models.DiscrepancyResult{Membership: res.membership, Changed: true, Reactivated: !isNew}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
