package eligibility

import (
	"context"

	govservice "lted/internal/governance/service"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/requestcontext"
)

// Service runs read-only eligibility checks in their own unit of work.
type Service struct {
	store     storage.Store
	validator *Validator
}

func NewService(store storage.Store, validator *Validator) *Service {
	if validator == nil {
		validator = New()
	}
	return &Service{store: store, validator: validator}
}

// Check evaluates eligibility without mutating anything. A nil termID selects
// the active term. The caller needs the same standing as for a submission:
// jurisdiction over the committee, and admin rights to preview a force-add.
func (s *Service) Check(ctx context.Context, voterID id.VoterID, committeeID id.CommitteeID, termID *id.TermID, opts Options) (*Result, error) {
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no acting user")
	}
	if opts.ForceAdd && !actor.CanForce() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may force-add a member")
	}

	var out *Result
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		gov, err := govservice.Resolve(ctx, tx, termID)
		if err != nil {
			return err
		}
		committee, err := tx.FindCommittee(ctx, committeeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}
		out, err = s.validator.Validate(ctx, tx, gov.Config, Input{
			VoterID:     voterID,
			CommitteeID: committeeID,
			TermID:      gov.Term.ID,
		}, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
