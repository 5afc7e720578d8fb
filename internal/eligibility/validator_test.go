package eligibility

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	govmodels "lted/internal/governance/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage/memory"
	"lted/internal/storage/storagetest"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/requestcontext"
)

type ValidatorSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	fx        *storagetest.Fixture
	committee *seatmodels.Committee
	svc       *Service
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.ctx = requestcontext.WithActor(context.Background(), id.Actor{ID: id.ActorID(uuid.New()), Role: id.RoleAdmin})
	s.store = memory.New()
	cfg := storagetest.DefaultConfig()
	cfg.MaxSeatsPerLTED = 1
	s.fx = storagetest.Seed(s.T(), s.store, cfg)
	s.committee = s.fx.Committee("Springfield", "7", 3, "10")
	s.svc = NewService(s.store, New())
}

func (s *ValidatorSuite) check(voterID id.VoterID, opts Options) *Result {
	res, err := s.svc.Check(s.ctx, voterID, s.committee.ID, nil, opts)
	s.Require().NoError(err)
	return res
}

func (s *ValidatorSuite) TestPartyMismatchOnEmptyCommittee() {
	voter := s.fx.Voter("REP", "21", nil)

	res := s.check(voter.ID, Options{})

	s.False(res.Eligible)
	s.Equal([]govmodels.Reason{govmodels.ReasonPartyMismatch}, res.HardStops)
	var ie *IneligibleError
	s.Require().ErrorAs(res.Err(), &ie)
	s.True(dErrors.HasCode(res.Err(), dErrors.CodeIneligible))
}

func (s *ValidatorSuite) TestUnknownVoterShortCircuits() {
	res := s.check(id.VoterID(uuid.New()), Options{})
	s.False(res.Eligible)
	s.Equal([]govmodels.Reason{govmodels.ReasonNotRegistered}, res.HardStops)
}

func (s *ValidatorSuite) TestChecksAccumulate() {
	s.fx.Config.RequireAssemblyDistrictMatch = true
	s.Require().NoError(s.store.SaveGovernanceConfig(s.ctx, s.fx.Config))
	incumbent := s.fx.Voter("DEM", "21", nil)
	storagetest.Active(s.T(), s.store, incumbent.ID, s.committee, 1)

	other := s.fx.Committee("Springfield", "7", 4, "")
	voter := s.fx.Voter("REP", "22", nil)
	storagetest.Active(s.T(), s.store, voter.ID, other, 1)

	res := s.check(voter.ID, Options{})

	s.Equal([]govmodels.Reason{
		govmodels.ReasonPartyMismatch,
		govmodels.ReasonAssemblyDistrictMismatch,
		govmodels.ReasonCapacity,
		govmodels.ReasonAlreadyInAnotherCommittee,
	}, res.HardStops)
}

func (s *ValidatorSuite) TestAssemblyDistrictUsesCrosswalk() {
	s.fx.Config.RequireAssemblyDistrictMatch = true
	s.Require().NoError(s.store.SaveGovernanceConfig(s.ctx, s.fx.Config))
	voter := s.fx.Voter("DEM", "21", nil)

	s.Run("missing crosswalk row blocks", func() {
		res := s.check(voter.ID, Options{})
		s.Equal([]govmodels.Reason{govmodels.ReasonAssemblyDistrictMismatch}, res.HardStops)
	})

	s.Run("matching crosswalk row passes", func() {
		s.fx.Crosswalk(s.committee, "21")
		res := s.check(voter.ID, Options{})
		s.True(res.Eligible)
		s.Empty(res.HardStops)
	})
}

func (s *ValidatorSuite) TestOverride() {
	voter := s.fx.Voter("REP", "21", nil)

	s.Run("forceAdd without a reason is a validation error", func() {
		res := s.check(voter.ID, Options{ForceAdd: true})
		s.False(res.Eligible)
		s.NotEmpty(res.ValidationError)
		s.True(dErrors.HasCode(res.Err(), dErrors.CodeValidation))
	})

	s.Run("forceAdd with a reason bypasses overridable stops", func() {
		res := s.check(voter.ID, Options{ForceAdd: true, OverrideReason: "party change pending at BOE"})
		s.True(res.Eligible)
		s.Equal([]govmodels.Reason{govmodels.ReasonPartyMismatch}, res.BypassedReasons)
		s.NoError(res.Err())
	})

	s.Run("non-overridable reasons still block", func() {
		res := s.check(id.VoterID(uuid.New()), Options{ForceAdd: true, OverrideReason: "trust me"})
		s.False(res.Eligible)
		s.Empty(res.ValidationError)
		s.Empty(res.BypassedReasons)
	})

	s.Run("activation never overrides another committee's seat", func() {
		other := s.fx.Committee("Springfield", "7", 9, "")
		elsewhere := s.fx.Voter("DEM", "21", nil)
		storagetest.Active(s.T(), s.store, elsewhere.ID, other, 1)

		res := s.check(elsewhere.ID, Options{ForceAdd: true, OverrideReason: "x", Activation: true})
		s.False(res.Eligible)
		s.Equal([]govmodels.Reason{govmodels.ReasonAlreadyInAnotherCommittee}, res.HardStops)
	})
}

func (s *ValidatorSuite) TestActivationSkipsCapacity() {
	incumbent := s.fx.Voter("DEM", "21", nil)
	storagetest.Active(s.T(), s.store, incumbent.ID, s.committee, 1)
	voter := s.fx.Voter("DEM", "21", nil)

	s.True(s.check(voter.ID, Options{}).Has(govmodels.ReasonCapacity))
	s.True(s.check(voter.ID, Options{Activation: true}).Eligible)
}

func (s *ValidatorSuite) TestPossiblyInactiveIsAWarning() {
	s.fx.LatestImport(2025, 4)
	voter := s.fx.Voter("DEM", "21", &votermodels.ImportVersion{Year: 2025, Sequence: 2})

	res := s.check(voter.ID, Options{})

	s.True(res.Eligible)
	s.Equal([]string{WarningPossiblyInactive}, res.Warnings)
}

func (s *ValidatorSuite) TestUnknownCommittee() {
	voter := s.fx.Voter("DEM", "21", nil)
	_, err := s.svc.Check(s.ctx, voter.ID, id.CommitteeID(uuid.New()), nil, Options{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ValidatorSuite) TestCallerStanding() {
	voter := s.fx.Voter("DEM", "21", nil)
	leader := func(raw string) context.Context {
		j, ok := id.ParseJurisdiction(raw)
		s.Require().True(ok)
		return requestcontext.WithActor(context.Background(), id.Actor{
			ID:            id.ActorID(uuid.New()),
			Role:          id.RoleLeader,
			Jurisdictions: []id.Jurisdiction{j},
		})
	}

	s.Run("anonymous callers are unauthorized", func() {
		_, err := s.svc.Check(context.Background(), voter.ID, s.committee.ID, nil, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("only admins may preview a force-add", func() {
		_, err := s.svc.Check(leader("Springfield:7"), voter.ID, s.committee.ID, nil, Options{ForceAdd: true, OverrideReason: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("leaders outside the jurisdiction are forbidden", func() {
		_, err := s.svc.Check(leader("Shelbyville"), voter.ID, s.committee.ID, nil, Options{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("leaders inside the jurisdiction get a result", func() {
		res, err := s.svc.Check(leader("Springfield:7"), voter.ID, s.committee.ID, nil, Options{})
		s.Require().NoError(err)
		s.True(res.Eligible)
	})
}
