package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"lted/internal/governance/models"
	"lted/internal/storage/memory"
	"lted/internal/storage/storagetest"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite
	store *memory.Store
	svc   *Service
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = memory.New()
	s.svc = New(s.store)
}

func (s *ResolverSuite) TestCurrent() {
	ctx := context.Background()

	s.Run("missing config is reported as not found", func() {
		_, err := s.svc.Current(ctx)
		s.Require().Error(err)
		s.True(IsMissing(err))
	})

	s.Run("defaults to the active term", func() {
		fx := storagetest.Seed(s.T(), s.store, nil)
		g, err := s.svc.Current(ctx)
		s.Require().NoError(err)
		s.Equal(fx.Term.ID, g.Term.ID)
		s.Equal("DEM", g.Config.RequiredPartyCode)
	})
}

func (s *ResolverSuite) TestInvalidConfigIsRejectedBySeeder() {
	cfg := storagetest.DefaultConfig()
	cfg.MaxSeatsPerLTED = 0
	err := s.store.SaveGovernanceConfig(context.Background(), cfg)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

type stubReader struct {
	cfg    *models.Config
	active *models.Term
	terms  map[id.TermID]*models.Term
}

func (r stubReader) GovernanceConfig(context.Context) (*models.Config, error) { return r.cfg, nil }
func (r stubReader) ActiveTerm(context.Context) (*models.Term, error)         { return r.active, nil }
func (r stubReader) FindTerm(_ context.Context, termID id.TermID) (*models.Term, error) {
	t, ok := r.terms[termID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "term not found")
	}
	return t, nil
}

func (s *ResolverSuite) TestResolve() {
	ctx := context.Background()
	past := &models.Term{ID: id.TermID(uuid.New()), Label: "2022-2024"}
	active := &models.Term{ID: id.TermID(uuid.New()), Label: "2024-2026", IsActive: true}
	r := stubReader{
		cfg:    storagetest.DefaultConfig(),
		active: active,
		terms:  map[id.TermID]*models.Term{past.ID: past},
	}

	s.Run("explicit term wins over the active one", func() {
		g, err := Resolve(ctx, r, &past.ID)
		s.Require().NoError(err)
		s.Equal(past.ID, g.Term.ID)
	})

	s.Run("unknown term is not found", func() {
		missing := id.TermID(uuid.New())
		_, err := Resolve(ctx, r, &missing)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("config invariants are enforced on read", func() {
		bad := storagetest.DefaultConfig()
		bad.RequiredPartyCode = "  "
		_, err := Resolve(ctx, stubReader{cfg: bad, active: active}, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
