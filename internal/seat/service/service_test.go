package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"lted/internal/seat/models"
	"lted/internal/storage"
	"lted/internal/storage/memory"
	"lted/internal/storage/storagetest"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/platform/audit/publisher"
	auditmemory "lted/pkg/platform/audit/store/memory"
	"lted/pkg/requestcontext"
)

type SeatServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *memory.Store
	fx         *storagetest.Fixture
	committee  *models.Committee
	auditStore *auditmemory.InMemoryStore
	svc        *Service
}

func TestSeatServiceSuite(t *testing.T) {
	suite.Run(t, new(SeatServiceSuite))
}

func (s *SeatServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithActor(context.Background(), id.Actor{ID: id.ActorID(uuid.New()), Role: id.RoleAdmin})
	s.store = memory.New()
	s.fx = storagetest.Seed(s.T(), s.store, nil)
	s.committee = s.fx.Committee("Springfield", "7", 3, "5")
	s.auditStore = auditmemory.NewInMemoryStore()
	s.svc = New(s.store, WithAuditPublisher(publisher.NewPublisher(s.auditStore)))
}

func (s *SeatServiceSuite) inTx(fn func(ctx context.Context, tx storage.Tx) error) {
	s.Require().NoError(s.store.RunInTx(s.ctx, fn))
}

func (s *SeatServiceSuite) TestEnsureSeatsExistIsIdempotent() {
	s.inTx(func(ctx context.Context, tx storage.Tx) error {
		created, err := EnsureSeatsExist(ctx, tx, s.committee, 2)
		s.Require().NoError(err)
		s.Equal(2, created)

		created, err = EnsureSeatsExist(ctx, tx, s.committee, 2)
		s.Require().NoError(err)
		s.Zero(created)
		return nil
	})

	seats := storagetest.Seats(s.T(), s.store, s.committee)
	s.Require().Len(seats, 2)
	s.True(seats[0].Weight.Decimal.Equal(decimal.RequireFromString("2.5")))
}

func (s *SeatServiceSuite) TestAssignNextAvailableSeat() {
	first := s.fx.Voter("DEM", "", nil)
	storagetest.Active(s.T(), s.store, first.ID, s.committee, 2)

	s.Run("returns the lowest free seat", func() {
		s.inTx(func(ctx context.Context, tx storage.Tx) error {
			n, err := AssignNextAvailableSeat(ctx, tx, s.committee, 2)
			s.Require().NoError(err)
			s.Equal(1, n)
			return nil
		})
	})

	s.Run("full committee is a conflict", func() {
		second := s.fx.Voter("DEM", "", nil)
		storagetest.Active(s.T(), s.store, second.ID, s.committee, 1)
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
			_, err := AssignNextAvailableSeat(ctx, tx, s.committee, 2)
			return err
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *SeatServiceSuite) TestSetCommitteeWeight() {
	s.Run("leaders may not change weights", func() {
		ctx := requestcontext.WithActor(context.Background(), id.Actor{Role: id.RoleLeader})
		_, err := s.svc.SetCommitteeWeight(ctx, s.committee.ID, decimal.NullDecimal{})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("recomputes every seat weight", func() {
		updated, err := s.svc.SetCommitteeWeight(s.ctx, s.committee.ID, decimal.NewNullDecimal(decimal.NewFromInt(8)))
		s.Require().NoError(err)
		s.True(updated.LTEDWeight.Decimal.Equal(decimal.NewFromInt(8)))

		for _, seat := range storagetest.Seats(s.T(), s.store, s.committee) {
			s.True(seat.Weight.Valid)
			s.True(seat.Weight.Decimal.Equal(decimal.NewFromInt(4)), seat.Weight.Decimal.String())
		}

		events, err := s.auditStore.ListByEntity(s.ctx, s.committee.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionSeatWeightsRecomputed, events[0].Action)
	})

	s.Run("clearing the weight nulls the seats", func() {
		_, err := s.svc.SetCommitteeWeight(s.ctx, s.committee.ID, decimal.NullDecimal{})
		s.Require().NoError(err)
		for _, seat := range storagetest.Seats(s.T(), s.store, s.committee) {
			s.False(seat.Weight.Valid)
		}
	})
}

func (s *SeatServiceSuite) TestDesignationWeight() {
	other := s.fx.Committee("Springfield", "7", 4, "")
	s.inTx(func(ctx context.Context, tx storage.Tx) error {
		for _, c := range []*models.Committee{s.committee, other} {
			if _, err := EnsureSeatsExist(ctx, tx, c, 2); err != nil {
				return err
			}
			if err := tx.MarkSeatPetitioned(ctx, c.ID, c.TermID, 1); err != nil {
				return err
			}
		}
		return nil
	})
	holder := s.fx.Voter("DEM", "", nil)
	storagetest.Active(s.T(), s.store, holder.ID, s.committee, 1)

	s.Run("committee", func() {
		cw, err := s.svc.CommitteeDesignationWeight(s.ctx, s.committee.ID)
		s.Require().NoError(err)
		s.True(cw.Total.Equal(decimal.RequireFromString("2.5")))
		s.Equal(1, cw.ContributingSeats)
	})

	s.Run("county", func() {
		county, err := s.svc.CountyDesignationWeight(s.ctx, nil)
		s.Require().NoError(err)
		s.True(county.Total.Equal(decimal.RequireFromString("2.5")))
		s.Len(county.Committees, 2)
		s.Equal([]id.CommitteeID{other.ID}, county.MissingWeight)
	})
}
