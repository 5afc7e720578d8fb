package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	flagmodels "lted/internal/flag/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	"lted/internal/storage/storagetest"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store     *Store
	fx        *storagetest.Fixture
	committee *seatmodels.Committee
	ctx       context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = New()
	s.fx = storagetest.Seed(s.T(), s.store, nil)
	s.committee = s.fx.Committee("Springfield", "7", 3, "12.5")
}

func (s *InMemoryStoreSuite) activeMembership(seat int) *membershipmodels.Membership {
	voter := s.fx.Voter("DEM", "", nil)
	now := time.Now()
	m := membershipmodels.NewMembership(voter.ID, s.committee.ID, s.fx.Term.ID, now)
	s.Require().NoError(m.ApplySubmit(now, id.ActorID{}, membershipmodels.SubmissionMetadata{}))
	s.Require().NoError(m.ApplyAccept(now, seat))
	return m
}

func (s *InMemoryStoreSuite) TestRunInTxRollsBackOnError() {
	boom := errors.New("boom")
	m := s.activeMembership(1)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		s.Require().NoError(tx.CreateMembership(ctx, m))
		return boom
	})
	s.ErrorIs(err, boom)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.FindMembership(ctx, m.ID)
		return err
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestRunInTxRejectsCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	err := s.store.RunInTx(ctx, func(context.Context, storage.Tx) error { return nil })
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *InMemoryStoreSuite) TestSeatsSkipDuplicates() {
	seats := []*seatmodels.Seat{
		{CommitteeID: s.committee.ID, TermID: s.fx.Term.ID, SeatNumber: 1},
		{CommitteeID: s.committee.ID, TermID: s.fx.Term.ID, SeatNumber: 2},
	}
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.InsertSeatsSkipDuplicates(ctx, seats)
		s.Require().NoError(err)
		s.Equal(2, n)

		n, err = tx.InsertSeatsSkipDuplicates(ctx, seats)
		s.Require().NoError(err)
		s.Equal(0, n)

		w := decimal.NewNullDecimal(decimal.RequireFromString("6.25"))
		updated, err := tx.UpdateSeatWeights(ctx, s.committee.ID, s.fx.Term.ID, w)
		s.Require().NoError(err)
		s.Equal(2, updated)

		listed, err := tx.ListSeats(ctx, s.committee.ID, s.fx.Term.ID)
		s.Require().NoError(err)
		s.Require().Len(listed, 2)
		s.Equal(1, listed[0].SeatNumber)
		s.True(listed[1].Weight.Decimal.Equal(w.Decimal))
		return nil
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestMembershipGuards() {
	m := s.activeMembership(1)

	s.Run("duplicate key is rejected", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
			s.Require().NoError(tx.CreateMembership(ctx, m))
			dup := membershipmodels.NewMembership(m.VoterID, m.CommitteeID, m.TermID, time.Now())
			return tx.CreateMembership(ctx, dup)
		})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("second active claim on a seat is a conflict", func() {
		s.Require().NoError(s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateMembership(ctx, m)
		}))
		other := s.activeMembership(1)
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.CreateMembership(ctx, other)
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("conditional update reports a stale guard", func() {
		err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
			stored, err := tx.FindMembership(ctx, m.ID)
			s.Require().NoError(err)
			s.Require().NoError(stored.ApplyRemove(time.Now(), membershipmodels.RemovalOther, ""))

			ok, err := tx.UpdateMembershipIfStatus(ctx, stored, membershipmodels.StatusSubmitted)
			s.Require().NoError(err)
			s.False(ok)

			ok, err = tx.UpdateMembershipIfStatus(ctx, stored, membershipmodels.StatusActive)
			s.Require().NoError(err)
			s.True(ok)

			count, err := tx.CountActive(ctx, s.committee.ID, s.fx.Term.ID)
			s.Require().NoError(err)
			s.Zero(count)
			return nil
		})
		s.Require().NoError(err)
	})
}

func (s *InMemoryStoreSuite) TestPendingFlagUniqueness() {
	m := s.activeMembership(1)
	now := time.Now()
	first := flagmodels.NewPendingFlag(m.ID, flagmodels.ReasonPartyMismatch, flagmodels.Details{}, nil, now)
	dup := flagmodels.NewPendingFlag(m.ID, flagmodels.ReasonPartyMismatch, flagmodels.Details{}, nil, now)
	other := flagmodels.NewPendingFlag(m.ID, flagmodels.ReasonPossiblyInactive, flagmodels.Details{}, nil, now)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.CreateFlagsSkipDuplicates(ctx, []*flagmodels.Flag{first, dup, other})
		s.Require().NoError(err)
		s.Equal(2, n)

		first.Resolve(flagmodels.DecisionDismiss, "", id.ActorID{}, now)
		n, err = tx.UpdateFlagsIfPending(ctx, []*flagmodels.Flag{first})
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = tx.UpdateFlagsIfPending(ctx, []*flagmodels.Flag{first})
		s.Require().NoError(err)
		s.Zero(n, "resolved flags are never rewritten")

		pending, err := tx.ListPendingFlags(ctx, []id.MembershipID{m.ID})
		s.Require().NoError(err)
		s.Len(pending, 1)
		return nil
	})
	s.Require().NoError(err)
}

func (s *InMemoryStoreSuite) TestConcurrentUnitsOfWorkSerialize() {
	const workers = 20
	var wg sync.WaitGroup
	var created atomic.Int32
	m := s.activeMembership(2)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
				if _, err := tx.FindMembership(ctx, m.ID); err == nil {
					return nil
				}
				return tx.CreateMembership(ctx, m)
			})
			if err == nil {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(workers), created.Load())
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx storage.Tx) error {
		n, err := tx.CountActive(ctx, s.committee.ID, s.fx.Term.ID)
		s.Equal(1, n)
		return err
	})
	s.Require().NoError(err)
}
