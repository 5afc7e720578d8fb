package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
)

// Submitted inserts a SUBMITTED membership directly, bypassing the service.
func Submitted(t testing.TB, store storage.Store, voterID id.VoterID, c *seatmodels.Committee, meta membershipmodels.SubmissionMetadata) *membershipmodels.Membership {
	t.Helper()
	now := time.Now().UTC()
	m := membershipmodels.NewMembership(voterID, c.ID, c.TermID, now)
	require.NoError(t, m.ApplySubmit(now, id.ActorID{}, meta))
	insert(t, store, m)
	return m
}

// Active inserts an ACTIVE appointed membership on seat.
func Active(t testing.TB, store storage.Store, voterID id.VoterID, c *seatmodels.Committee, seat int) *membershipmodels.Membership {
	t.Helper()
	now := time.Now().UTC()
	m := membershipmodels.NewMembership(voterID, c.ID, c.TermID, now)
	require.NoError(t, m.ApplySubmit(now, id.ActorID{}, membershipmodels.SubmissionMetadata{}))
	require.NoError(t, m.ApplyAccept(now, seat))
	insert(t, store, m)
	return m
}

// Load reads a membership back.
func Load(t testing.TB, store storage.Store, membershipID id.MembershipID) *membershipmodels.Membership {
	t.Helper()
	var out *membershipmodels.Membership
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		m, err := tx.FindMembership(ctx, membershipID)
		out = m
		return err
	}))
	return out
}

// Seats lists a committee's seats.
func Seats(t testing.TB, store storage.Store, c *seatmodels.Committee) []*seatmodels.Seat {
	t.Helper()
	var out []*seatmodels.Seat
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		seats, err := tx.ListSeats(ctx, c.ID, c.TermID)
		out = seats
		return err
	}))
	return out
}

func insert(t testing.TB, store storage.Store, m *membershipmodels.Membership) {
	t.Helper()
	require.NoError(t, store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.CreateMembership(ctx, m)
	}))
}
