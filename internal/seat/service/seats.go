// Package service is the seat allocation engine plus the designation weight
// read path.
package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	membershipmodels "lted/internal/membership/models"
	"lted/internal/seat/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

// SeatStore is the unit-of-work surface the engine runs on.
type SeatStore interface {
	InsertSeatsSkipDuplicates(ctx context.Context, seats []*models.Seat) (int, error)
	ListSeats(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*models.Seat, error)
	UpdateSeatWeights(ctx context.Context, committeeID id.CommitteeID, termID id.TermID, weight decimal.NullDecimal) (int, error)
	ListActiveByCommittee(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*membershipmodels.Membership, error)
}

// EnsureSeatsExist creates seats 1..maxSeats that are missing. Existing seats
// are untouched, so repeated and concurrent calls converge on the same set.
// New seats get the committee's derived weight.
func EnsureSeatsExist(ctx context.Context, st SeatStore, committee *models.Committee, maxSeats int) (int, error) {
	weight := models.SeatWeight(committee.LTEDWeight, maxSeats)
	seats := make([]*models.Seat, 0, maxSeats)
	for n := 1; n <= maxSeats; n++ {
		seats = append(seats, &models.Seat{
			CommitteeID: committee.ID,
			TermID:      committee.TermID,
			SeatNumber:  n,
			Weight:      weight,
		})
	}
	created, err := st.InsertSeatsSkipDuplicates(ctx, seats)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create seats")
	}
	return created, nil
}

// AssignNextAvailableSeat returns the lowest seat number in 1..maxSeats no
// active membership holds. It must run under the committee lock that
// authorized the capacity check. No free seat is a conflict.
func AssignNextAvailableSeat(ctx context.Context, st SeatStore, committee *models.Committee, maxSeats int) (int, error) {
	if _, err := EnsureSeatsExist(ctx, st, committee, maxSeats); err != nil {
		return 0, err
	}
	active, err := st.ListActiveByCommittee(ctx, committee.ID, committee.TermID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load active memberships")
	}
	held := make(map[int]bool, len(active))
	for _, m := range active {
		if m.SeatNumber != nil {
			held[*m.SeatNumber] = true
		}
	}
	for n := 1; n <= maxSeats; n++ {
		if !held[n] {
			return n, nil
		}
	}
	return 0, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("committee %s has no free seat (max %d)", committee.ID, maxSeats))
}

// RecomputeSeatWeights sets every seat's weight to ltedWeight / maxSeats, or
// null when the committee has no weight.
func RecomputeSeatWeights(ctx context.Context, st SeatStore, committee *models.Committee, maxSeats int) (decimal.NullDecimal, error) {
	if _, err := EnsureSeatsExist(ctx, st, committee, maxSeats); err != nil {
		return decimal.NullDecimal{}, err
	}
	weight := models.SeatWeight(committee.LTEDWeight, maxSeats)
	if _, err := st.UpdateSeatWeights(ctx, committee.ID, committee.TermID, weight); err != nil {
		return decimal.NullDecimal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update seat weights")
	}
	return weight, nil
}
