// Package weight computes a committee's contribution to the county-wide
// designation weight. It is pure: callers load seats and active memberships.
package weight

import (
	"fmt"

	"github.com/shopspring/decimal"

	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	dErrors "lted/pkg/domain-errors"
)

// SeatContribution is the weight one seat adds to the total.
type SeatContribution struct {
	SeatNumber   int                              `json:"seatNumber"`
	IsPetitioned bool                             `json:"isPetitioned"`
	Occupied     bool                             `json:"occupied"`
	Type         *membershipmodels.MembershipType `json:"membershipType,omitempty"`
	Weight       decimal.Decimal                  `json:"weight"`
}

// Result is the designation weight of one committee.
type Result struct {
	Total              decimal.Decimal    `json:"totalWeight"`
	ContributingSeats  int                `json:"contributingSeats"`
	MissingWeightSeats []int              `json:"missingWeightSeats"`
	Seats              []SeatContribution `json:"seats"`
}

// Compute sums petitioned, occupied seats. A petitioned seat with no weight
// contributes zero and is listed in MissingWeightSeats. Two active
// memberships on one seat number is an invariant violation.
func Compute(seats []*seatmodels.Seat, active []*membershipmodels.Membership) (*Result, error) {
	occupants := make(map[int]*membershipmodels.Membership, len(active))
	for _, m := range active {
		if !m.IsActive() || m.SeatNumber == nil {
			continue
		}
		if prev, dup := occupants[*m.SeatNumber]; dup {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("seat %d is claimed by memberships %s and %s", *m.SeatNumber, prev.ID, m.ID))
		}
		occupants[*m.SeatNumber] = m
	}

	res := &Result{
		Total:              decimal.Zero,
		MissingWeightSeats: []int{},
		Seats:              make([]SeatContribution, 0, len(seats)),
	}
	for _, seat := range seats {
		c := SeatContribution{SeatNumber: seat.SeatNumber, IsPetitioned: seat.IsPetitioned, Weight: decimal.Zero}
		occupant, occupied := occupants[seat.SeatNumber]
		if occupied {
			c.Occupied = true
			c.Type = occupant.MembershipType
		}
		switch {
		case !seat.IsPetitioned:
		case !seat.Weight.Valid:
			res.MissingWeightSeats = append(res.MissingWeightSeats, seat.SeatNumber)
		case occupied:
			c.Weight = seat.Weight.Decimal
			res.Total = res.Total.Add(seat.Weight.Decimal)
			res.ContributingSeats++
		}
		res.Seats = append(res.Seats, c)
	}
	return res, nil
}
