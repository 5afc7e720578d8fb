package models

import (
	"time"

	"github.com/shopspring/decimal"

	govmodels "lted/internal/governance/models"
	id "lted/pkg/domain"
)

// Committee is an LTED: one city/town + legislative district + election
// district for a term.
type Committee struct {
	ID               id.CommitteeID      `json:"id"`
	TermID           id.TermID           `json:"termId"`
	CityTown         string              `json:"cityTown"`
	LegDistrict      string              `json:"legDistrict"`
	ElectionDistrict int                 `json:"electionDistrict"`
	LTEDWeight       decimal.NullDecimal `json:"ltedWeight"`
}

// Key returns the crosswalk lookup key for the committee.
func (c *Committee) Key() govmodels.DistrictKey {
	return govmodels.DistrictKey{
		CityTown:         c.CityTown,
		LegDistrict:      c.LegDistrict,
		ElectionDistrict: c.ElectionDistrict,
	}
}

// Seat is one numbered slot on a committee for a term. Seats are created
// lazily and never deleted within a term.
type Seat struct {
	CommitteeID  id.CommitteeID      `json:"committeeId"`
	TermID       id.TermID           `json:"termId"`
	SeatNumber   int                 `json:"seatNumber"`
	IsPetitioned bool                `json:"isPetitioned"`
	Weight       decimal.NullDecimal `json:"weight"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// SeatWeight derives the per-seat weight: ltedWeight / maxSeats, or null when
// the committee has no weight yet.
func SeatWeight(ltedWeight decimal.NullDecimal, maxSeats int) decimal.NullDecimal {
	if !ltedWeight.Valid || maxSeats < 1 {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: ltedWeight.Decimal.Div(decimal.NewFromInt(int64(maxSeats))),
		Valid:   true,
	}
}
