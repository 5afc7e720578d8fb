package models

import (
	"slices"
	"strings"
	"time"

	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

// LegDistrictNotApplicable is the sentinel legislative district used by
// jurisdictions that are not split by legislative district.
const LegDistrictNotApplicable = "NA"

// Reason is an eligibility hard-stop reason.
type Reason string

const (
	ReasonNotRegistered             Reason = "NOT_REGISTERED"
	ReasonPartyMismatch             Reason = "PARTY_MISMATCH"
	ReasonAssemblyDistrictMismatch  Reason = "ASSEMBLY_DISTRICT_MISMATCH"
	ReasonCapacity                  Reason = "CAPACITY"
	ReasonAlreadyInAnotherCommittee Reason = "ALREADY_IN_ANOTHER_COMMITTEE"
)

// Config is the singleton governance configuration.
//
// Invariants:
//   - RequiredPartyCode is non-empty after trimming
//   - MaxSeatsPerLTED >= 1
type Config struct {
	RequiredPartyCode               string    `json:"requiredPartyCode"`
	RequireAssemblyDistrictMatch    bool      `json:"requireAssemblyDistrictMatch"`
	MaxSeatsPerLTED                 int       `json:"maxSeatsPerLted"`
	NonOverridableIneligibleReasons []Reason  `json:"nonOverridableIneligibilityReasons"`
	UpdatedAt                       time.Time `json:"updatedAt"`
}

// Validate enforces the config invariants.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RequiredPartyCode) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "governance config requires a party code")
	}
	if c.MaxSeatsPerLTED < 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "governance config requires at least one seat per committee")
	}
	return nil
}

// IsOverridable reports whether an admin force-add may bypass reason.
func (c *Config) IsOverridable(reason Reason) bool {
	return !slices.Contains(c.NonOverridableIneligibleReasons, reason)
}

// Term is an election cycle window. Exactly one term is active at a time.
type Term struct {
	ID        id.TermID `json:"id"`
	Label     string    `json:"label"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	IsActive  bool      `json:"isActive"`
}

// DistrictKey locates an LTED on the map: city/town, legislative district and
// election district.
type DistrictKey struct {
	CityTown         string `json:"cityTown"`
	LegDistrict      string `json:"legDistrict"`
	ElectionDistrict int    `json:"electionDistrict"`
}

// Crosswalk maps an LTED to the state assembly district its voters should carry.
type Crosswalk struct {
	Key              DistrictKey `json:"key"`
	AssemblyDistrict string      `json:"assemblyDistrict"`
}
