// Package storagetest seeds reference data into any storage.Seeder so service
// tests and store integration tests share one vocabulary.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	govmodels "lted/internal/governance/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
)

// Fixture holds the seeded config and active term.
type Fixture struct {
	t      testing.TB
	seeder storage.Seeder
	Config *govmodels.Config
	Term   *govmodels.Term
}

// DefaultConfig requires DEM enrollment, two seats per LTED, and treats
// NOT_REGISTERED as non-overridable.
func DefaultConfig() *govmodels.Config {
	return &govmodels.Config{
		RequiredPartyCode:               "DEM",
		RequireAssemblyDistrictMatch:    false,
		MaxSeatsPerLTED:                 2,
		NonOverridableIneligibleReasons: []govmodels.Reason{govmodels.ReasonNotRegistered},
		UpdatedAt:                       time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Seed saves cfg (DefaultConfig when nil) and an active term.
func Seed(t testing.TB, seeder storage.Seeder, cfg *govmodels.Config) *Fixture {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	ctx := context.Background()
	require.NoError(t, seeder.SaveGovernanceConfig(ctx, cfg))

	term := &govmodels.Term{
		ID:        id.TermID(uuid.New()),
		Label:     "2024-2026",
		StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
	require.NoError(t, seeder.SaveTerm(ctx, term))
	return &Fixture{t: t, seeder: seeder, Config: cfg, Term: term}
}

// Committee saves an LTED in the fixture term. An empty weight leaves
// LTEDWeight null.
func (f *Fixture) Committee(cityTown, legDistrict string, electionDistrict int, weight string) *seatmodels.Committee {
	f.t.Helper()
	c := &seatmodels.Committee{
		ID:               id.CommitteeID(uuid.New()),
		TermID:           f.Term.ID,
		CityTown:         cityTown,
		LegDistrict:      legDistrict,
		ElectionDistrict: electionDistrict,
	}
	if weight != "" {
		c.LTEDWeight = decimal.NewNullDecimal(decimal.RequireFromString(weight))
	}
	require.NoError(f.t, f.seeder.SaveCommittee(context.Background(), c))
	return c
}

// Crosswalk maps the committee's district key to an assembly district.
func (f *Fixture) Crosswalk(c *seatmodels.Committee, assemblyDistrict string) {
	f.t.Helper()
	require.NoError(f.t, f.seeder.SaveCrosswalk(context.Background(), &govmodels.Crosswalk{
		Key:              c.Key(),
		AssemblyDistrict: assemblyDistrict,
	}))
}

// Voter saves a voter with the given party and assembly district.
func (f *Fixture) Voter(party, assemblyDistrict string, lastImport *votermodels.ImportVersion) *votermodels.Voter {
	f.t.Helper()
	v := &votermodels.Voter{
		ID:               id.VoterID(uuid.New()),
		StateVoterID:     uuid.NewString()[:8],
		FirstName:        "Test",
		LastName:         "Voter",
		Party:            party,
		AssemblyDistrict: assemblyDistrict,
		LastImport:       lastImport,
	}
	require.NoError(f.t, f.seeder.SaveVoter(context.Background(), v))
	return v
}

// SaveVoter overwrites a previously seeded voter, e.g. after a party change.
func (f *Fixture) SaveVoter(v *votermodels.Voter) {
	f.t.Helper()
	require.NoError(f.t, f.seeder.SaveVoter(context.Background(), v))
}

// LatestImport records the most recent voter-roll import marker.
func (f *Fixture) LatestImport(year, sequence int) {
	f.t.Helper()
	require.NoError(f.t, f.seeder.SetLatestImportVersion(context.Background(),
		votermodels.ImportVersion{Year: year, Sequence: sequence}))
}
