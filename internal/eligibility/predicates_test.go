package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	govmodels "lted/internal/governance/models"
	votermodels "lted/internal/voter/models"
)

func TestPartyMatches(t *testing.T) {
	assert.True(t, PartyMatches(" DEM ", "DEM"))
	assert.False(t, PartyMatches("dem", "DEM"), "comparison is case-sensitive")
	assert.False(t, PartyMatches("REP", "DEM"))
}

func TestAssemblyDistrictMatches(t *testing.T) {
	cw := &govmodels.Crosswalk{AssemblyDistrict: "21"}
	assert.True(t, AssemblyDistrictMatches(" 21", cw))
	assert.False(t, AssemblyDistrictMatches("22", cw))
	assert.False(t, AssemblyDistrictMatches("21", nil), "missing crosswalk is a mismatch")
}

func TestIsPossiblyInactive(t *testing.T) {
	v := func(y, s int) *votermodels.ImportVersion { return &votermodels.ImportVersion{Year: y, Sequence: s} }

	tests := []struct {
		name     string
		lastSeen *votermodels.ImportVersion
		latest   *votermodels.ImportVersion
		want     bool
	}{
		{"same import", v(2025, 3), v(2025, 3), false},
		{"older sequence", v(2025, 2), v(2025, 3), true},
		{"older year with higher sequence", v(2024, 9), v(2025, 1), true},
		{"no latest import", v(2024, 1), nil, false},
		{"voter without marker", nil, v(2025, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPossiblyInactive(tt.lastSeen, tt.latest))
		})
	}
}
