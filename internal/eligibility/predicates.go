package eligibility

import (
	"strings"

	govmodels "lted/internal/governance/models"
	votermodels "lted/internal/voter/models"
)

// PartyMatches compares enrollment to the required party code. Both sides are
// trimmed; the comparison is case-sensitive.
func PartyMatches(voterParty, requiredParty string) bool {
	return strings.TrimSpace(voterParty) == strings.TrimSpace(requiredParty)
}

// AssemblyDistrictMatches compares the voter's assembly district to the
// crosswalk row for the committee. A missing crosswalk row is a mismatch.
func AssemblyDistrictMatches(voterAssemblyDistrict string, cw *govmodels.Crosswalk) bool {
	if cw == nil {
		return false
	}
	return strings.TrimSpace(voterAssemblyDistrict) == strings.TrimSpace(cw.AssemblyDistrict)
}

// IsPossiblyInactive reports whether the voter was last seen in an import
// strictly older than the latest one. Unknown markers on either side never flag.
func IsPossiblyInactive(lastSeen, latest *votermodels.ImportVersion) bool {
	if lastSeen == nil || latest == nil || latest.IsZero() {
		return false
	}
	return lastSeen.Before(*latest)
}
