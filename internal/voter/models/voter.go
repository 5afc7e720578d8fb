package models

import id "lted/pkg/domain"

// ImportVersion orders voter-roll imports: by year, then by sequence within the year.
type ImportVersion struct {
	Year     int `json:"year"`
	Sequence int `json:"sequence"`
}

// Before reports whether v is strictly older than other.
func (v ImportVersion) Before(other ImportVersion) bool {
	if v.Year != other.Year {
		return v.Year < other.Year
	}
	return v.Sequence < other.Sequence
}

func (v ImportVersion) IsZero() bool { return v.Year == 0 && v.Sequence == 0 }

// Voter is the read model of a registered voter as last imported from the BOE roll.
type Voter struct {
	ID               id.VoterID     `json:"id"`
	StateVoterID     string         `json:"stateVoterId"`
	FirstName        string         `json:"firstName"`
	LastName         string         `json:"lastName"`
	Party            string         `json:"party"`
	AssemblyDistrict string         `json:"assemblyDistrict"`
	LastImport       *ImportVersion `json:"lastImport,omitempty"`
}
