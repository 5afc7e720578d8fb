package domain

import "strings"

// ActorRole is the privilege level of whoever triggers a transition.
type ActorRole string

const (
	// RoleAdmin may act on any committee and force-add past overridable hard stops.
	RoleAdmin ActorRole = "admin"
	// RoleLeader is scoped to its jurisdictions and can never force-add.
	RoleLeader ActorRole = "leader"
	// RoleSystem is used by scheduled jobs.
	RoleSystem ActorRole = "system"
)

// Jurisdiction scopes a leader to a city/town and, optionally, one legislative
// district inside it. An empty LegDistrict covers the whole city/town.
type Jurisdiction struct {
	CityTown    string `json:"cityTown"`
	LegDistrict string `json:"legDistrict,omitempty"`
}

// ParseJurisdiction reads "cityTown[:legDistrict]".
func ParseJurisdiction(s string) (Jurisdiction, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Jurisdiction{}, false
	}
	city, leg, _ := strings.Cut(s, ":")
	city = strings.TrimSpace(city)
	if city == "" {
		return Jurisdiction{}, false
	}
	return Jurisdiction{CityTown: city, LegDistrict: strings.TrimSpace(leg)}, true
}

// Covers reports whether the jurisdiction includes the given committee location.
func (j Jurisdiction) Covers(cityTown, legDistrict string) bool {
	if !strings.EqualFold(j.CityTown, cityTown) {
		return false
	}
	return j.LegDistrict == "" || j.LegDistrict == legDistrict
}

// Actor is the authenticated caller as described by the upstream gateway.
type Actor struct {
	ID            ActorID        `json:"id"`
	Role          ActorRole      `json:"role"`
	Jurisdictions []Jurisdiction `json:"jurisdictions,omitempty"`
}

// SystemActor is the actor attributed to scheduled and CLI runs.
var SystemActor = Actor{Role: RoleSystem}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin || a.Role == RoleSystem }

// CanForce reports whether the actor may override eligibility hard stops.
func (a Actor) CanForce() bool { return a.Role == RoleAdmin }

// CanManage reports whether the actor has jurisdiction over a committee location.
// Admins are unscoped.
func (a Actor) CanManage(cityTown, legDistrict string) bool {
	if a.IsAdmin() {
		return true
	}
	if a.Role != RoleLeader {
		return false
	}
	for _, j := range a.Jurisdictions {
		if j.Covers(cityTown, legDistrict) {
			return true
		}
	}
	return false
}
