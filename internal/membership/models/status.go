package models

import (
	"fmt"

	dErrors "lted/pkg/domain-errors"
)

// Status is the membership lifecycle state.
type Status string

const (
	// StatusNone stands for "no membership row yet" in the transition table.
	StatusNone           Status = ""
	StatusSubmitted      Status = "SUBMITTED"
	StatusActive         Status = "ACTIVE"
	StatusRejected       Status = "REJECTED"
	StatusRemoved        Status = "REMOVED"
	StatusPetitionedLost Status = "PETITIONED_LOST"
	StatusPetitionedTie  Status = "PETITIONED_TIE"
)

// IsTerminal reports whether the status only re-enters through a fresh submission
// (or a petition/discrepancy re-entry).
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusRemoved, StatusPetitionedLost, StatusPetitionedTie:
		return true
	}
	return false
}

// Event is an input to the membership state machine.
type Event string

const (
	EventSubmit       Event = "submit"
	EventAccept       Event = "accept"
	EventReject       Event = "reject"
	EventRemove       Event = "remove"
	EventResign       Event = "resign"
	EventPetitionWon  Event = "petition_won"
	EventPetitionLost Event = "petition_lost"
	EventPetitionTie  Event = "petition_tie"
	EventReactivate   Event = "reactivate"
)

type transitionKey struct {
	from  Status
	event Event
}

// transitions is the single table of legal moves. Anything absent is illegal.
var transitions = map[transitionKey]Status{
	{StatusNone, EventSubmit}:           StatusSubmitted,
	{StatusRejected, EventSubmit}:       StatusSubmitted,
	{StatusRemoved, EventSubmit}:        StatusSubmitted,
	{StatusPetitionedLost, EventSubmit}: StatusSubmitted,
	{StatusPetitionedTie, EventSubmit}:  StatusSubmitted,

	{StatusSubmitted, EventAccept}: StatusActive,
	{StatusSubmitted, EventReject}: StatusRejected,

	{StatusActive, EventRemove}: StatusRemoved,
	{StatusActive, EventResign}: StatusRemoved,

	{StatusNone, EventReactivate}:           StatusActive,
	{StatusSubmitted, EventReactivate}:      StatusActive,
	{StatusRejected, EventReactivate}:       StatusActive,
	{StatusRemoved, EventReactivate}:        StatusActive,
	{StatusPetitionedLost, EventReactivate}: StatusActive,
	{StatusPetitionedTie, EventReactivate}:  StatusActive,
}

func init() {
	// Petition outcomes are recorded as upserts from any state.
	for _, from := range []Status{
		StatusNone, StatusSubmitted, StatusActive, StatusRejected,
		StatusRemoved, StatusPetitionedLost, StatusPetitionedTie,
	} {
		transitions[transitionKey{from, EventPetitionWon}] = StatusActive
		transitions[transitionKey{from, EventPetitionLost}] = StatusPetitionedLost
		transitions[transitionKey{from, EventPetitionTie}] = StatusPetitionedTie
	}
}

// Next returns the status reached by applying event to from, or a conflict
// error when the move is not in the table.
func Next(from Status, event Event) (Status, error) {
	next, ok := transitions[transitionKey{from, event}]
	if !ok {
		return from, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("cannot %s a membership in status %q", event, displayStatus(from)))
	}
	return next, nil
}

// CanApply reports whether event is legal from status.
func CanApply(from Status, event Event) bool {
	_, ok := transitions[transitionKey{from, event}]
	return ok
}

func displayStatus(s Status) string {
	if s == StatusNone {
		return "NONE"
	}
	return string(s)
}

// MembershipType records how a member obtained the seat.
type MembershipType string

const (
	TypeAppointed  MembershipType = "APPOINTED"
	TypePetitioned MembershipType = "PETITIONED"
)

// RemovalReason explains an ACTIVE -> REMOVED transition.
type RemovalReason string

const (
	RemovalPartyChange          RemovalReason = "PARTY_CHANGE"
	RemovalMovedOutOfDistrict   RemovalReason = "MOVED_OUT_OF_DISTRICT"
	RemovalInactiveRegistration RemovalReason = "INACTIVE_REGISTRATION"
	RemovalResigned             RemovalReason = "RESIGNED"
	RemovalOther                RemovalReason = "OTHER"
)

// PetitionOutcome is the primary result for one petition candidate.
type PetitionOutcome string

const (
	OutcomeWonPrimary  PetitionOutcome = "WON_PRIMARY"
	OutcomeUnopposed   PetitionOutcome = "UNOPPOSED"
	OutcomeLostPrimary PetitionOutcome = "LOST_PRIMARY"
	OutcomeTie         PetitionOutcome = "TIE"
)

// Event maps the outcome onto its state machine event.
func (o PetitionOutcome) Event() (Event, bool) {
	switch o {
	case OutcomeWonPrimary, OutcomeUnopposed:
		return EventPetitionWon, true
	case OutcomeLostPrimary:
		return EventPetitionLost, true
	case OutcomeTie:
		return EventPetitionTie, true
	}
	return "", false
}
