package models

import id "lted/pkg/domain"

// AcceptResult reports what an acceptance did. When CapacityRejected is set the
// membership was moved to REJECTED instead of ACTIVE.
type AcceptResult struct {
	Membership       *Membership `json:"membership"`
	Replaced         *Membership `json:"replaced,omitempty"`
	CapacityRejected bool        `json:"capacityRejected"`
}

// Decision is the action a meeting takes on one submitted membership.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// MeetingDecision is one entry of a bulk meeting decision request.
type MeetingDecision struct {
	MembershipID id.MembershipID `json:"membershipId"`
	Decision     Decision        `json:"decision"`
	Note         string          `json:"note,omitempty"`
}

// DecisionOutcome classifies how one bulk decision item ended.
type DecisionOutcome string

const (
	OutcomeApplied    DecisionOutcome = "applied"
	OutcomeIneligible DecisionOutcome = "ineligible"
	OutcomeConflict   DecisionOutcome = "conflict"
	OutcomeInvalid    DecisionOutcome = "invalid"
	OutcomeFailed     DecisionOutcome = "failed"
)

// DecisionResult is the per-item result of a bulk meeting decision.
type DecisionResult struct {
	MembershipID id.MembershipID `json:"membershipId"`
	Decision     Decision        `json:"decision"`
	Outcome      DecisionOutcome `json:"outcome"`
	Status       Status          `json:"status,omitempty"`
	SeatNumber   *int            `json:"seatNumber,omitempty"`
	Reasons      []string        `json:"reasons,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// PetitionCandidate is one named candidate in a petition outcome.
type PetitionCandidate struct {
	VoterID   id.VoterID      `json:"voterId"`
	Outcome   PetitionOutcome `json:"outcome"`
	VoteCount *int            `json:"voteCount,omitempty"`
}

// DiscrepancyResult reports the discrepancy acceptance outcome. Changed is false
// when the voter already held an active membership on the committee.
type DiscrepancyResult struct {
	Membership  *Membership `json:"membership"`
	Changed     bool        `json:"changed"`
	Reactivated bool        `json:"reactivated"`
}
