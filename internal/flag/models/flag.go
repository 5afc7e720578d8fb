package models

import (
	"slices"
	"time"

	"github.com/google/uuid"

	membershipmodels "lted/internal/membership/models"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
)

// Reason is a discrepancy the reconciliation job can raise.
type Reason string

const (
	ReasonPartyMismatch            Reason = "PARTY_MISMATCH"
	ReasonAssemblyDistrictMismatch Reason = "ASSEMBLY_DISTRICT_MISMATCH"
	ReasonVoterNotFound            Reason = "VOTER_NOT_FOUND"
	ReasonPossiblyInactive         Reason = "POSSIBLY_INACTIVE"
)

// DefaultVoterNotFoundNote is the removal note used when a VOTER_NOT_FOUND flag is confirmed.
const DefaultVoterNotFoundNote = "Voter record not found in BOE import"

// Removal maps a confirmed flag reason onto the membership removal it causes.
func (r Reason) Removal() (membershipmodels.RemovalReason, string) {
	switch r {
	case ReasonPartyMismatch:
		return membershipmodels.RemovalPartyChange, "Party enrollment no longer matches"
	case ReasonAssemblyDistrictMismatch:
		return membershipmodels.RemovalMovedOutOfDistrict, "Voter assembly district no longer matches committee"
	case ReasonPossiblyInactive:
		return membershipmodels.RemovalInactiveRegistration, "Voter missing from recent BOE imports"
	}
	return membershipmodels.RemovalOther, DefaultVoterNotFoundNote
}

// Status is the review state of a flag.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusDismissed Status = "DISMISSED"
)

// ReviewDecision is the human decision on a pending flag.
type ReviewDecision string

const (
	DecisionConfirm ReviewDecision = "confirm"
	DecisionDismiss ReviewDecision = "dismiss"
)

func (d ReviewDecision) IsValid() bool {
	return d == DecisionConfirm || d == DecisionDismiss
}

// Details is the diagnostic snapshot attached to a flag.
type Details struct {
	VoterParty               string                     `json:"voterParty,omitempty"`
	RequiredParty            string                     `json:"requiredParty,omitempty"`
	VoterAssemblyDistrict    string                     `json:"voterAssemblyDistrict,omitempty"`
	ExpectedAssemblyDistrict string                     `json:"expectedAssemblyDistrict,omitempty"`
	CrosswalkMissing         bool                       `json:"crosswalkMissing,omitempty"`
	VoterLastImport          *votermodels.ImportVersion `json:"voterLastImport,omitempty"`
	LatestImport             *votermodels.ImportVersion `json:"latestImport,omitempty"`
	CityTown                 string                     `json:"cityTown,omitempty"`
	LegDistrict              string                     `json:"legDistrict,omitempty"`
	ElectionDistrict         int                        `json:"electionDistrict,omitempty"`
	Review                   *Review                    `json:"review,omitempty"`
}

// Review is merged into Details when a human resolves the flag.
type Review struct {
	Decision   ReviewDecision `json:"decision"`
	Notes      string         `json:"notes,omitempty"`
	ReviewedBy id.ActorID     `json:"reviewedBy"`
	ReviewedAt time.Time      `json:"reviewedAt"`
}

// Equal compares the diagnostic content of two snapshots.
func (d Details) Equal(o Details) bool {
	return d.VoterParty == o.VoterParty &&
		d.RequiredParty == o.RequiredParty &&
		d.VoterAssemblyDistrict == o.VoterAssemblyDistrict &&
		d.ExpectedAssemblyDistrict == o.ExpectedAssemblyDistrict &&
		d.CrosswalkMissing == o.CrosswalkMissing &&
		equalVersion(d.VoterLastImport, o.VoterLastImport) &&
		equalVersion(d.LatestImport, o.LatestImport) &&
		d.CityTown == o.CityTown &&
		d.LegDistrict == o.LegDistrict &&
		d.ElectionDistrict == o.ElectionDistrict &&
		equalReview(d.Review, o.Review)
}

func equalVersion(a, b *votermodels.ImportVersion) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalReview(a, b *Review) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Decision == b.Decision && a.Notes == b.Notes && a.ReviewedBy == b.ReviewedBy && a.ReviewedAt.Equal(b.ReviewedAt)
}

// Flag is a pending or resolved eligibility discrepancy on one membership.
//
// Invariant: at most one PENDING flag exists per (MembershipID, Reason).
type Flag struct {
	ID             id.FlagID       `json:"id"`
	MembershipID   id.MembershipID `json:"membershipId"`
	Reason         Reason          `json:"reason"`
	Status         Status          `json:"status"`
	Details        Details         `json:"details"`
	SourceReportID *string         `json:"sourceReportId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	ReviewedAt     *time.Time      `json:"reviewedAt,omitempty"`
	ReviewedBy     *id.ActorID     `json:"reviewedBy,omitempty"`
}

// NewPendingFlag creates a PENDING flag.
func NewPendingFlag(membershipID id.MembershipID, reason Reason, details Details, sourceReportID *string, now time.Time) *Flag {
	return &Flag{
		ID:             id.FlagID(uuid.New()),
		MembershipID:   membershipID,
		Reason:         reason,
		Status:         StatusPending,
		Details:        details,
		SourceReportID: sourceReportID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (f *Flag) IsPending() bool { return f.Status == StatusPending }

// Refresh replaces details and provenance. A nil sourceReportID keeps the
// stored provenance. It reports false, and changes nothing, when both are
// already current.
func (f *Flag) Refresh(details Details, sourceReportID *string, now time.Time) bool {
	if sourceReportID == nil {
		sourceReportID = f.SourceReportID
	}
	if f.Details.Equal(details) && equalString(f.SourceReportID, sourceReportID) {
		return false
	}
	f.Details = details
	f.SourceReportID = sourceReportID
	f.UpdatedAt = now
	return true
}

// Resolve terminates a pending flag with a review decision.
func (f *Flag) Resolve(decision ReviewDecision, notes string, by id.ActorID, now time.Time) {
	if decision == DecisionConfirm {
		f.Status = StatusConfirmed
	} else {
		f.Status = StatusDismissed
	}
	f.Details.Review = &Review{Decision: decision, Notes: notes, ReviewedBy: by, ReviewedAt: now}
	f.ReviewedAt = &now
	f.ReviewedBy = &by
	f.UpdatedAt = now
}

// Clone returns a copy safe to mutate.
func (f *Flag) Clone() *Flag {
	c := *f
	if f.SourceReportID != nil {
		s := *f.SourceReportID
		c.SourceReportID = &s
	}
	if f.Details.Review != nil {
		r := *f.Details.Review
		c.Details.Review = &r
	}
	if f.ReviewedAt != nil {
		t := *f.ReviewedAt
		c.ReviewedAt = &t
	}
	if f.ReviewedBy != nil {
		b := *f.ReviewedBy
		c.ReviewedBy = &b
	}
	return &c
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Key identifies the pending-flag uniqueness slot.
type Key struct {
	MembershipID id.MembershipID
	Reason       Reason
}

func (f *Flag) Key() Key { return Key{MembershipID: f.MembershipID, Reason: f.Reason} }

// AllReasons lists reasons in the order the job evaluates them.
var AllReasons = []Reason{ReasonVoterNotFound, ReasonPartyMismatch, ReasonAssemblyDistrictMismatch, ReasonPossiblyInactive}

func (r Reason) IsValid() bool { return slices.Contains(AllReasons, r) }
