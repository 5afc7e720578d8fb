package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	govmodels "lted/internal/governance/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

// Membership is one voter's standing on one committee for one term.
//
// Invariants:
//   - (VoterID, CommitteeID, TermID) is unique
//   - SeatNumber is set only while Status is ACTIVE
//   - a voter holds at most one ACTIVE membership per term
//   - a (CommitteeID, TermID, SeatNumber) is claimed by at most one ACTIVE membership
//
// Rows are never deleted; terminal statuses are re-entered through a fresh
// submission, which resets transition timestamps, type and seat.
type Membership struct {
	ID                  id.MembershipID    `json:"id"`
	VoterID             id.VoterID         `json:"voterId"`
	CommitteeID         id.CommitteeID     `json:"committeeId"`
	TermID              id.TermID          `json:"termId"`
	Status              Status             `json:"status"`
	MembershipType      *MembershipType    `json:"membershipType,omitempty"`
	SeatNumber          *int               `json:"seatNumber,omitempty"`
	SubmittedAt         *time.Time         `json:"submittedAt,omitempty"`
	ConfirmedAt         *time.Time         `json:"confirmedAt,omitempty"`
	ActivatedAt         *time.Time         `json:"activatedAt,omitempty"`
	RejectedAt          *time.Time         `json:"rejectedAt,omitempty"`
	RemovedAt           *time.Time         `json:"removedAt,omitempty"`
	ResignedAt          *time.Time         `json:"resignedAt,omitempty"`
	RemovalReason       *RemovalReason     `json:"removalReason,omitempty"`
	RemovalNotes        string             `json:"removalNotes,omitempty"`
	RejectionNote       string             `json:"rejectionNote,omitempty"`
	PetitionVoteCount   *int               `json:"petitionVoteCount,omitempty"`
	PetitionPrimaryDate *time.Time         `json:"petitionPrimaryDate,omitempty"`
	MeetingID           *id.MeetingID      `json:"meetingId,omitempty"`
	SubmittedBy         id.ActorID         `json:"submittedBy"`
	SubmissionMetadata  SubmissionMetadata `json:"submissionMetadata"`
	CreatedAt           time.Time          `json:"createdAt"`
	UpdatedAt           time.Time          `json:"updatedAt"`
}

// NewMembership builds a row in the pre-submission state for a voter/committee/term key.
func NewMembership(voterID id.VoterID, committeeID id.CommitteeID, termID id.TermID, now time.Time) *Membership {
	return &Membership{
		ID:          id.MembershipID(uuid.New()),
		VoterID:     voterID,
		CommitteeID: committeeID,
		TermID:      termID,
		Status:      StatusNone,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (m *Membership) IsActive() bool { return m.Status == StatusActive }

// Clone returns a deep copy, used for before/after audit snapshots.
func (m *Membership) Clone() *Membership {
	if m == nil {
		return nil
	}
	c := *m
	c.MembershipType = clonePtr(m.MembershipType)
	c.SeatNumber = clonePtr(m.SeatNumber)
	c.SubmittedAt = clonePtr(m.SubmittedAt)
	c.ConfirmedAt = clonePtr(m.ConfirmedAt)
	c.ActivatedAt = clonePtr(m.ActivatedAt)
	c.RejectedAt = clonePtr(m.RejectedAt)
	c.RemovedAt = clonePtr(m.RemovedAt)
	c.ResignedAt = clonePtr(m.ResignedAt)
	c.RemovalReason = clonePtr(m.RemovalReason)
	c.PetitionVoteCount = clonePtr(m.PetitionVoteCount)
	c.PetitionPrimaryDate = clonePtr(m.PetitionPrimaryDate)
	c.MeetingID = clonePtr(m.MeetingID)
	c.SubmissionMetadata = m.SubmissionMetadata.clone()
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T { return &v }

func (m *Membership) transition(event Event, now time.Time) error {
	next, err := Next(m.Status, event)
	if err != nil {
		return err
	}
	m.Status = next
	m.UpdatedAt = now
	return nil
}

// resetCycle clears every per-cycle field so a re-entered key starts clean.
func (m *Membership) resetCycle() {
	m.MembershipType = nil
	m.SeatNumber = nil
	m.SubmittedAt = nil
	m.ConfirmedAt = nil
	m.ActivatedAt = nil
	m.RejectedAt = nil
	m.RemovedAt = nil
	m.ResignedAt = nil
	m.RemovalReason = nil
	m.RemovalNotes = ""
	m.RejectionNote = ""
	m.PetitionVoteCount = nil
	m.PetitionPrimaryDate = nil
	m.MeetingID = nil
}

// ApplySubmit starts a fresh submission cycle.
func (m *Membership) ApplySubmit(now time.Time, by id.ActorID, meta SubmissionMetadata) error {
	if err := m.transition(EventSubmit, now); err != nil {
		return err
	}
	m.resetCycle()
	m.SubmittedAt = ptr(now)
	m.SubmittedBy = by
	m.SubmissionMetadata = meta
	return nil
}

// ApplyAccept activates a SUBMITTED membership on seat.
func (m *Membership) ApplyAccept(now time.Time, seat int) error {
	if err := m.transition(EventAccept, now); err != nil {
		return err
	}
	m.activate(now, seat, TypeAppointed)
	return nil
}

// ApplyReactivate activates a non-active row in place (discrepancy acceptance).
// A row coming back from a terminal state starts a new appointed cycle, so
// earlier petition results do not carry over.
func (m *Membership) ApplyReactivate(now time.Time, seat int) error {
	fresh := m.startsNewCycle()
	if err := m.transition(EventReactivate, now); err != nil {
		return err
	}
	if fresh {
		m.resetCycle()
	}
	m.activate(now, seat, TypeAppointed)
	return nil
}

// startsNewCycle reports whether the next transition opens a new cycle for
// the key rather than continuing the current one.
func (m *Membership) startsNewCycle() bool {
	return m.Status == StatusNone || m.Status.IsTerminal()
}

func (m *Membership) activate(now time.Time, seat int, defaultType MembershipType) {
	m.SeatNumber = ptr(seat)
	m.ConfirmedAt = ptr(now)
	m.ActivatedAt = ptr(now)
	if m.MembershipType == nil {
		m.MembershipType = ptr(defaultType)
	}
}

// ApplyReject rejects a SUBMITTED membership.
func (m *Membership) ApplyReject(now time.Time, note string) error {
	if err := m.transition(EventReject, now); err != nil {
		return err
	}
	m.RejectedAt = ptr(now)
	m.RejectionNote = note
	m.SeatNumber = nil
	return nil
}

// ApplyRemove removes an ACTIVE membership and frees its seat.
func (m *Membership) ApplyRemove(now time.Time, reason RemovalReason, notes string) error {
	if err := m.transition(EventRemove, now); err != nil {
		return err
	}
	m.SeatNumber = nil
	m.RemovedAt = ptr(now)
	m.RemovalReason = ptr(reason)
	m.RemovalNotes = notes
	return nil
}

// ApplyResign records a resignation: REMOVED with reason RESIGNED.
func (m *Membership) ApplyResign(now time.Time, notes string) error {
	if err := m.transition(EventResign, now); err != nil {
		return err
	}
	m.SeatNumber = nil
	m.RemovedAt = ptr(now)
	m.ResignedAt = ptr(now)
	m.RemovalReason = ptr(RemovalResigned)
	m.RemovalNotes = notes
	return nil
}

// PetitionResult carries the per-candidate inputs of a petition outcome.
type PetitionResult struct {
	Outcome     PetitionOutcome
	SeatNumber  int
	VoteCount   *int
	PrimaryDate *time.Time
}

// ApplyPetition records a petition outcome. Winners take the seat; losers and
// ties hold no seat and lose their activation stamps. A row entering from a
// terminal state is reset first.
func (m *Membership) ApplyPetition(now time.Time, res PetitionResult) error {
	event, ok := res.Outcome.Event()
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "unknown petition outcome "+string(res.Outcome))
	}
	wasActive := m.IsActive()
	fresh := m.startsNewCycle()
	if err := m.transition(event, now); err != nil {
		return err
	}
	if fresh {
		m.resetCycle()
	}
	m.MembershipType = ptr(TypePetitioned)
	m.PetitionVoteCount = clonePtr(res.VoteCount)
	m.PetitionPrimaryDate = clonePtr(res.PrimaryDate)
	if m.Status == StatusActive {
		m.SeatNumber = ptr(res.SeatNumber)
		m.ConfirmedAt = ptr(now)
		if !wasActive || m.ActivatedAt == nil {
			m.ActivatedAt = ptr(now)
		}
		return nil
	}
	m.SeatNumber = nil
	m.ConfirmedAt = nil
	m.ActivatedAt = nil
	return nil
}

// SubmissionMetadata captures request-time intent. Known fields are typed;
// anything else the caller sent travels untouched in Extra.
type SubmissionMetadata struct {
	ReplaceVoterID *id.VoterID     `json:"replaceVoterId,omitempty"`
	Contact        *Contact        `json:"contact,omitempty"`
	Warnings       []string        `json:"warnings,omitempty"`
	Override       *Override       `json:"override,omitempty"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

// Contact is optional contact info supplied with a submission.
type Contact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Override records an admin force-add: why, and which hard stops it bypassed.
type Override struct {
	Reason          string             `json:"reason"`
	BypassedReasons []govmodels.Reason `json:"bypassedReasons"`
	ActorID         id.ActorID         `json:"actorId"`
}

func (s SubmissionMetadata) clone() SubmissionMetadata {
	c := s
	c.ReplaceVoterID = clonePtr(s.ReplaceVoterID)
	c.Contact = clonePtr(s.Contact)
	c.Warnings = append([]string(nil), s.Warnings...)
	if s.Override != nil {
		o := *s.Override
		o.BypassedReasons = append([]govmodels.Reason(nil), s.Override.BypassedReasons...)
		c.Override = &o
	}
	c.Extra = append(json.RawMessage(nil), s.Extra...)
	return c
}
