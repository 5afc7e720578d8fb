package handler

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	flagmodels "lted/internal/flag/models"
	"lted/internal/membership/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

const maxNoteLength = 2000

func checkNote(field, v string) error {
	if len(v) > maxNoteLength {
		return dErrors.New(dErrors.CodeValidation, field+" must be at most 2000 characters")
	}
	return nil
}

// SubmitRequest is the body of POST /memberships.
type SubmitRequest struct {
	VoterID        id.VoterID      `json:"voterId"`
	CommitteeID    id.CommitteeID  `json:"committeeId"`
	TermID         *id.TermID      `json:"termId,omitempty"`
	ForceAdd       bool            `json:"forceAdd"`
	OverrideReason string          `json:"overrideReason,omitempty"`
	ReplaceVoterID *id.VoterID     `json:"replaceVoterId,omitempty"`
	Contact        *models.Contact `json:"contact,omitempty"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

func (r *SubmitRequest) Validate() error {
	if r.VoterID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "voterId is required")
	}
	if r.CommitteeID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "committeeId is required")
	}
	r.OverrideReason = strings.TrimSpace(r.OverrideReason)
	return checkNote("overrideReason", r.OverrideReason)
}

// NoteRequest is the optional body of reject and resign.
type NoteRequest struct {
	Note string `json:"note,omitempty"`
}

func (r *NoteRequest) Validate() error {
	r.Note = strings.TrimSpace(r.Note)
	return checkNote("note", r.Note)
}

// RemoveRequest is the body of POST /memberships/{id}/remove.
type RemoveRequest struct {
	Reason models.RemovalReason `json:"reason"`
	Notes  string               `json:"notes,omitempty"`
}

func (r *RemoveRequest) Validate() error {
	switch r.Reason {
	case models.RemovalPartyChange, models.RemovalMovedOutOfDistrict,
		models.RemovalInactiveRegistration, models.RemovalOther:
	case models.RemovalResigned:
		return dErrors.New(dErrors.CodeValidation, "use the resign endpoint for resignations")
	default:
		return dErrors.New(dErrors.CodeValidation, "reason must be one of PARTY_CHANGE, MOVED_OUT_OF_DISTRICT, INACTIVE_REGISTRATION, OTHER")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return checkNote("notes", r.Notes)
}

// BulkDecisionRequest is the body of POST /meetings/{meetingID}/decisions.
type BulkDecisionRequest struct {
	Decisions []models.MeetingDecision `json:"decisions"`
}

func (r *BulkDecisionRequest) Validate() error {
	if len(r.Decisions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "decisions must not be empty")
	}
	if len(r.Decisions) > 500 {
		return dErrors.New(dErrors.CodeValidation, "at most 500 decisions per meeting request")
	}
	return nil
}

// PetitionRequest is the body of POST /committees/{committeeID}/seats/{seatNumber}/petition.
type PetitionRequest struct {
	PrimaryDate *time.Time                 `json:"primaryDate,omitempty"`
	Candidates  []models.PetitionCandidate `json:"candidates"`
}

func (r *PetitionRequest) Validate() error {
	if len(r.Candidates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "candidates must not be empty")
	}
	return nil
}

// DiscrepancyRequest is the body of POST /committees/{committeeID}/discrepancies.
type DiscrepancyRequest struct {
	VoterID id.VoterID `json:"voterId"`
}

func (r *DiscrepancyRequest) Validate() error {
	if r.VoterID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "voterId is required")
	}
	return nil
}

// WeightRequest is the body of PUT /committees/{committeeID}/weight. A null
// ltedWeight clears it.
type WeightRequest struct {
	LTEDWeight decimal.NullDecimal `json:"ltedWeight"`
}

func (r *WeightRequest) Validate() error {
	if r.LTEDWeight.Valid && r.LTEDWeight.Decimal.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "ltedWeight must not be negative")
	}
	return nil
}

// EligibilityRequest is the body of POST /eligibility/check.
type EligibilityRequest struct {
	VoterID        id.VoterID     `json:"voterId"`
	CommitteeID    id.CommitteeID `json:"committeeId"`
	TermID         *id.TermID     `json:"termId,omitempty"`
	ForceAdd       bool           `json:"forceAdd"`
	OverrideReason string         `json:"overrideReason,omitempty"`
}

func (r *EligibilityRequest) Validate() error {
	if r.VoterID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "voterId is required")
	}
	if r.CommitteeID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "committeeId is required")
	}
	r.OverrideReason = strings.TrimSpace(r.OverrideReason)
	return nil
}

// ReconcileRequest is the optional body of POST /reconciliations.
type ReconcileRequest struct {
	TermID         *id.TermID `json:"termId,omitempty"`
	SourceReportID *string    `json:"sourceReportId,omitempty"`
}

func (r *ReconcileRequest) Validate() error {
	if r.SourceReportID != nil {
		s := strings.TrimSpace(*r.SourceReportID)
		if s == "" {
			r.SourceReportID = nil
		} else {
			r.SourceReportID = &s
		}
	}
	return nil
}

// ReviewRequest is the body of POST /flags/{id}/review.
type ReviewRequest struct {
	Decision flagmodels.ReviewDecision `json:"decision"`
	Notes    string                    `json:"notes,omitempty"`
}

func (r *ReviewRequest) Validate() error {
	r.Decision = flagmodels.ReviewDecision(strings.ToLower(strings.TrimSpace(string(r.Decision))))
	if !r.Decision.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "decision must be confirm or dismiss")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return checkNote("notes", r.Notes)
}
