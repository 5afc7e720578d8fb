// Package domain holds typed identifiers shared across modules.
//
// Each identifier is a distinct named UUID type so a committee id can never be
// passed where a voter id is expected. Construct them with the Parse functions
// at trust boundaries; those reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "lted/pkg/domain-errors"
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

func unmarshalUUID(kind string, text []byte) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	parsed, err := uuid.ParseBytes(text)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind)
	}
	return parsed, nil
}

// VoterID identifies a voter.
type VoterID uuid.UUID

// ParseVoterID parses a VoterID from external input.
func ParseVoterID(s string) (VoterID, error) {
	u, err := parseUUID("voter_id", s)
	return VoterID(u), err
}

func (i VoterID) String() string { return uuid.UUID(i).String() }

func (i VoterID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i VoterID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *VoterID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("voter_id", text)
	if err != nil {
		return err
	}
	*i = VoterID(u)
	return nil
}

// CommitteeID identifies a committee.
type CommitteeID uuid.UUID

// ParseCommitteeID parses a CommitteeID from external input.
func ParseCommitteeID(s string) (CommitteeID, error) {
	u, err := parseUUID("committee_id", s)
	return CommitteeID(u), err
}

func (i CommitteeID) String() string { return uuid.UUID(i).String() }

func (i CommitteeID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i CommitteeID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *CommitteeID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("committee_id", text)
	if err != nil {
		return err
	}
	*i = CommitteeID(u)
	return nil
}

// TermID identifies an election term.
type TermID uuid.UUID

// ParseTermID parses a TermID from external input.
func ParseTermID(s string) (TermID, error) {
	u, err := parseUUID("term_id", s)
	return TermID(u), err
}

func (i TermID) String() string { return uuid.UUID(i).String() }

func (i TermID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i TermID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *TermID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("term_id", text)
	if err != nil {
		return err
	}
	*i = TermID(u)
	return nil
}

// MembershipID identifies a membership.
type MembershipID uuid.UUID

// ParseMembershipID parses a MembershipID from external input.
func ParseMembershipID(s string) (MembershipID, error) {
	u, err := parseUUID("membership_id", s)
	return MembershipID(u), err
}

func (i MembershipID) String() string { return uuid.UUID(i).String() }

func (i MembershipID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i MembershipID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *MembershipID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("membership_id", text)
	if err != nil {
		return err
	}
	*i = MembershipID(u)
	return nil
}

// FlagID identifies an eligibility flag.
type FlagID uuid.UUID

// ParseFlagID parses a FlagID from external input.
func ParseFlagID(s string) (FlagID, error) {
	u, err := parseUUID("flag_id", s)
	return FlagID(u), err
}

func (i FlagID) String() string { return uuid.UUID(i).String() }

func (i FlagID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i FlagID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *FlagID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("flag_id", text)
	if err != nil {
		return err
	}
	*i = FlagID(u)
	return nil
}

// MeetingID identifies a meeting.
type MeetingID uuid.UUID

// ParseMeetingID parses a MeetingID from external input.
func ParseMeetingID(s string) (MeetingID, error) {
	u, err := parseUUID("meeting_id", s)
	return MeetingID(u), err
}

func (i MeetingID) String() string { return uuid.UUID(i).String() }

func (i MeetingID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i MeetingID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *MeetingID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("meeting_id", text)
	if err != nil {
		return err
	}
	*i = MeetingID(u)
	return nil
}

// ActorID identifies the user performing an action.
type ActorID uuid.UUID

// ParseActorID parses a ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID("actor_id", s)
	return ActorID(u), err
}

func (i ActorID) String() string { return uuid.UUID(i).String() }

func (i ActorID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

func (i ActorID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ActorID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("actor_id", text)
	if err != nil {
		return err
	}
	*i = ActorID(u)
	return nil
}
