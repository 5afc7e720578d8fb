// Package storage defines the transactional contract the governance core runs
// against. Implementations live in storage/memory and storage/postgres.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	flagmodels "lted/internal/flag/models"
	govmodels "lted/internal/governance/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
)

// Store opens units of work. Every read and write of the core happens inside
// fn; returning an error rolls the unit back.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the full read/write surface available inside a unit of work.
// Finders return sentinel.ErrNotFound when the row does not exist.
type Tx interface {
	GovernanceReader
	VoterReader
	CommitteeStore
	MembershipStore
	FlagStore
}

type GovernanceReader interface {
	GovernanceConfig(ctx context.Context) (*govmodels.Config, error)
	ActiveTerm(ctx context.Context) (*govmodels.Term, error)
	FindTerm(ctx context.Context, termID id.TermID) (*govmodels.Term, error)
	FindCrosswalk(ctx context.Context, key govmodels.DistrictKey) (*govmodels.Crosswalk, error)
	// ListCrosswalks returns the rows for exactly the given keys; keys without
	// a row are absent from the result.
	ListCrosswalks(ctx context.Context, keys []govmodels.DistrictKey) ([]*govmodels.Crosswalk, error)
}

type VoterReader interface {
	FindVoter(ctx context.Context, voterID id.VoterID) (*votermodels.Voter, error)
	ListVoters(ctx context.Context, voterIDs []id.VoterID) ([]*votermodels.Voter, error)
	// LatestImportVersion returns nil when no import has been recorded.
	LatestImportVersion(ctx context.Context) (*votermodels.ImportVersion, error)
}

type CommitteeStore interface {
	FindCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error)
	ListCommittees(ctx context.Context, termID id.TermID) ([]*seatmodels.Committee, error)
	// LockCommittee takes an exclusive row lock on the committee for the rest
	// of the unit of work and returns the locked row.
	LockCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error)
	UpdateCommitteeWeight(ctx context.Context, committeeID id.CommitteeID, weight decimal.NullDecimal) error

	// InsertSeatsSkipDuplicates creates the given seats, ignoring any that
	// already exist, and returns how many were created.
	InsertSeatsSkipDuplicates(ctx context.Context, seats []*seatmodels.Seat) (int, error)
	ListSeats(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*seatmodels.Seat, error)
	UpdateSeatWeights(ctx context.Context, committeeID id.CommitteeID, termID id.TermID, weight decimal.NullDecimal) (int, error)
	MarkSeatPetitioned(ctx context.Context, committeeID id.CommitteeID, termID id.TermID, seatNumber int) error
}

type MembershipStore interface {
	FindMembership(ctx context.Context, membershipID id.MembershipID) (*membershipmodels.Membership, error)
	FindMembershipByKey(ctx context.Context, voterID id.VoterID, committeeID id.CommitteeID, termID id.TermID) (*membershipmodels.Membership, error)
	CountActive(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) (int, error)
	ListActiveByCommittee(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*membershipmodels.Membership, error)
	ListActiveByVoter(ctx context.Context, voterID id.VoterID, termID id.TermID) ([]*membershipmodels.Membership, error)
	ListActiveByTerm(ctx context.Context, termID id.TermID) ([]*membershipmodels.Membership, error)
	ListByMeeting(ctx context.Context, meetingID id.MeetingID) ([]*membershipmodels.Membership, error)

	// CreateMembership inserts a new row. A duplicate (voter, committee, term)
	// key or a second active seat/voter claim yields sentinel.ErrConflict.
	CreateMembership(ctx context.Context, m *membershipmodels.Membership) error
	// UpdateMembershipIfStatus writes m only while the stored row still has
	// status expected. It reports false when the guard did not match.
	UpdateMembershipIfStatus(ctx context.Context, m *membershipmodels.Membership, expected membershipmodels.Status) (bool, error)
}

type FlagStore interface {
	FindFlag(ctx context.Context, flagID id.FlagID) (*flagmodels.Flag, error)
	ListPendingFlags(ctx context.Context, membershipIDs []id.MembershipID) ([]*flagmodels.Flag, error)
	// CreateFlagsSkipDuplicates inserts new PENDING flags, skipping any whose
	// (membership, reason) already has a PENDING flag. Returns rows created.
	CreateFlagsSkipDuplicates(ctx context.Context, flags []*flagmodels.Flag) (int, error)
	// UpdateFlagsIfPending writes flags whose stored row is still PENDING and
	// returns how many were written.
	UpdateFlagsIfPending(ctx context.Context, flags []*flagmodels.Flag) (int, error)
}

// Seeder loads the reference data the core reads but never creates: config,
// terms, crosswalk rows, committees and imported voters.
type Seeder interface {
	SaveGovernanceConfig(ctx context.Context, cfg *govmodels.Config) error
	SaveTerm(ctx context.Context, term *govmodels.Term) error
	SaveCrosswalk(ctx context.Context, cw *govmodels.Crosswalk) error
	SaveCommittee(ctx context.Context, committee *seatmodels.Committee) error
	SaveVoter(ctx context.Context, voter *votermodels.Voter) error
	SetLatestImportVersion(ctx context.Context, v votermodels.ImportVersion) error
}
