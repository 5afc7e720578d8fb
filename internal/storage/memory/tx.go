package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	flagmodels "lted/internal/flag/models"
	govmodels "lted/internal/governance/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	"lted/pkg/platform/sentinel"
)

// tx operates directly on the live state; the store restores its snapshot
// when the unit of work fails.
type tx struct {
	data *state
}

func (t *tx) GovernanceConfig(_ context.Context) (*govmodels.Config, error) {
	if t.data.config == nil {
		return nil, fmt.Errorf("governance config: %w", sentinel.ErrNotFound)
	}
	return cloneConfig(t.data.config), nil
}

func (t *tx) ActiveTerm(_ context.Context) (*govmodels.Term, error) {
	for _, term := range t.data.terms {
		if term.IsActive {
			c := *term
			return &c, nil
		}
	}
	return nil, fmt.Errorf("active term: %w", sentinel.ErrNotFound)
}

func (t *tx) FindTerm(_ context.Context, termID id.TermID) (*govmodels.Term, error) {
	term, ok := t.data.terms[termID]
	if !ok {
		return nil, fmt.Errorf("term %s: %w", termID, sentinel.ErrNotFound)
	}
	c := *term
	return &c, nil
}

func (t *tx) FindCrosswalk(_ context.Context, key govmodels.DistrictKey) (*govmodels.Crosswalk, error) {
	cw, ok := t.data.crosswalks[key]
	if !ok {
		return nil, fmt.Errorf("crosswalk: %w", sentinel.ErrNotFound)
	}
	c := *cw
	return &c, nil
}

func (t *tx) ListCrosswalks(_ context.Context, keys []govmodels.DistrictKey) ([]*govmodels.Crosswalk, error) {
	out := make([]*govmodels.Crosswalk, 0, len(keys))
	seen := make(map[govmodels.DistrictKey]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		if cw, ok := t.data.crosswalks[k]; ok {
			c := *cw
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *tx) FindVoter(_ context.Context, voterID id.VoterID) (*votermodels.Voter, error) {
	v, ok := t.data.voters[voterID]
	if !ok {
		return nil, fmt.Errorf("voter %s: %w", voterID, sentinel.ErrNotFound)
	}
	return cloneVoter(v), nil
}

func (t *tx) ListVoters(_ context.Context, voterIDs []id.VoterID) ([]*votermodels.Voter, error) {
	out := make([]*votermodels.Voter, 0, len(voterIDs))
	for _, vid := range voterIDs {
		if v, ok := t.data.voters[vid]; ok {
			out = append(out, cloneVoter(v))
		}
	}
	return out, nil
}

func (t *tx) LatestImportVersion(_ context.Context) (*votermodels.ImportVersion, error) {
	if t.data.latestImport == nil {
		return nil, nil
	}
	v := *t.data.latestImport
	return &v, nil
}

func (t *tx) FindCommittee(_ context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error) {
	c, ok := t.data.committees[committeeID]
	if !ok {
		return nil, fmt.Errorf("committee %s: %w", committeeID, sentinel.ErrNotFound)
	}
	cm := *c
	return &cm, nil
}

func (t *tx) ListCommittees(_ context.Context, termID id.TermID) ([]*seatmodels.Committee, error) {
	var out []*seatmodels.Committee
	for _, c := range t.data.committees {
		if c.TermID == termID {
			cm := *c
			out = append(out, &cm)
		}
	}
	slices.SortFunc(out, func(a, b *seatmodels.Committee) int {
		return cmp.Or(
			cmp.Compare(a.CityTown, b.CityTown),
			cmp.Compare(a.LegDistrict, b.LegDistrict),
			cmp.Compare(a.ElectionDistrict, b.ElectionDistrict),
		)
	})
	return out, nil
}

func (t *tx) LockCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error) {
	return t.FindCommittee(ctx, committeeID)
}

func (t *tx) UpdateCommitteeWeight(_ context.Context, committeeID id.CommitteeID, weight decimal.NullDecimal) error {
	c, ok := t.data.committees[committeeID]
	if !ok {
		return fmt.Errorf("committee %s: %w", committeeID, sentinel.ErrNotFound)
	}
	c.LTEDWeight = weight
	return nil
}

func (t *tx) InsertSeatsSkipDuplicates(_ context.Context, seats []*seatmodels.Seat) (int, error) {
	created := 0
	for _, s := range seats {
		k := seatKey{s.CommitteeID, s.TermID, s.SeatNumber}
		if _, exists := t.data.seats[k]; exists {
			continue
		}
		c := *s
		t.data.seats[k] = &c
		created++
	}
	return created, nil
}

func (t *tx) ListSeats(_ context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*seatmodels.Seat, error) {
	var out []*seatmodels.Seat
	for k, s := range t.data.seats {
		if k.committeeID == committeeID && k.termID == termID {
			c := *s
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *seatmodels.Seat) int { return cmp.Compare(a.SeatNumber, b.SeatNumber) })
	return out, nil
}

func (t *tx) UpdateSeatWeights(_ context.Context, committeeID id.CommitteeID, termID id.TermID, weight decimal.NullDecimal) (int, error) {
	n := 0
	for k, s := range t.data.seats {
		if k.committeeID == committeeID && k.termID == termID {
			s.Weight = weight
			n++
		}
	}
	return n, nil
}

func (t *tx) MarkSeatPetitioned(_ context.Context, committeeID id.CommitteeID, termID id.TermID, seatNumber int) error {
	s, ok := t.data.seats[seatKey{committeeID, termID, seatNumber}]
	if !ok {
		return fmt.Errorf("seat %d: %w", seatNumber, sentinel.ErrNotFound)
	}
	s.IsPetitioned = true
	return nil
}

func (t *tx) FindMembership(_ context.Context, membershipID id.MembershipID) (*membershipmodels.Membership, error) {
	m, ok := t.data.memberships[membershipID]
	if !ok {
		return nil, fmt.Errorf("membership %s: %w", membershipID, sentinel.ErrNotFound)
	}
	return m.Clone(), nil
}

func (t *tx) FindMembershipByKey(_ context.Context, voterID id.VoterID, committeeID id.CommitteeID, termID id.TermID) (*membershipmodels.Membership, error) {
	for _, m := range t.data.memberships {
		if m.VoterID == voterID && m.CommitteeID == committeeID && m.TermID == termID {
			return m.Clone(), nil
		}
	}
	return nil, fmt.Errorf("membership by key: %w", sentinel.ErrNotFound)
}

func (t *tx) CountActive(_ context.Context, committeeID id.CommitteeID, termID id.TermID) (int, error) {
	n := 0
	for _, m := range t.data.memberships {
		if m.IsActive() && m.CommitteeID == committeeID && m.TermID == termID {
			n++
		}
	}
	return n, nil
}

func (t *tx) ListActiveByCommittee(_ context.Context, committeeID id.CommitteeID, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.filter(func(m *membershipmodels.Membership) bool {
		return m.IsActive() && m.CommitteeID == committeeID && m.TermID == termID
	}), nil
}

func (t *tx) ListActiveByVoter(_ context.Context, voterID id.VoterID, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.filter(func(m *membershipmodels.Membership) bool {
		return m.IsActive() && m.VoterID == voterID && m.TermID == termID
	}), nil
}

func (t *tx) ListActiveByTerm(_ context.Context, termID id.TermID) ([]*membershipmodels.Membership, error) {
	return t.filter(func(m *membershipmodels.Membership) bool {
		return m.IsActive() && m.TermID == termID
	}), nil
}

func (t *tx) ListByMeeting(_ context.Context, meetingID id.MeetingID) ([]*membershipmodels.Membership, error) {
	return t.filter(func(m *membershipmodels.Membership) bool {
		return m.MeetingID != nil && *m.MeetingID == meetingID
	}), nil
}

func (t *tx) filter(keep func(*membershipmodels.Membership) bool) []*membershipmodels.Membership {
	var out []*membershipmodels.Membership
	for _, m := range t.data.memberships {
		if keep(m) {
			out = append(out, m.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *membershipmodels.Membership) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out
}

func (t *tx) CreateMembership(_ context.Context, m *membershipmodels.Membership) error {
	for _, existing := range t.data.memberships {
		if existing.ID == m.ID ||
			(existing.VoterID == m.VoterID && existing.CommitteeID == m.CommitteeID && existing.TermID == m.TermID) {
			return fmt.Errorf("create membership: %w", sentinel.ErrAlreadyUsed)
		}
	}
	if err := t.checkActiveClaims(m); err != nil {
		return err
	}
	t.data.memberships[m.ID] = m.Clone()
	return nil
}

func (t *tx) UpdateMembershipIfStatus(_ context.Context, m *membershipmodels.Membership, expected membershipmodels.Status) (bool, error) {
	stored, ok := t.data.memberships[m.ID]
	if !ok || stored.Status != expected {
		return false, nil
	}
	if err := t.checkActiveClaims(m); err != nil {
		return false, err
	}
	t.data.memberships[m.ID] = m.Clone()
	return true, nil
}

// checkActiveClaims mirrors the partial unique indexes of the relational
// schema: one active row per voter per term, one per seat.
func (t *tx) checkActiveClaims(m *membershipmodels.Membership) error {
	if !m.IsActive() {
		return nil
	}
	for _, other := range t.data.memberships {
		if other.ID == m.ID || !other.IsActive() || other.TermID != m.TermID {
			continue
		}
		if other.VoterID == m.VoterID {
			return fmt.Errorf("voter already active in term: %w", sentinel.ErrConflict)
		}
		if other.CommitteeID == m.CommitteeID && m.SeatNumber != nil && other.SeatNumber != nil && *other.SeatNumber == *m.SeatNumber {
			return fmt.Errorf("seat %d already claimed: %w", *m.SeatNumber, sentinel.ErrConflict)
		}
	}
	return nil
}

func (t *tx) FindFlag(_ context.Context, flagID id.FlagID) (*flagmodels.Flag, error) {
	f, ok := t.data.flags[flagID]
	if !ok {
		return nil, fmt.Errorf("flag %s: %w", flagID, sentinel.ErrNotFound)
	}
	return f.Clone(), nil
}

func (t *tx) ListPendingFlags(_ context.Context, membershipIDs []id.MembershipID) ([]*flagmodels.Flag, error) {
	wanted := make(map[id.MembershipID]bool, len(membershipIDs))
	for _, mid := range membershipIDs {
		wanted[mid] = true
	}
	var out []*flagmodels.Flag
	for _, f := range t.data.flags {
		if f.IsPending() && wanted[f.MembershipID] {
			out = append(out, f.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *flagmodels.Flag) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return out, nil
}

func (t *tx) CreateFlagsSkipDuplicates(_ context.Context, flags []*flagmodels.Flag) (int, error) {
	pending := make(map[flagmodels.Key]bool)
	for _, f := range t.data.flags {
		if f.IsPending() {
			pending[f.Key()] = true
		}
	}
	created := 0
	for _, f := range flags {
		if _, exists := t.data.flags[f.ID]; exists {
			continue
		}
		if f.IsPending() && pending[f.Key()] {
			continue
		}
		t.data.flags[f.ID] = f.Clone()
		if f.IsPending() {
			pending[f.Key()] = true
		}
		created++
	}
	return created, nil
}

func (t *tx) UpdateFlagsIfPending(_ context.Context, flags []*flagmodels.Flag) (int, error) {
	n := 0
	for _, f := range flags {
		stored, ok := t.data.flags[f.ID]
		if !ok || !stored.IsPending() {
			continue
		}
		t.data.flags[f.ID] = f.Clone()
		n++
	}
	return n, nil
}
