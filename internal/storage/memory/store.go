// Package memory is an in-process storage.Store for tests and single-node dev
// runs. A unit of work holds one store-wide lock and is rolled back from a
// snapshot when fn fails.
package memory

import (
	"context"
	"sync"
	"time"

	flagmodels "lted/internal/flag/models"
	govmodels "lted/internal/governance/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
)

const defaultTxTimeout = 5 * time.Second

type seatKey struct {
	committeeID id.CommitteeID
	termID      id.TermID
	seatNumber  int
}

type state struct {
	config       *govmodels.Config
	terms        map[id.TermID]*govmodels.Term
	crosswalks   map[govmodels.DistrictKey]*govmodels.Crosswalk
	voters       map[id.VoterID]*votermodels.Voter
	latestImport *votermodels.ImportVersion
	committees   map[id.CommitteeID]*seatmodels.Committee
	seats        map[seatKey]*seatmodels.Seat
	memberships  map[id.MembershipID]*membershipmodels.Membership
	flags        map[id.FlagID]*flagmodels.Flag
}

func newState() *state {
	return &state{
		terms:       make(map[id.TermID]*govmodels.Term),
		crosswalks:  make(map[govmodels.DistrictKey]*govmodels.Crosswalk),
		voters:      make(map[id.VoterID]*votermodels.Voter),
		committees:  make(map[id.CommitteeID]*seatmodels.Committee),
		seats:       make(map[seatKey]*seatmodels.Seat),
		memberships: make(map[id.MembershipID]*membershipmodels.Membership),
		flags:       make(map[id.FlagID]*flagmodels.Flag),
	}
}

func (s *state) clone() *state {
	c := newState()
	if s.config != nil {
		c.config = cloneConfig(s.config)
	}
	if s.latestImport != nil {
		v := *s.latestImport
		c.latestImport = &v
	}
	for k, v := range s.terms {
		t := *v
		c.terms[k] = &t
	}
	for k, v := range s.crosswalks {
		cw := *v
		c.crosswalks[k] = &cw
	}
	for k, v := range s.voters {
		c.voters[k] = cloneVoter(v)
	}
	for k, v := range s.committees {
		cm := *v
		c.committees[k] = &cm
	}
	for k, v := range s.seats {
		st := *v
		c.seats[k] = &st
	}
	for k, v := range s.memberships {
		c.memberships[k] = v.Clone()
	}
	for k, v := range s.flags {
		c.flags[k] = v.Clone()
	}
	return c
}

// Store is the in-memory storage.Store. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	data    *state
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds each unit of work when the caller's context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(opts ...Option) *Store {
	s := &Store{data: newState(), timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx serializes units of work on a store-wide lock. Committee row locks
// are therefore implied and LockCommittee only checks existence.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	snapshot := s.data.clone()
	if err := fn(ctx, &tx{data: s.data}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Reset drops every row.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = newState()
}

var (
	_ storage.Store  = (*Store)(nil)
	_ storage.Seeder = (*Store)(nil)
	_ storage.Tx     = (*tx)(nil)
)
