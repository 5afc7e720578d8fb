package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	flagmodels "lted/internal/flag/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	"lted/internal/storage/memory"
	"lted/internal/storage/storagetest"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/requestcontext"
)

type ReconcileJobSuite struct {
	suite.Suite
	store     *memory.Store
	fx        *storagetest.Fixture
	committee *seatmodels.Committee
	metrics   *Metrics
	job       *Job
	members   map[string]*membershipmodels.Membership
	voters    map[string]*votermodels.Voter
}

func TestReconcileJobSuite(t *testing.T) {
	suite.Run(t, new(ReconcileJobSuite))
}

func (s *ReconcileJobSuite) SetupTest() {
	s.store = memory.New()
	cfg := storagetest.DefaultConfig()
	cfg.RequireAssemblyDistrictMatch = true
	cfg.MaxSeatsPerLTED = 5
	s.fx = storagetest.Seed(s.T(), s.store, cfg)
	s.committee = s.fx.Committee("Springfield", "7", 3, "")
	s.fx.Crosswalk(s.committee, "21")
	s.fx.LatestImport(2025, 2)

	current := &votermodels.ImportVersion{Year: 2025, Sequence: 2}
	s.voters = map[string]*votermodels.Voter{
		"ok":    s.fx.Voter("DEM", "21", current),
		"rep":   s.fx.Voter("REP", "21", current),
		"moved": s.fx.Voter("DEM", "33", current),
		"stale": s.fx.Voter("DEM", "21", &votermodels.ImportVersion{Year: 2024, Sequence: 9}),
	}
	s.members = map[string]*membershipmodels.Membership{}
	for i, name := range []string{"ok", "rep", "moved", "stale"} {
		s.members[name] = storagetest.Active(s.T(), s.store, s.voters[name].ID, s.committee, i+1)
	}
	s.members["ghost"] = storagetest.Active(s.T(), s.store, id.VoterID(uuid.New()), s.committee, 5)

	s.metrics = NewMetrics(prometheus.NewRegistry())
	job, err := New(s.store, WithMetrics(s.metrics))
	s.Require().NoError(err)
	s.job = job
}

func (s *ReconcileJobSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *ReconcileJobSuite) pendingFlags() map[flagmodels.Key]*flagmodels.Flag {
	out := map[flagmodels.Key]*flagmodels.Flag{}
	ids := make([]id.MembershipID, 0, len(s.members))
	for _, m := range s.members {
		ids = append(ids, m.ID)
	}
	s.Require().NoError(s.store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		flags, err := tx.ListPendingFlags(ctx, ids)
		for _, f := range flags {
			out[f.Key()] = f
		}
		return err
	}))
	return out
}

func (s *ReconcileJobSuite) key(name string, reason flagmodels.Reason) flagmodels.Key {
	return flagmodels.Key{MembershipID: s.members[name].ID, Reason: reason}
}

func (s *ReconcileJobSuite) TestRaisesOneFlagPerDiscrepancy() {
	src := "boe-2025-02"
	res, err := s.job.Run(s.at(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &src})
	s.Require().NoError(err)

	s.Equal(s.fx.Term.ID, res.TermID)
	s.Equal(5, res.Scanned)
	s.Equal(4, res.NewFlags)
	s.Equal(0, res.ExistingPending)

	flags := s.pendingFlags()
	s.Len(flags, 4)

	party := flags[s.key("rep", flagmodels.ReasonPartyMismatch)]
	s.Require().NotNil(party)
	s.Equal("REP", party.Details.VoterParty)
	s.Equal("DEM", party.Details.RequiredParty)
	s.Equal("Springfield", party.Details.CityTown)
	s.Equal(src, *party.SourceReportID)

	ad := flags[s.key("moved", flagmodels.ReasonAssemblyDistrictMismatch)]
	s.Require().NotNil(ad)
	s.Equal("33", ad.Details.VoterAssemblyDistrict)
	s.Equal("21", ad.Details.ExpectedAssemblyDistrict)

	inactive := flags[s.key("stale", flagmodels.ReasonPossiblyInactive)]
	s.Require().NotNil(inactive)
	s.Equal(votermodels.ImportVersion{Year: 2024, Sequence: 9}, *inactive.Details.VoterLastImport)
	s.Equal(votermodels.ImportVersion{Year: 2025, Sequence: 2}, *inactive.Details.LatestImport)

	s.Contains(flags, s.key("ghost", flagmodels.ReasonVoterNotFound))
	s.Equal(float64(4), testutil.ToFloat64(s.metrics.FlagsCreated))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Runs.WithLabelValues(outcomeOK)))
}

func (s *ReconcileJobSuite) TestRerunIsIdempotentAndWritesNothing() {
	src := "boe-2025-02"
	first, err := s.job.Run(s.at(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &src})
	s.Require().NoError(err)
	before := s.pendingFlags()

	second, err := s.job.Run(s.at(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &src})
	s.Require().NoError(err)

	s.Equal(0, second.NewFlags)
	s.Equal(first.NewFlags, second.ExistingPending)
	s.Equal(0, second.Refreshed)
	after := s.pendingFlags()
	for k, f := range before {
		s.Equal(f.UpdatedAt, after[k].UpdatedAt, "flag %v was rewritten", k)
	}
}

func (s *ReconcileJobSuite) TestRefreshesChangedDetailsAndProvenance() {
	first := "boe-2025-02"
	_, err := s.job.Run(s.at(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &first})
	s.Require().NoError(err)

	s.Run("only changed details are rewritten", func() {
		rep := s.voters["rep"]
		rep.Party = "GRN"
		s.fx.SaveVoter(rep)

		later := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
		res, err := s.job.Run(s.at(later), Request{SourceReportID: &first})
		s.Require().NoError(err)
		s.Equal(1, res.Refreshed)

		flag := s.pendingFlags()[s.key("rep", flagmodels.ReasonPartyMismatch)]
		s.Equal("GRN", flag.Details.VoterParty)
		s.Equal(later, flag.UpdatedAt)
	})

	s.Run("a new source report refreshes every pending flag", func() {
		next := "boe-2025-03"
		res, err := s.job.Run(s.at(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &next})
		s.Require().NoError(err)
		s.Equal(4, res.Refreshed)
		for _, f := range s.pendingFlags() {
			s.Equal(next, *f.SourceReportID)
		}
	})
}

func (s *ReconcileJobSuite) TestUnsourcedRunKeepsProvenance() {
	src := "boe-2025-02"
	first, err := s.job.Run(s.at(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Request{SourceReportID: &src})
	s.Require().NoError(err)
	s.Require().Equal(4, first.NewFlags)

	res, err := s.job.Run(s.at(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)), Request{})
	s.Require().NoError(err)
	s.Equal(0, res.Refreshed)
	s.Equal(0, res.NewFlags)
	s.Equal(4, res.ExistingPending)
	for _, f := range s.pendingFlags() {
		s.Require().NotNil(f.SourceReportID)
		s.Equal(src, *f.SourceReportID)
		s.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), f.UpdatedAt)
	}
}

func (s *ReconcileJobSuite) TestResolvedFlagsAreLeftAlone() {
	_, err := s.job.Run(s.at(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)), Request{})
	s.Require().NoError(err)

	dismissed := s.pendingFlags()[s.key("rep", flagmodels.ReasonPartyMismatch)]
	reviewedAt := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	dismissed.Resolve(flagmodels.DecisionDismiss, "re-enrolled", id.ActorID(uuid.New()), reviewedAt)
	s.Require().NoError(s.store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.UpdateFlagsIfPending(ctx, []*flagmodels.Flag{dismissed})
		return err
	}))

	res, err := s.job.Run(s.at(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)), Request{})
	s.Require().NoError(err)
	s.Equal(1, res.NewFlags, "the discrepancy persists, so it is raised again as a new pending flag")
	s.Equal(3, res.ExistingPending)

	var stored *flagmodels.Flag
	s.Require().NoError(s.store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		stored, err = tx.FindFlag(ctx, dismissed.ID)
		return err
	}))
	s.Equal(flagmodels.StatusDismissed, stored.Status)
	s.Equal(reviewedAt, stored.UpdatedAt)
}

func (s *ReconcileJobSuite) TestNeverMutatesMemberships() {
	_, err := s.job.Run(context.Background(), Request{})
	s.Require().NoError(err)
	for _, m := range s.members {
		s.Equal(membershipmodels.StatusActive, storagetest.Load(s.T(), s.store, m.ID).Status)
	}
}

func (s *ReconcileJobSuite) TestAssemblyDistrictCheckIsOptional() {
	s.fx.Config.RequireAssemblyDistrictMatch = false
	s.Require().NoError(s.store.SaveGovernanceConfig(context.Background(), s.fx.Config))

	res, err := s.job.Run(context.Background(), Request{})
	s.Require().NoError(err)
	s.Equal(3, res.NewFlags)
	s.NotContains(s.pendingFlags(), s.key("moved", flagmodels.ReasonAssemblyDistrictMismatch))
}

func (s *ReconcileJobSuite) TestMissingCrosswalkIsAMismatch() {
	other := s.fx.Committee("Shelbyville", "2", 1, "")
	voter := s.fx.Voter("DEM", "21", &votermodels.ImportVersion{Year: 2025, Sequence: 2})
	s.members["uncharted"] = storagetest.Active(s.T(), s.store, voter.ID, other, 1)

	_, err := s.job.Run(context.Background(), Request{})
	s.Require().NoError(err)

	flag := s.pendingFlags()[s.key("uncharted", flagmodels.ReasonAssemblyDistrictMismatch)]
	s.Require().NotNil(flag)
	s.True(flag.Details.CrosswalkMissing)
}

func (s *ReconcileJobSuite) TestLock() {
	s.Run("held lock skips the run", func() {
		job, err := New(s.store, WithMetrics(s.metrics), WithLocker(&stubLocker{held: true}))
		s.Require().NoError(err)
		_, err = job.Run(context.Background(), Request{})
		s.ErrorIs(err, ErrRunInProgress)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Empty(s.pendingFlags())
	})

	s.Run("lock is released after a run", func() {
		locker := &stubLocker{}
		job, err := New(s.store, WithLocker(locker))
		s.Require().NoError(err)
		_, err = job.Run(context.Background(), Request{})
		s.Require().NoError(err)
		s.Equal(1, locker.released)
	})

	s.Run("lock failure fails the run", func() {
		job, err := New(s.store, WithLocker(&stubLocker{err: errors.New("redis down")}))
		s.Require().NoError(err)
		_, err = job.Run(context.Background(), Request{})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

type stubLocker struct {
	held     bool
	err      error
	released int
}

func (l *stubLocker) Acquire(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, true, nil
}
