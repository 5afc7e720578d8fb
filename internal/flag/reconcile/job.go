// Package reconcile compares active committee memberships against the latest
// BOE voter import and raises PENDING eligibility flags for human review.
// A run never mutates memberships and never touches resolved flags, so it is
// safe to repeat or to interrupt.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lted/internal/eligibility"
	flagmodels "lted/internal/flag/models"
	govmodels "lted/internal/governance/models"
	govservice "lted/internal/governance/service"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	"lted/internal/storage"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/requestcontext"
)

const (
	outcomeOK      = "ok"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Locker guards against two runs overlapping across processes. Acquire
// reports false when another holder has the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, acquired bool, err error)
}

// Request selects the term to reconcile and records where the data came from.
type Request struct {
	// TermID defaults to the active term.
	TermID         *id.TermID
	SourceReportID *string
}

// Result summarises one run.
type Result struct {
	TermID          id.TermID `json:"termId"`
	Scanned         int       `json:"scanned"`
	NewFlags        int       `json:"newFlags"`
	ExistingPending int       `json:"existingPending"`
	Refreshed       int       `json:"refreshed"`
	DurationMs      int64     `json:"durationMs"`
}

// Job is the BOE reconciliation job.
type Job struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *Metrics
	locker  Locker
	tracer  trace.Tracer

	auditPublisher audit.Publisher
}

type Option func(*Job)

func WithLogger(logger *slog.Logger) Option {
	return func(j *Job) {
		j.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(j *Job) {
		j.metrics = m
	}
}

// WithLocker makes runs exclusive across processes.
func WithLocker(l Locker) Option {
	return func(j *Job) {
		j.locker = l
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(j *Job) {
		j.auditPublisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(j *Job) {
		j.tracer = t
	}
}

func New(store storage.Store, opts ...Option) (*Job, error) {
	if store == nil {
		return nil, errors.New("reconcile store is required")
	}
	j := &Job{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("lted/internal/flag/reconcile"),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.New(slog.DiscardHandler)
	}
	return j, nil
}

// ErrRunInProgress is returned when another process holds the run lock.
var ErrRunInProgress = dErrors.New(dErrors.CodeConflict, "reconciliation is already running")

// Run scans every ACTIVE membership of the term and creates or refreshes
// PENDING flags for each discrepancy found.
func (j *Job) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := j.tracer.Start(ctx, "reconcile.Run")
	defer span.End()

	if j.locker != nil {
		release, ok, err := j.locker.Acquire(ctx)
		if err != nil {
			j.fail(ctx, span, start, err)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire reconciliation lock")
		}
		if !ok {
			j.metrics.observeRun(outcomeSkipped, time.Since(start))
			j.logger.InfoContext(ctx, "reconciliation skipped, another run holds the lock")
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				j.logger.WarnContext(ctx, "failed to release reconciliation lock", "error", err)
			}
		}()
	}

	var res *Result
	err := j.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		res, err = j.reconcile(ctx, tx, req)
		return err
	})
	if err != nil {
		j.fail(ctx, span, start, err)
		return nil, err
	}

	elapsed := time.Since(start)
	res.DurationMs = elapsed.Milliseconds()
	j.metrics.observeRun(outcomeOK, elapsed)
	j.metrics.addCreated(res.NewFlags)
	j.metrics.addRefreshed(res.Refreshed)
	span.SetAttributes(
		attribute.Int("scanned", res.Scanned),
		attribute.Int("new_flags", res.NewFlags),
		attribute.Int("existing_pending", res.ExistingPending),
	)
	j.logger.InfoContext(ctx, "reconciliation completed",
		"term_id", res.TermID.String(),
		"scanned", res.Scanned,
		"new_flags", res.NewFlags,
		"existing_pending", res.ExistingPending,
		"refreshed", res.Refreshed,
		"duration_ms", res.DurationMs,
	)

	var batch audit.Batch
	batch.Add(audit.Event{
		Action:     audit.ActionReconciliationRun,
		EntityType: "term",
		EntityID:   res.TermID.String(),
		After:      audit.Snapshot(res),
		Metadata:   map[string]any{"source_report_id": req.SourceReportID},
	})
	batch.Flush(ctx, j.logger, j.auditPublisher)
	return res, nil
}

func (j *Job) fail(ctx context.Context, span trace.Span, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	j.metrics.observeRun(outcomeFailed, time.Since(start))
	j.logger.ErrorContext(ctx, "reconciliation failed", "error", err)
}

// snapshot is everything a run reads up front.
type snapshot struct {
	config     *govmodels.Config
	latest     *votermodels.ImportVersion
	committees map[id.CommitteeID]*seatmodels.Committee
	voters     map[id.VoterID]*votermodels.Voter
	crosswalks map[govmodels.DistrictKey]*govmodels.Crosswalk
}

func (j *Job) reconcile(ctx context.Context, tx storage.Tx, req Request) (*Result, error) {
	gov, err := govservice.Resolve(ctx, tx, req.TermID)
	if err != nil {
		return nil, err
	}
	res := &Result{TermID: gov.Term.ID}

	active, err := tx.ListActiveByTerm(ctx, gov.Term.ID)
	if err != nil {
		return nil, storage.Translate(err, "failed to load active memberships")
	}
	res.Scanned = len(active)
	if len(active) == 0 {
		return res, nil
	}

	snap, err := load(ctx, tx, gov, active)
	if err != nil {
		return nil, err
	}

	membershipIDs := make([]id.MembershipID, 0, len(active))
	for _, m := range active {
		membershipIDs = append(membershipIDs, m.ID)
	}
	pendingFlags, err := tx.ListPendingFlags(ctx, membershipIDs)
	if err != nil {
		return nil, storage.Translate(err, "failed to load pending flags")
	}
	pending := make(map[flagmodels.Key]*flagmodels.Flag, len(pendingFlags))
	for _, f := range pendingFlags {
		pending[f.Key()] = f
	}

	now := requestcontext.Now(ctx).UTC()
	var toCreate, toUpdate []*flagmodels.Flag
	for _, m := range active {
		for _, d := range snap.detect(m) {
			if existing, ok := pending[flagmodels.Key{MembershipID: m.ID, Reason: d.reason}]; ok {
				res.ExistingPending++
				if existing.Refresh(d.details, req.SourceReportID, now) {
					toUpdate = append(toUpdate, existing)
				}
				continue
			}
			toCreate = append(toCreate, flagmodels.NewPendingFlag(m.ID, d.reason, d.details, req.SourceReportID, now))
		}
	}

	if len(toCreate) > 0 {
		created, err := tx.CreateFlagsSkipDuplicates(ctx, toCreate)
		if err != nil {
			return nil, storage.Translate(err, "failed to create flags")
		}
		res.NewFlags = created
		// A concurrent run inserted the rest first; they are pending all the same.
		res.ExistingPending += len(toCreate) - created
	}
	if len(toUpdate) > 0 {
		updated, err := tx.UpdateFlagsIfPending(ctx, toUpdate)
		if err != nil {
			return nil, storage.Translate(err, "failed to refresh flags")
		}
		res.Refreshed = updated
	}
	return res, nil
}

func load(ctx context.Context, tx storage.Tx, gov *govservice.Governance, active []*membershipmodels.Membership) (*snapshot, error) {
	latest, err := tx.LatestImportVersion(ctx)
	if err != nil {
		return nil, storage.Translate(err, "failed to load latest import version")
	}

	committees, err := tx.ListCommittees(ctx, gov.Term.ID)
	if err != nil {
		return nil, storage.Translate(err, "failed to load committees")
	}
	snap := &snapshot{
		config:     gov.Config,
		latest:     latest,
		committees: make(map[id.CommitteeID]*seatmodels.Committee, len(committees)),
		voters:     make(map[id.VoterID]*votermodels.Voter, len(active)),
		crosswalks: make(map[govmodels.DistrictKey]*govmodels.Crosswalk),
	}
	for _, c := range committees {
		snap.committees[c.ID] = c
	}

	voterIDs := make([]id.VoterID, 0, len(active))
	seenVoter := make(map[id.VoterID]struct{}, len(active))
	var keys []govmodels.DistrictKey
	seenKey := make(map[govmodels.DistrictKey]struct{})
	for _, m := range active {
		if _, ok := seenVoter[m.VoterID]; !ok {
			seenVoter[m.VoterID] = struct{}{}
			voterIDs = append(voterIDs, m.VoterID)
		}
		c, ok := snap.committees[m.CommitteeID]
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "active membership "+m.ID.String()+" references a committee outside its term")
		}
		if _, ok := seenKey[c.Key()]; !ok {
			seenKey[c.Key()] = struct{}{}
			keys = append(keys, c.Key())
		}
	}

	voters, err := tx.ListVoters(ctx, voterIDs)
	if err != nil {
		return nil, storage.Translate(err, "failed to load voters")
	}
	for _, v := range voters {
		snap.voters[v.ID] = v
	}

	crosswalks, err := tx.ListCrosswalks(ctx, keys)
	if err != nil {
		return nil, storage.Translate(err, "failed to load crosswalks")
	}
	for _, cw := range crosswalks {
		snap.crosswalks[cw.Key] = cw
	}
	return snap, nil
}

type detection struct {
	reason  flagmodels.Reason
	details flagmodels.Details
}

// detect derives the flag reasons for one membership. A missing voter record
// short-circuits every other check.
func (s *snapshot) detect(m *membershipmodels.Membership) []detection {
	c := s.committees[m.CommitteeID]
	base := flagmodels.Details{
		CityTown:         c.CityTown,
		LegDistrict:      c.LegDistrict,
		ElectionDistrict: c.ElectionDistrict,
	}

	v, ok := s.voters[m.VoterID]
	if !ok {
		return []detection{{reason: flagmodels.ReasonVoterNotFound, details: base}}
	}

	var out []detection
	if !eligibility.PartyMatches(v.Party, s.config.RequiredPartyCode) {
		d := base
		d.VoterParty = v.Party
		d.RequiredParty = s.config.RequiredPartyCode
		out = append(out, detection{reason: flagmodels.ReasonPartyMismatch, details: d})
	}
	if s.config.RequireAssemblyDistrictMatch {
		cw := s.crosswalks[c.Key()]
		if !eligibility.AssemblyDistrictMatches(v.AssemblyDistrict, cw) {
			d := base
			d.VoterAssemblyDistrict = v.AssemblyDistrict
			if cw != nil {
				d.ExpectedAssemblyDistrict = cw.AssemblyDistrict
			} else {
				d.CrosswalkMissing = true
			}
			out = append(out, detection{reason: flagmodels.ReasonAssemblyDistrictMismatch, details: d})
		}
	}
	if eligibility.IsPossiblyInactive(v.LastImport, s.latest) {
		d := base
		last, latest := *v.LastImport, *s.latest
		d.VoterLastImport = &last
		d.LatestImport = &latest
		out = append(out, detection{reason: flagmodels.ReasonPossiblyInactive, details: d})
	}
	return out
}
