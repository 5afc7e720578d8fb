// Package eligibility decides whether a voter may hold a seat on a committee.
// The predicates here are shared with the reconciliation job so admission and
// audit never disagree.
package eligibility

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	govmodels "lted/internal/governance/models"
	membershipmodels "lted/internal/membership/models"
	seatmodels "lted/internal/seat/models"
	votermodels "lted/internal/voter/models"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/sentinel"
)

// WarningPossiblyInactive is reported, never enforced, when the voter is
// missing from the most recent roll import.
const WarningPossiblyInactive = "POSSIBLY_INACTIVE"

// Reader is the read surface the validator needs inside a unit of work.
type Reader interface {
	FindVoter(ctx context.Context, voterID id.VoterID) (*votermodels.Voter, error)
	LatestImportVersion(ctx context.Context) (*votermodels.ImportVersion, error)
	FindCommittee(ctx context.Context, committeeID id.CommitteeID) (*seatmodels.Committee, error)
	FindCrosswalk(ctx context.Context, key govmodels.DistrictKey) (*govmodels.Crosswalk, error)
	CountActive(ctx context.Context, committeeID id.CommitteeID, termID id.TermID) (int, error)
	ListActiveByVoter(ctx context.Context, voterID id.VoterID, termID id.TermID) ([]*membershipmodels.Membership, error)
}

// Input names the voter, committee and term under evaluation.
type Input struct {
	VoterID     id.VoterID
	CommitteeID id.CommitteeID
	TermID      id.TermID
}

// Options carries the override request and activation-time adjustments.
type Options struct {
	ForceAdd       bool
	OverrideReason string
	// Activation marks a check made while assigning a seat. Capacity is then
	// left to the caller, which holds the committee lock, and
	// ALREADY_IN_ANOTHER_COMMITTEE can no longer be overridden.
	Activation bool
	// FreedSeats is subtracted from the active count, for a submission that
	// names an incumbent to replace.
	FreedSeats int
}

// Result is the outcome of one eligibility evaluation.
type Result struct {
	Eligible        bool               `json:"eligible"`
	HardStops       []govmodels.Reason `json:"hardStops"`
	Warnings        []string           `json:"warnings,omitempty"`
	BypassedReasons []govmodels.Reason `json:"bypassedReasons,omitempty"`
	ValidationError string             `json:"validationError,omitempty"`
}

// Err converts the result into the error a mutating caller should return:
// a validation error, an *IneligibleError, or nil when eligible.
func (r *Result) Err() error {
	if r.ValidationError != "" {
		return dErrors.New(dErrors.CodeValidation, r.ValidationError)
	}
	if !r.Eligible {
		return &IneligibleError{HardStops: r.HardStops}
	}
	return nil
}

func (r *Result) Has(reason govmodels.Reason) bool {
	return slices.Contains(r.HardStops, reason)
}

// Validator evaluates eligibility against a governance config.
type Validator struct {
	logger *slog.Logger
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the checks in order. Only a missing voter short-circuits;
// every other failing check is appended to HardStops.
func (v *Validator) Validate(ctx context.Context, r Reader, cfg *govmodels.Config, in Input, opts Options) (*Result, error) {
	res := &Result{HardStops: []govmodels.Reason{}}

	voter, err := r.FindVoter(ctx, in.VoterID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter")
		}
		res.HardStops = append(res.HardStops, govmodels.ReasonNotRegistered)
		v.applyOverride(cfg, res, opts)
		return res, nil
	}

	committee, err := r.FindCommittee(ctx, in.CommitteeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "committee not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load committee")
	}

	if !PartyMatches(voter.Party, cfg.RequiredPartyCode) {
		res.HardStops = append(res.HardStops, govmodels.ReasonPartyMismatch)
	}

	if cfg.RequireAssemblyDistrictMatch {
		cw, err := r.FindCrosswalk(ctx, committee.Key())
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load crosswalk")
		}
		if !AssemblyDistrictMatches(voter.AssemblyDistrict, cw) {
			res.HardStops = append(res.HardStops, govmodels.ReasonAssemblyDistrictMismatch)
		}
	}

	if !opts.Activation {
		active, err := r.CountActive(ctx, in.CommitteeID, in.TermID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count active memberships")
		}
		if active-opts.FreedSeats >= cfg.MaxSeatsPerLTED {
			res.HardStops = append(res.HardStops, govmodels.ReasonCapacity)
		}
	}

	held, err := r.ListActiveByVoter(ctx, in.VoterID, in.TermID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load voter memberships")
	}
	for _, m := range held {
		if m.CommitteeID != in.CommitteeID {
			res.HardStops = append(res.HardStops, govmodels.ReasonAlreadyInAnotherCommittee)
			break
		}
	}

	latest, err := r.LatestImportVersion(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load import version")
	}
	if IsPossiblyInactive(voter.LastImport, latest) {
		res.Warnings = append(res.Warnings, WarningPossiblyInactive)
	}

	v.applyOverride(cfg, res, opts)
	if len(res.BypassedReasons) > 0 {
		v.logger.InfoContext(ctx, "eligibility override applied",
			"voter_id", in.VoterID.String(),
			"committee_id", in.CommitteeID.String(),
			"bypassed", res.BypassedReasons,
		)
	}
	return res, nil
}

func (v *Validator) applyOverride(cfg *govmodels.Config, res *Result, opts Options) {
	if len(res.HardStops) == 0 {
		res.Eligible = true
		return
	}
	if !opts.ForceAdd {
		return
	}
	for _, reason := range res.HardStops {
		if !cfg.IsOverridable(reason) {
			return
		}
		if opts.Activation && reason == govmodels.ReasonAlreadyInAnotherCommittee {
			return
		}
	}
	if strings.TrimSpace(opts.OverrideReason) == "" {
		res.ValidationError = "overrideReason is required when forceAdd bypasses eligibility checks"
		return
	}
	res.Eligible = true
	res.BypassedReasons = slices.Clone(res.HardStops)
}
