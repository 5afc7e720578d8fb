package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	govmodels "lted/internal/governance/models"
	govservice "lted/internal/governance/service"
	"lted/internal/seat/models"
	"lted/internal/seat/weight"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/requestcontext"
)

// Service runs seat and designation-weight operations in their own units of work.
type Service struct {
	store          storage.Store
	logger         *slog.Logger
	auditPublisher audit.Publisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store storage.Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CommitteeWeight is one committee's designation weight.
type CommitteeWeight struct {
	CommitteeID id.CommitteeID        `json:"committeeId"`
	Key         govmodels.DistrictKey `json:"district"`
	LTEDWeight  decimal.NullDecimal   `json:"ltedWeight"`
	*weight.Result
}

// CountyWeight sums designation weight over every committee of a term.
type CountyWeight struct {
	TermID            id.TermID          `json:"termId"`
	Total             decimal.Decimal    `json:"totalWeight"`
	ContributingSeats int                `json:"contributingSeats"`
	Committees        []*CommitteeWeight `json:"committees"`
	// MissingWeight lists committees with petitioned seats lacking a weight.
	MissingWeight []id.CommitteeID `json:"missingWeightCommittees"`
}

// SetCommitteeWeight stores a committee's LTED weight and recomputes its seat
// weights in the same unit of work.
func (s *Service) SetCommitteeWeight(ctx context.Context, committeeID id.CommitteeID, ltedWeight decimal.NullDecimal) (*models.Committee, error) {
	actor, ok := requestcontext.Actor(ctx)
	if !ok || !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may change committee weights")
	}
	if ltedWeight.Valid && ltedWeight.Decimal.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "ltedWeight must not be negative")
	}

	var (
		batch   audit.Batch
		updated *models.Committee
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		batch.Reset()
		cfg, err := govservice.LoadConfig(ctx, tx)
		if err != nil {
			return err
		}
		committee, err := tx.LockCommittee(ctx, committeeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		before := *committee
		if err := tx.UpdateCommitteeWeight(ctx, committeeID, ltedWeight); err != nil {
			return storage.Translate(err, "failed to update committee weight")
		}
		committee.LTEDWeight = ltedWeight
		seatWeight, err := RecomputeSeatWeights(ctx, tx, committee, cfg.MaxSeatsPerLTED)
		if err != nil {
			return err
		}
		batch.Add(audit.Event{
			Action:     audit.ActionSeatWeightsRecomputed,
			EntityType: "committee",
			EntityID:   committeeID.String(),
			Before:     audit.Snapshot(before),
			After:      audit.Snapshot(committee),
			Metadata: map[string]any{
				"max_seats":   cfg.MaxSeatsPerLTED,
				"seat_weight": seatWeight,
			},
		})
		updated = committee
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx, s.logger, s.auditPublisher)
	s.logger.InfoContext(ctx, "committee weight updated",
		"committee_id", committeeID.String(),
		"lted_weight", ltedWeight,
	)
	return updated, nil
}

// CommitteeDesignationWeight computes one committee's contribution.
func (s *Service) CommitteeDesignationWeight(ctx context.Context, committeeID id.CommitteeID) (*CommitteeWeight, error) {
	var out *CommitteeWeight
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		committee, err := tx.FindCommittee(ctx, committeeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		out, err = committeeWeight(ctx, tx, committee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CountyDesignationWeight sums every committee of the term. A nil termID
// selects the active term. Any seat integrity violation fails the whole sum.
func (s *Service) CountyDesignationWeight(ctx context.Context, termID *id.TermID) (*CountyWeight, error) {
	var out *CountyWeight
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		term, err := govservice.LoadTerm(ctx, tx, termID)
		if err != nil {
			return err
		}
		committees, err := tx.ListCommittees(ctx, term.ID)
		if err != nil {
			return storage.Translate(err, "failed to list committees")
		}
		county := &CountyWeight{
			TermID:        term.ID,
			Total:         decimal.Zero,
			Committees:    make([]*CommitteeWeight, 0, len(committees)),
			MissingWeight: []id.CommitteeID{},
		}
		for _, c := range committees {
			cw, err := committeeWeight(ctx, tx, c)
			if err != nil {
				return err
			}
			county.Total = county.Total.Add(cw.Total)
			county.ContributingSeats += cw.ContributingSeats
			if len(cw.MissingWeightSeats) > 0 {
				county.MissingWeight = append(county.MissingWeight, c.ID)
			}
			county.Committees = append(county.Committees, cw)
		}
		out = county
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out.MissingWeight) > 0 {
		s.logger.WarnContext(ctx, "committees with petitioned seats lack a weight",
			"term_id", out.TermID.String(),
			"committees", len(out.MissingWeight),
		)
	}
	return out, nil
}

func committeeWeight(ctx context.Context, tx storage.Tx, committee *models.Committee) (*CommitteeWeight, error) {
	seats, err := tx.ListSeats(ctx, committee.ID, committee.TermID)
	if err != nil {
		return nil, storage.Translate(err, "failed to list seats")
	}
	active, err := tx.ListActiveByCommittee(ctx, committee.ID, committee.TermID)
	if err != nil {
		return nil, storage.Translate(err, "failed to list active memberships")
	}
	res, err := weight.Compute(seats, active)
	if err != nil {
		return nil, err
	}
	return &CommitteeWeight{
		CommitteeID: committee.ID,
		Key:         committee.Key(),
		LTEDWeight:  committee.LTEDWeight,
		Result:      res,
	}, nil
}
