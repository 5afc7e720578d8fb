package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	govservice "lted/internal/governance/service"
	"lted/internal/membership/models"
	seatservice "lted/internal/seat/service"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
)

// PetitionRequest is the primary result for one seat.
type PetitionRequest struct {
	CommitteeID id.CommitteeID
	SeatNumber  int
	PrimaryDate *time.Time
	Candidates  []models.PetitionCandidate
}

// PetitionResult lists the membership written for each candidate, in request order.
type PetitionResult struct {
	CommitteeID id.CommitteeID       `json:"committeeId"`
	SeatNumber  int                  `json:"seatNumber"`
	Memberships []*models.Membership `json:"memberships"`
}

func (r PetitionRequest) validate() error {
	if len(r.Candidates) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one candidate is required")
	}
	winners := 0
	seen := make(map[id.VoterID]bool, len(r.Candidates))
	for _, c := range r.Candidates {
		if seen[c.VoterID] {
			return dErrors.New(dErrors.CodeValidation, "candidate "+c.VoterID.String()+" is listed twice")
		}
		seen[c.VoterID] = true
		event, ok := c.Outcome.Event()
		if !ok {
			return dErrors.New(dErrors.CodeValidation, "unknown petition outcome "+string(c.Outcome))
		}
		if event == models.EventPetitionWon {
			winners++
		}
		if c.VoteCount != nil && *c.VoteCount < 0 {
			return dErrors.New(dErrors.CodeValidation, "voteCount must not be negative")
		}
	}
	if winners > 1 {
		return dErrors.New(dErrors.CodeValidation, "at most one candidate may win a seat")
	}
	return nil
}

// RecordPetitionOutcome writes one PETITIONED membership per candidate for a
// seat and marks the seat petitioned. The seat must not be held by an active
// member missing from the candidate list, and a winner may not hold a seat on
// another committee.
func (s *Service) RecordPetitionOutcome(ctx context.Context, req PetitionRequest) (*PetitionResult, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "membership.RecordPetitionOutcome", trace.WithAttributes(
		attribute.String("committee_id", req.CommitteeID.String()),
		attribute.Int("seat_number", req.SeatNumber),
		attribute.Int("candidates", len(req.Candidates)),
	))
	defer span.End()

	var out *PetitionResult
	err = s.transition(ctx, "petition", func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error {
		cfg, err := govservice.LoadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if req.SeatNumber < 1 || req.SeatNumber > cfg.MaxSeatsPerLTED {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("seatNumber must be between 1 and %d", cfg.MaxSeatsPerLTED))
		}
		committee, err := tx.LockCommittee(ctx, req.CommitteeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}
		term := committee.TermID
		if _, err := seatservice.EnsureSeatsExist(ctx, tx, committee, cfg.MaxSeatsPerLTED); err != nil {
			return err
		}

		active, err := tx.ListActiveByCommittee(ctx, committee.ID, term)
		if err != nil {
			return storage.Translate(err, "failed to load active memberships")
		}
		for _, m := range active {
			if m.SeatNumber == nil || *m.SeatNumber != req.SeatNumber {
				continue
			}
			named := slices.ContainsFunc(req.Candidates, func(c models.PetitionCandidate) bool { return c.VoterID == m.VoterID })
			if !named {
				return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("seat %d is held by an active member who is not a candidate", req.SeatNumber))
			}
		}

		// Losers first, so an incumbent who lost frees the seat before the winner claims it.
		ordered := slices.Clone(req.Candidates)
		slices.SortStableFunc(ordered, func(a, b models.PetitionCandidate) int {
			return boolRank(isWinner(a)) - boolRank(isWinner(b))
		})

		at := now(ctx)
		written := make(map[id.VoterID]*models.Membership, len(ordered))
		for _, c := range ordered {
			if isWinner(c) {
				held, err := tx.ListActiveByVoter(ctx, c.VoterID, term)
				if err != nil {
					return storage.Translate(err, "failed to load candidate memberships")
				}
				for _, h := range held {
					if h.CommitteeID != committee.ID {
						return dErrors.New(dErrors.CodeConflict, "winning candidate "+c.VoterID.String()+" is active on another committee")
					}
				}
			}
			m, isNew, err := findOrNew(ctx, tx, c.VoterID, committee)
			if err != nil {
				return err
			}
			before := m.Clone()
			if isNew {
				m.SubmittedBy = actor.ID
			}
			if err := m.ApplyPetition(at, models.PetitionResult{
				Outcome:     c.Outcome,
				SeatNumber:  req.SeatNumber,
				VoteCount:   c.VoteCount,
				PrimaryDate: req.PrimaryDate,
			}); err != nil {
				return err
			}
			if err := persist(ctx, tx, m, before.Status, isNew); err != nil {
				return err
			}
			batch.Add(membershipEvent(audit.ActionPetitionRecorded, before, m, map[string]any{
				"outcome":     c.Outcome,
				"seat_number": req.SeatNumber,
			}))
			written[c.VoterID] = m
		}

		if err := tx.MarkSeatPetitioned(ctx, committee.ID, term, req.SeatNumber); err != nil {
			return storage.Translate(err, "failed to mark seat petitioned")
		}

		out = &PetitionResult{CommitteeID: committee.ID, SeatNumber: req.SeatNumber}
		for _, c := range req.Candidates {
			out.Memberships = append(out.Memberships, written[c.VoterID])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isWinner(c models.PetitionCandidate) bool {
	e, _ := c.Outcome.Event()
	return e == models.EventPetitionWon
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
