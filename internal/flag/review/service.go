// Package review resolves pending eligibility flags. Confirming a flag removes
// the member in the same unit of work; dismissing only closes the flag.
package review

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	flagmodels "lted/internal/flag/models"
	membershipmodels "lted/internal/membership/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/requestcontext"
)

// Remover performs the ACTIVE -> REMOVED transition inside an open unit of
// work. The membership service implements it.
type Remover interface {
	RemoveInTx(ctx context.Context, tx storage.Tx, batch *audit.Batch, membershipID id.MembershipID,
		reason membershipmodels.RemovalReason, notes string, meta map[string]any) (*membershipmodels.Membership, error)
}

// Result is the resolved flag and, for confirmations, the removed membership.
type Result struct {
	Flag       *flagmodels.Flag             `json:"flag"`
	Membership *membershipmodels.Membership `json:"membership,omitempty"`
}

type Service struct {
	store          storage.Store
	remover        Remover
	auditPublisher audit.Publisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func New(store storage.Store, remover Remover, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("review store is required")
	}
	if remover == nil {
		return nil, errors.New("membership remover is required")
	}
	s := &Service{
		store:   store,
		remover: remover,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Review applies a human decision to a PENDING flag. The caller needs
// jurisdiction over the flagged membership's committee.
func (s *Service) Review(ctx context.Context, flagID id.FlagID, decision flagmodels.ReviewDecision, notes string) (*Result, error) {
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no acting user")
	}
	if !decision.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be confirm or dismiss")
	}
	notes = strings.TrimSpace(notes)

	var (
		out   *Result
		batch audit.Batch
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		batch.Reset()
		flag, err := tx.FindFlag(ctx, flagID)
		if err != nil {
			return storage.Translate(err, "flag not found")
		}
		if !flag.IsPending() {
			return dErrors.New(dErrors.CodeConflict, "flag is no longer PENDING")
		}
		m, err := tx.FindMembership(ctx, flag.MembershipID)
		if err != nil {
			return storage.Translate(err, "flagged membership not found")
		}
		committee, err := tx.FindCommittee(ctx, m.CommitteeID)
		if err != nil {
			return storage.Translate(err, "committee not found")
		}
		if !actor.CanManage(committee.CityTown, committee.LegDistrict) {
			return dErrors.New(dErrors.CodeForbidden, "no jurisdiction over this committee")
		}

		out = &Result{}
		if decision == flagmodels.DecisionConfirm {
			reason, note := flag.Reason.Removal()
			if notes != "" {
				note = notes
			}
			removed, err := s.remover.RemoveInTx(ctx, tx, &batch, m.ID, reason, note, map[string]any{
				"flag_id":     flag.ID.String(),
				"flag_reason": flag.Reason,
			})
			if err != nil {
				return err
			}
			out.Membership = removed
		}

		before := flag.Clone()
		flag.Resolve(decision, notes, actor.ID, requestcontext.Now(ctx).UTC())
		n, err := tx.UpdateFlagsIfPending(ctx, []*flagmodels.Flag{flag})
		if err != nil {
			return storage.Translate(err, "failed to resolve flag")
		}
		if n == 0 {
			return dErrors.New(dErrors.CodeConflict, "flag is no longer PENDING")
		}
		batch.Add(audit.Event{
			Action:     audit.ActionDiscrepancyResolved,
			EntityType: "eligibility_flag",
			EntityID:   flag.ID.String(),
			Before:     audit.Snapshot(before),
			After:      audit.Snapshot(flag),
			Metadata: map[string]any{
				"decision":      decision,
				"reason":        flag.Reason,
				"membership_id": flag.MembershipID.String(),
			},
		})
		out.Flag = flag
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Flush(ctx, s.logger, s.auditPublisher)
	s.logger.InfoContext(ctx, "eligibility flag reviewed",
		"flag_id", flagID.String(),
		"decision", string(decision),
		"membership_id", out.Flag.MembershipID.String(),
	)
	return out, nil
}
