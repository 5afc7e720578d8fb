// Package service is the membership state machine: every mutation of a
// membership row goes through here, inside one unit of work, and emits audit
// events once that unit commits.
package service

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
	"lted/internal/membership/metrics"
	"lted/internal/membership/models"
	"lted/internal/storage"
	id "lted/pkg/domain"
	dErrors "lted/pkg/domain-errors"
	"lted/pkg/platform/audit"
	"lted/pkg/requestcontext"
)

// AuditPublisher receives one event per mutating transition.
type AuditPublisher = audit.Publisher

type Service struct {
	store          storage.Store
	validator      *eligibility.Validator
	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithValidator(v *eligibility.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store storage.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("membership store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("lted/internal/membership/service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.validator == nil {
		svc.validator = eligibility.New(eligibility.WithLogger(svc.logger))
	}
	return svc, nil
}

// Get returns one membership.
func (s *Service) Get(ctx context.Context, membershipID id.MembershipID) (*models.Membership, error) {
	var out *models.Membership
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		m, err := tx.FindMembership(ctx, membershipID)
		if err != nil {
			return storage.Translate(err, "membership not found")
		}
		out = m
		return nil
	})
	return out, err
}

// ListMeeting returns the memberships decided at a meeting.
func (s *Service) ListMeeting(ctx context.Context, meetingID id.MeetingID) ([]*models.Membership, error) {
	var out []*models.Membership
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		ms, err := tx.ListByMeeting(ctx, meetingID)
		if err != nil {
			return storage.Translate(err, "failed to list meeting memberships")
		}
		out = ms
		return nil
	})
	return out, err
}

// transition runs fn in a unit of work, flushes its audit batch after commit
// and records the outcome under kind.
func (s *Service) transition(ctx context.Context, kind string, fn func(ctx context.Context, tx storage.Tx, batch *audit.Batch) error) error {
	ctx, span := s.tracer.Start(ctx, "membership."+kind)
	defer span.End()

	var batch audit.Batch
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		batch.Reset()
		return fn(ctx, tx, &batch)
	})
	outcome := OutcomeOf(err)
	s.metrics.IncrementTransition(kind, string(outcome))
	if err != nil {
		span.SetAttributes(attribute.String("outcome", string(outcome)))
		if outcome == models.OutcomeFailed {
			span.SetStatus(codes.Error, err.Error())
			s.logger.ErrorContext(ctx, "membership transition failed",
				"kind", kind,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		return err
	}
	batch.Flush(ctx, s.logger, s.auditPublisher)
	return nil
}

// OutcomeOf classifies an operation error for per-item results and metrics.
func OutcomeOf(err error) models.DecisionOutcome {
	if err == nil {
		return models.OutcomeApplied
	}
	var ie *eligibility.IneligibleError
	if errors.As(err, &ie) {
		return models.OutcomeIneligible
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeIneligible:
		return models.OutcomeIneligible
	case dErrors.CodeConflict:
		return models.OutcomeConflict
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest,
		dErrors.CodeNotFound, dErrors.CodeForbidden, dErrors.CodeUnauthorized:
		return models.OutcomeInvalid
	}
	return models.OutcomeFailed
}

func actorFrom(ctx context.Context) (id.Actor, error) {
	actor, ok := requestcontext.Actor(ctx)
	if !ok {
		return id.Actor{}, dErrors.New(dErrors.CodeUnauthorized, "no acting user")
	}
	return actor, nil
}

func now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC()
}

// persist writes m. New rows are inserted; existing rows are written only while
// their stored status is still prev.
func persist(ctx context.Context, tx storage.Tx, m *models.Membership, prev models.Status, isNew bool) error {
	if isNew {
		if err := tx.CreateMembership(ctx, m); err != nil {
			return storage.Translate(err, "membership changed concurrently")
		}
		return nil
	}
	ok, err := tx.UpdateMembershipIfStatus(ctx, m, prev)
	if err != nil {
		return storage.Translate(err, "membership changed concurrently")
	}
	if !ok {
		return dErrors.New(dErrors.CodeConflict, "membership is no longer "+statusLabel(prev))
	}
	return nil
}

func statusLabel(s models.Status) string {
	if s == models.StatusNone {
		return "new"
	}
	return string(s)
}

func membershipEvent(action audit.Action, before, after *models.Membership, meta map[string]any) audit.Event {
	e := audit.Event{
		Action:     action,
		EntityType: "membership",
		After:      audit.Snapshot(after),
		Metadata:   meta,
	}
	if after != nil {
		e.EntityID = after.ID.String()
	}
	if before != nil && before.Status != models.StatusNone {
		e.Before = audit.Snapshot(before)
	}
	return e
}
