package audit

import (
	"context"
	"log/slog"

	"lted/pkg/requestcontext"
)

// Publisher is the audit collaborator services emit to.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Batch collects the events of one unit of work so they are emitted only after
// it commits.
type Batch struct {
	events []Event
}

func (b *Batch) Add(events ...Event) {
	b.events = append(b.events, events...)
}

func (b *Batch) Len() int { return len(b.events) }

// Reset drops collected events, e.g. before a unit of work is retried.
func (b *Batch) Reset() { b.events = b.events[:0] }

// Flush stamps each event with the acting user and request id from ctx and
// emits it. Failures go to logger at WARN and are otherwise ignored: a lost
// audit record never undoes a committed mutation.
func (b *Batch) Flush(ctx context.Context, logger *slog.Logger, publisher Publisher) {
	defer b.Reset()
	if publisher == nil {
		return
	}
	actor, hasActor := requestcontext.Actor(ctx)
	requestID := requestcontext.RequestID(ctx)
	for _, event := range b.events {
		if hasActor {
			if event.ActorID == "" && !actor.ID.IsNil() {
				event.ActorID = actor.ID.String()
			}
			if event.ActorRole == "" {
				event.ActorRole = string(actor.Role)
			}
		}
		if event.RequestID == "" {
			event.RequestID = requestID
		}
		if err := publisher.Emit(ctx, event); err != nil && logger != nil {
			logger.WarnContext(ctx, "audit emit failed",
				"action", event.Action,
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"request_id", requestID,
				"error", err,
			)
		}
	}
}
