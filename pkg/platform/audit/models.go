package audit

import (
	"context"
	"encoding/json"
	"time"
)

// EventCategory classifies audit events for retention and routing.
type EventCategory string

const (
	// CategoryGovernance covers membership and seat changes with legal weight
	// for party designation (activations, removals, petition outcomes).
	CategoryGovernance EventCategory = "governance"
	// CategoryReview covers human decisions on eligibility discrepancies.
	CategoryReview EventCategory = "review"
	// CategoryOperations covers routine activity that only aids debugging.
	CategoryOperations EventCategory = "operations"
)

// Action names the mutation an event records.
type Action string

const (
	ActionMembershipSubmitted   Action = "membership_submitted"
	ActionMembershipActivated   Action = "membership_activated"
	ActionMembershipRejected    Action = "membership_rejected"
	ActionMembershipRemoved     Action = "membership_removed"
	ActionMembershipResigned    Action = "membership_resigned"
	ActionMembershipReplaced    Action = "membership_replaced"
	ActionPetitionRecorded      Action = "petition_outcome_recorded"
	ActionSeatWeightsRecomputed Action = "seat_weights_recomputed"
	ActionDiscrepancyResolved   Action = "discrepancy_resolved"
	ActionReconciliationRun     Action = "reconciliation_run"
)

var actionCategories = map[Action]EventCategory{
	ActionMembershipSubmitted:   CategoryGovernance,
	ActionMembershipActivated:   CategoryGovernance,
	ActionMembershipRejected:    CategoryGovernance,
	ActionMembershipRemoved:     CategoryGovernance,
	ActionMembershipResigned:    CategoryGovernance,
	ActionMembershipReplaced:    CategoryGovernance,
	ActionPetitionRecorded:      CategoryGovernance,
	ActionSeatWeightsRecomputed: CategoryGovernance,
	ActionDiscrepancyResolved:   CategoryReview,
	ActionReconciliationRun:     CategoryOperations,
}

// Category returns the category for the action. Unknown actions are operational.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is one before/after record of a mutating transition. Snapshots are
// marshalled JSON so sinks never see live domain pointers.
type Event struct {
	Category   EventCategory
	Timestamp  time.Time
	ActorID    string
	ActorRole  string
	Action     Action
	EntityType string
	EntityID   string
	Before     json.RawMessage
	After      json.RawMessage
	Metadata   map[string]any
	RequestID  string
}

// Snapshot marshals v for use as Event.Before/After. Marshal failures yield nil
// so an unserialisable snapshot never blocks the mutation it describes.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
