package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	audit "lted/pkg/platform/audit"
	txcontext "lted/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Appends join the
// transaction carried by ctx when there is one.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event. Before/After/Metadata are stored as JSONB.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}

	var metadata []byte
	if len(event.Metadata) > 0 {
		b, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = b
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, actor_role, action,
			entity_type, entity_id, before, after, metadata, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		event.ActorID,
		event.ActorRole,
		string(event.Action),
		event.EntityType,
		event.EntityID,
		rawJSON(event.Before),
		rawJSON(event.After),
		metadata,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByEntity returns the history of one entity, oldest first.
func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM audit_events
		WHERE entity_id = $1
		ORDER BY timestamp, id
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events, newest last.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT `+eventColumns+`
			FROM audit_events
			ORDER BY timestamp DESC
			LIMIT $1
		) recent
		ORDER BY timestamp
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

const eventColumns = `category, timestamp, actor_id, actor_role, action, entity_type, entity_id, before, after, metadata, request_id`

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event                   audit.Event
			category, action        string
			before, after, metadata []byte
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.ActorID,
			&event.ActorRole,
			&action,
			&event.EntityType,
			&event.EntityID,
			&before,
			&after,
			&metadata,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Category = audit.EventCategory(category)
		event.Action = audit.Action(action)
		if len(before) > 0 {
			event.Before = json.RawMessage(before)
		}
		if len(after) > 0 {
			event.After = json.RawMessage(after)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// rawJSON keeps an empty snapshot as SQL NULL instead of invalid JSON.
func rawJSON(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

var _ audit.Store = (*Store)(nil)
