package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

// AppendEvent writes an audit event. Called inside the mutation's transaction,
// it commits or rolls back together with the change it describes.
func (db *DB) AppendEvent(ctx context.Context, event *model.Event) error {
	if event.ID == "" {
		event.ID = xid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	res, err := db.q(ctx).ExecContext(ctx,
		`INSERT INTO events (id, kind, entity, entity_id, actor, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		string(event.Kind),
		event.Entity,
		event.EntityID,
		event.Actor,
		event.Detail,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: appending event %s: %w", event.Kind, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading event seq: %w", err)
	}
	event.Seq = seq

	return nil
}

// Page bounds for ListEvents.
const (
	defaultEventPage = 100
	maxEventPage     = 1000
)

// ListEvents returns at most maxEventPage events; a non-positive limit
// means defaultEventPage.
func (db *DB) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = defaultEventPage
	}
	limit = min(limit, maxEventPage)

	rows, err := db.q(ctx).QueryContext(ctx,
		`SELECT seq, id, kind, entity, entity_id, actor, detail, occurred_at
		 FROM events WHERE seq > ? ORDER BY seq LIMIT ?`,
		afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := make([]model.Event, 0, limit)
	for rows.Next() {
		var (
			e    model.Event
			kind string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &kind, &e.Entity, &e.EntityID, &e.Actor, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		e.Kind = model.EventKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating event rows: %w", err)
	}
	return events, nil
}
