// Package service holds the three authorization components: the identity
// registry, the company directory and the certificate ledger.
//
// THE LAYERS:
//
//	Facade / CLI / tests → service (checks, state machine) → repository (SQL)
//
// Each component takes its repositories and collaborators as interfaces at
// construction. Nothing here knows about HTTP or SQL.
//
// MUTATIONS:
// Every mutating method runs through Journal.Do, which opens one transaction
// for the whole call. All checks happen inside it, before the first write,
// and read the same state the writes change. The events the call records are
// appended in that transaction too, and are handed to the publisher only
// after commit. A failed check therefore leaves no trace but a log line and
// a failure metric.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/resumiro/internal/auth"
	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
	"github.com/sakif/resumiro/internal/repository"
)

// Publisher receives events once the transaction that produced them has
// committed. audit.Dispatcher implements it.
type Publisher interface {
	Publish(ctx context.Context, events []model.Event)
}

// Journal runs mutations and records what they changed.
type Journal struct {
	tx        repository.Transactor
	events    repository.EventRepository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewJournal wires the shared mutation path. publisher and m may be nil.
func NewJournal(
	tx repository.Transactor,
	events repository.EventRepository,
	publisher Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Journal {
	return &Journal{
		tx:        tx,
		events:    events,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Recorder collects the events of one mutation.
type Recorder struct {
	actor  string
	events []model.Event
}

// Record queues an event; it is written only if the mutation succeeds.
func (r *Recorder) Record(kind model.EventKind, entity, entityID, detail string) {
	r.events = append(r.events, model.Event{
		Kind:     kind,
		Entity:   entity,
		EntityID: entityID,
		Actor:    r.actor,
		Detail:   detail,
	})
}

// Do runs fn in a transaction on behalf of the caller found in ctx.
func (j *Journal) Do(ctx context.Context, op string, fn func(ctx context.Context, caller string, rec *Recorder) error) error {
	start := time.Now()
	caller, _ := auth.PrincipalFromContext(ctx)
	rec := &Recorder{actor: caller}

	err := j.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := fn(ctx, caller, rec); err != nil {
			return err
		}
		for i := range rec.events {
			if err := j.events.AppendEvent(ctx, &rec.events[i]); err != nil {
				return err
			}
		}
		return nil
	})
	j.metrics.ObserveMutation(op, start, err)

	if err != nil {
		j.logger.Debug("mutation rejected",
			slog.String("op", op),
			slog.String("caller", caller),
			slog.String("error", err.Error()),
		)
		return err
	}

	if j.publisher != nil && len(rec.events) > 0 {
		j.publisher.Publish(ctx, rec.events)
	}
	return nil
}

// Events returns the audit log after seq, oldest first.
func (j *Journal) Events(ctx context.Context, afterSeq int64, limit int) ([]model.Event, error) {
	return j.events.ListEvents(ctx, afterSeq, limit)
}
