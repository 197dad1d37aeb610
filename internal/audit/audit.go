// Package audit fans committed state transitions out to observers.
//
// Events are written to the events table inside the transaction that made the
// change, so the table is the durable record. The sinks here run only after
// that transaction commits and are best effort: a sink never fails the
// mutation that produced the event.
package audit

import (
	"context"
	"log/slog"

	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
)

// Sink observes one committed event. Handle must not block for long; slow
// work belongs behind a queue (see redisstream.Forwarder).
type Sink interface {
	Handle(ctx context.Context, event model.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event model.Event)

func (f SinkFunc) Handle(ctx context.Context, event model.Event) { f(ctx, event) }

// Dispatcher delivers events to every sink in registration order.
type Dispatcher struct {
	sinks []Sink
}

func NewDispatcher(sinks ...Sink) *Dispatcher {
	return &Dispatcher{sinks: sinks}
}

// Publish hands each event to each sink.
func (d *Dispatcher) Publish(ctx context.Context, events []model.Event) {
	if d == nil {
		return
	}
	for _, e := range events {
		for _, s := range d.sinks {
			s.Handle(ctx, e)
		}
	}
}

// LogSink writes every event as a structured log line.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, e model.Event) {
		logger.InfoContext(ctx, "state transition",
			slog.String("kind", string(e.Kind)),
			slog.String("entity", e.Entity),
			slog.String("entityID", e.EntityID),
			slog.String("actor", e.Actor),
			slog.Int64("seq", e.Seq),
		)
	})
}

// MetricsSink counts events by kind.
func MetricsSink(m *metrics.Metrics) Sink {
	return SinkFunc(func(_ context.Context, e model.Event) {
		m.IncTransition(e.Kind)
	})
}
