// Package redisstream forwards audit events to a Redis stream for external
// indexers.
//
// Handle only enqueues. A single Run goroutine drains the queue and calls
// XADD, so a slow or unreachable Redis never delays a mutation. When the
// queue is full the event is dropped and counted; the events table still
// holds it, and indexers can backfill from GET /api/events.
package redisstream

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/model"
)

const (
	DefaultStream = "resumiro:events"
	DefaultBuffer = 256

	// Approximate cap on the stream length.
	maxStreamLen = 100_000

	drainTimeout = 5 * time.Second
)

// StreamAdder is the one go-redis method the forwarder needs. *redis.Client
// satisfies it.
type StreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Forwarder struct {
	client  StreamAdder
	stream  string
	queue   chan model.Event
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(client StreamAdder, stream string, buffer int, m *metrics.Metrics, logger *slog.Logger) *Forwarder {
	if stream == "" {
		stream = DefaultStream
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Forwarder{
		client:  client,
		stream:  stream,
		queue:   make(chan model.Event, buffer),
		metrics: m,
		logger:  logger,
	}
}

// Handle enqueues event without blocking.
func (f *Forwarder) Handle(_ context.Context, event model.Event) {
	select {
	case f.queue <- event:
	default:
		f.metrics.IncForwardFailure()
		f.logger.Warn("event forward queue full, dropping event",
			slog.String("eventID", event.ID),
			slog.String("kind", string(event.Kind)),
		)
	}
}

// Run forwards queued events until ctx is cancelled, then flushes what is
// still queued (bounded by drainTimeout) and returns nil.
func (f *Forwarder) Run(ctx context.Context) error {
	f.logger.Info("event forwarder started", slog.String("stream", f.stream))

	for {
		select {
		case <-ctx.Done():
			f.drain(ctx)
			return nil
		case e := <-f.queue:
			f.forward(ctx, e)
		}
	}
}

func (f *Forwarder) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()

	for {
		select {
		case e := <-f.queue:
			f.forward(ctx, e)
		default:
			f.logger.Info("event forwarder stopped")
			return
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, e model.Event) {
	err := f.client.XAdd(ctx, &redis.XAddArgs{
		Stream: f.stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]any{
			"id":          e.ID,
			"seq":         strconv.FormatInt(e.Seq, 10),
			"kind":        string(e.Kind),
			"entity":      e.Entity,
			"entity_id":   e.EntityID,
			"actor":       e.Actor,
			"detail":      e.Detail,
			"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		f.metrics.IncForwardFailure()
		f.logger.Error("forwarding event to redis",
			slog.String("eventID", e.ID),
			slog.String("error", err.Error()),
		)
	}
}
