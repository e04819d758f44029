// Package outbox drains staged domain events and delivers them to the
// configured sinks. Events are appended transactionally with the aggregate
// write; this loop is the only component that marks them dispatched, so
// delivery is at-least-once and sinks must tolerate replays.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"dossierflow/internal/dossier/metrics"
	"dossierflow/internal/dossier/models"
)

// Store is the outbox side of the dossier store.
type Store interface {
	PendingBatch(ctx context.Context, limit int) ([]models.OutboxEntry, error)
	MarkDispatched(ctx context.Context, ids []int64, now time.Time) error
}

// Sink receives one event at a time. Name labels logs and metrics.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e models.DomainEvent) error
}

// Dispatcher polls the outbox on an interval and fans entries out to every
// sink. An entry is marked dispatched only once all sinks accepted it; a
// failing sink leaves the whole entry pending for the next tick.
type Dispatcher struct {
	store     Store
	sinks     []Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(d *Dispatcher)

func WithInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func WithBatchSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func New(store Store, sinks []Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		sinks:     sinks,
		interval:  2 * time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run blocks until the context is cancelled, draining the outbox on every
// tick. Suitable as an errgroup member.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				d.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain delivers one batch. Exposed separately so tests and shutdown paths
// can flush without the ticker.
func (d *Dispatcher) Drain(ctx context.Context) error {
	batch, err := d.store.PendingBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	delivered := make([]int64, 0, len(batch))
	for _, entry := range batch {
		if !d.deliverAll(ctx, entry) {
			// Keep ordering per dossier: stop at the first failure
			// instead of skipping ahead.
			break
		}
		delivered = append(delivered, entry.ID)
	}
	if len(delivered) == 0 {
		return nil
	}

	if err := d.store.MarkDispatched(ctx, delivered, time.Now().UTC()); err != nil {
		return err
	}
	d.logger.DebugContext(ctx, "outbox batch dispatched",
		"delivered", len(delivered),
		"pending_in_batch", len(batch)-len(delivered),
	)
	return nil
}

func (d *Dispatcher) deliverAll(ctx context.Context, entry models.OutboxEntry) bool {
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, entry.Event); err != nil {
			d.logger.WarnContext(ctx, "sink delivery failed",
				"sink", sink.Name(),
				"outbox_id", entry.ID,
				"dossier_id", entry.Event.DossierID,
				"kind", entry.Event.Kind,
				"error", err,
			)
			return false
		}
		d.metrics.IncrementDispatched(sink.Name(), 1)
	}
	return true
}
