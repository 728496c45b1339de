package session

import (
	"chat-sync/contract"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/observability"
	"chat-sync/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// ReconcileWorker re-runs the reconciliation on a fixed cadence, or early
// when the user's conversation set changed.
type ReconcileWorker struct {
	log          *slog.Logger
	synchronizer *Synchronizer
	interval     time.Duration
}

func NewReconcileWorker(log *slog.Logger, synchronizer *Synchronizer, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{log: log, synchronizer: synchronizer, interval: interval}
}

func (w *ReconcileWorker) Run(ctx context.Context) error {
	if err := w.synchronizer.Start(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.synchronizer.Wake():
		}
		if err := w.synchronizer.Reconcile(ctx); err != nil {
			if errors.Is(err, errors.ErrTransportClosed) {
				return nil
			}
			w.log.Warn("Reconciliation failed", "error", err)
		}
	}
}

// TransportWorker writes the delivery queue to the connection, one JSON
// frame per event, in enqueue order.
// It ends the session on any transport failure rather than retrying.
type TransportWorker struct {
	log         *slog.Logger
	outbox      *sink.Outbox
	conn        contract.Connection
	interval    time.Duration
	sendTimeout time.Duration
}

func NewTransportWorker(log *slog.Logger, outbox *sink.Outbox, conn contract.Connection,
	interval, sendTimeout time.Duration) *TransportWorker {
	return &TransportWorker{log: log, outbox: outbox, conn: conn, interval: interval, sendTimeout: sendTimeout}
}

func (w *TransportWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.conn.Done():
			w.log.Info("Connection closed by peer")
			return nil
		case <-w.outbox.Ready():
		case <-ticker.C:
		}
		if err := w.flush(ctx); err != nil {
			w.log.Warn("Closing session", "error", err)
			return nil
		}
	}
}

func (w *TransportWorker) flush(ctx context.Context) error {
	events, err := w.outbox.Drain()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	observability.OutboxBatchSize.Observe(float64(len(events)))
	for _, e := range events {
		frame, err := json.Marshal(event.Wrap(e))
		if err != nil {
			w.log.Error("Unable to encode event", "change", e.Change(), "error", err)
			continue
		}
		if err := w.send(ctx, frame); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
		}
	}
	return nil
}

func (w *TransportWorker) send(ctx context.Context, frame []byte) error {
	if w.sendTimeout <= 0 {
		return w.conn.Send(ctx, frame)
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()
	return w.conn.Send(sendCtx, frame)
}
