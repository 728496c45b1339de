package workers

import (
	"chat-sync/contract"
	"context"
	"log/slog"
	"time"
)

// RepairWorker periodically asks a Repairer to fix what was flagged.
type RepairWorker struct {
	log      *slog.Logger
	repairer contract.Repairer
	interval time.Duration
}

func NewRepairWorker(log *slog.Logger, repairer contract.Repairer, interval time.Duration) *RepairWorker {
	return &RepairWorker{log: log, repairer: repairer, interval: interval}
}

func (w *RepairWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			repaired, pending, err := w.repairer.Repair(ctx)
			if err != nil {
				w.log.Warn("Repair pass incomplete", "repaired", repaired, "pending", pending, "error", err)
				continue
			}
			if repaired > 0 {
				w.log.Info("Repair pass done", "repaired", repaired, "pending", pending)
			}
		}
	}
}
