package workers

import (
	"chat-sync/contract"
	"chat-sync/errors"
	"chat-sync/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const defaultWaitBeforeRestart = 200 * time.Millisecond

// Supervisor Own a context and a Cancel function
// Run each worker in a goroutine
// Check panics and errors
// Restart workers automatically
// Shutdown properly if parent context is canceled
// Wait for the end of all goroutines via WaitGroup
//
// A linked supervisor also stops every worker as soon as one of them
// finishes, which ties the lifetime of a group to its first member to end.
type Supervisor struct {
	Cancel            context.CancelFunc // To stop the context
	mu                sync.Mutex
	wg                *sync.WaitGroup // Wait for the end of goroutines
	log               *slog.Logger
	workers           []contract.Worker
	waitBeforeRestart time.Duration
	linked            bool
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultWaitBeforeRestart
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, waitBeforeRestart: restartInterval}
}

// Linked makes the end of any worker stop the whole group.
func (s *Supervisor) Linked() *Supervisor {
	s.linked = true
	return s
}

// Run Create a local cancellation trigger tied to the parent ctx
//
//	// If the parent (main) cancels, we Cancel.
//	// If WE call s.Cancel(), only our children Cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.Cancel = cancel
	s.mu.Unlock()
	// Safety: ensure resources are cleaned up when Run exits
	defer cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision.
// The worker is executed in a dedicated goroutine. If its Run method panics
// or fails, the supervisor recovers and restarts it after a delay.
// A failure in one worker must not stop the supervisor itself.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()
		if s.linked {
			defer s.Stop()
		}

		for {
			if ctx.Err() != nil {
				s.log.Debug(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// Terminated properly, never restart !
				s.log.Debug(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Debug("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			observability.WorkerRestarts.WithLabelValues(workerName).Inc()
			select {
			case <-ctx.Done():
				// Context canceled: priority stop.
				return
			case <-time.After(s.waitBeforeRestart):
			}
		}
	}()
}

// Stop Cancel all goroutines listening channel for Ctx.Done
// Supervisor will wait for all goroutines to finish
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Cancel != nil {
		s.Cancel()
	}
}
