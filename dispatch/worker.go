package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/log"
	"github.com/strelka-go/backend/metrics"
	"github.com/strelka-go/backend/types"
)

// defaultIdleSleep is how long the worker sleeps when the task queue is empty.
const defaultIdleSleep = 250 * time.Millisecond

// Worker leases requests from the shared task queue and drives each one's
// file tree to completion. A worker is bounded-lifetime: it retires after
// limits.max_files requests or limits.time_to_live seconds, whichever comes
// first, and a supervisor restarts it. Config, scanner, and rule changes are
// picked up on restart.
type Worker struct {
	cfg       *config.Config
	coord     *coordinator.Client
	dist      *Distributor
	logger    *log.Logger
	collector *metrics.Collector

	// idleSleep is overridable so tests don't wait out real idle periods.
	idleSleep time.Duration
}

// NewWorker wires a worker. collector may be nil.
func NewWorker(cfg *config.Config, coord *coordinator.Client, dist *Distributor, logger *log.Logger, collector *metrics.Collector) *Worker {
	return &Worker{
		cfg:       cfg,
		coord:     coord,
		dist:      dist,
		logger:    logger,
		collector: collector,
		idleSleep: defaultIdleSleep,
	}
}

// Work runs the steady-state loop until a budget is exhausted or ctx is
// canceled. Returns nil on orderly retirement; coordinator and scanner
// failures never escape the loop.
func (w *Worker) Work(ctx context.Context) error {
	retireAt := time.Now().Add(time.Duration(w.cfg.Limits.TimeToLive) * time.Second)
	requestsDone := 0

	w.logger.Info("worker started", map[string]any{
		"max_files":    w.cfg.Limits.MaxFiles,
		"time_to_live": w.cfg.Limits.TimeToLive,
	})

	for {
		if err := ctx.Err(); err != nil {
			break
		}
		if requestsDone >= w.cfg.Limits.MaxFiles || !time.Now().Before(retireAt) {
			break
		}

		task, err := w.coord.PopTask(ctx)
		if err != nil {
			w.logger.Error("task pop failed", map[string]any{"error": err.Error()})
			w.collector.IncCoordinatorErrors()
			if !w.sleep(ctx) {
				break
			}
			continue
		}
		if task == nil {
			if !w.sleep(ctx) {
				break
			}
			continue
		}

		if !task.ExpireAt.After(time.Now()) {
			w.logger.Debug("task already expired, skipping", map[string]any{
				"root_id":   task.RootID,
				"expire_at": task.ExpireAt,
			})
			w.collector.IncTasksExpired()
			continue
		}

		w.collector.IncRequestsClaimed()
		logger := w.logger.With("root_id", task.RootID)

		err = w.processRequest(ctx, task)
		switch {
		case errors.Is(err, ErrRequestExpired) || errors.Is(err, context.DeadlineExceeded):
			// No FIN: the front-end times out on the event key.
			logger.Debug("request budget expired, abandoning", nil)
			w.collector.IncRequestsTimedOut()
		case err != nil:
			logger.Error("request abandoned", map[string]any{"error": err.Error()})
			w.collector.IncRequestsAbandoned()
		default:
			w.collector.IncRequestsCompleted()
		}

		requestsDone++
	}

	w.logger.Info("worker retiring", w.collector.Snapshot().Fields())
	return nil
}

// processRequest drives one request's file tree depth-first to completion
// under the request deadline, then emits the FIN terminator.
//
// Traversal uses an explicit stack rather than native recursion: depth is
// bounded by limits.max_depth, not by the archive nesting an adversarial
// input can produce. Children are pushed in reverse so siblings are visited
// in scanner-output order.
func (w *Worker) processRequest(ctx context.Context, task *types.Task) error {
	reqCtx, cancel := context.WithDeadline(ctx, task.ExpireAt)
	defer cancel()

	root := types.NewFile(task.RootID)
	stack := []*types.File{root}

	for len(stack) > 0 {
		if reqCtx.Err() != nil {
			return ErrRequestExpired
		}

		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := w.dist.Distribute(reqCtx, f, task.RootID, task.ExpireAt)
		if err != nil {
			return err
		}

		for i := len(children) - 1; i >= 0; i-- {
			children[i].Parent = f.UID
			children[i].Depth = f.Depth + 1
			stack = append(stack, children[i])
		}
	}

	if err := w.coord.EmitFIN(reqCtx, task.RootID, task.ExpireAt); err != nil {
		if reqCtx.Err() != nil {
			return ErrRequestExpired
		}
		return err
	}
	return nil
}

// sleep waits out one idle period. Returns false when ctx was canceled.
func (w *Worker) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(w.idleSleep):
		return true
	}
}
