package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Scheduler runs a task on a fixed interval until stopped.
//
// The first run happens one interval after [Scheduler.Start], never
// immediately: an immediate fetch on activation is the caller's decision.
// Runs never overlap; a task slower than the interval delays the next tick
// rather than stacking up.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	interval time.Duration
	task     func()
	logger   *slog.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a [Scheduler] that calls task every interval.
//
// interval must be positive. The scheduler does nothing until
// [Scheduler.Start] is called.
func NewScheduler(interval time.Duration, task func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start arms the recurring task in a background goroutine.
//
// If ctx is nil, context.Background() is used. Cancelling ctx disarms the
// scheduler just like [Scheduler.Stop], except that it does not wait.
// Start is idempotent, and a no-op once Stop has been called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a tick can race with cancellation; cancellation wins
				if ctx.Err() != nil {
					return
				}
				s.runSafe()
			}
		}
	}()
}

// Stop disarms the scheduler and waits for a running task to return.
//
// After Stop returns the task is never invoked again. Stop is idempotent and
// safe to call before Start. It must not be called from inside the task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// runSafe calls the task with panic recovery.
// A panicking task is logged with a correlation ID and the loop keeps ticking.
func (s *Scheduler) runSafe() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panic",
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.task()
}
