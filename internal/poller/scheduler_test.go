package poller

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncBuffer is a bytes.Buffer safe for concurrent writes from the scheduler.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// waitFor polls cond until it returns true or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestScheduler_Interval(t *testing.T) {
	s := NewScheduler(3*time.Second, func() {}, nil)
	if s.Interval() != 3*time.Second {
		t.Errorf("Interval() = %v, want 3s", s.Interval())
	}
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler(time.Minute, func() {}, testLogger())

	// this must not panic
	s.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent and can be
// called multiple times without panic or deadlock.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler(time.Minute, func() {}, testLogger())
	s.Start(context.Background())

	s.Stop()
	s.Stop()
}

// TestScheduler_StopBeforeStartThenStart verifies that a stopped scheduler
// cannot be restarted.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(10*time.Millisecond, func() { runs.Add(1) }, testLogger())

	s.Stop()
	s.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("runs = %d, want 0 after Start on a stopped scheduler", got)
	}
}

// TestScheduler_FirstRunAfterInterval verifies that Start never runs the
// task immediately.
func TestScheduler_FirstRunAfterInterval(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(200*time.Millisecond, func() { runs.Add(1) }, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("runs = %d before the first interval elapsed, want 0", got)
	}

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })
}

func TestScheduler_RunsRepeatedly(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(10*time.Millisecond, func() { runs.Add(1) }, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 3 })
}

// TestScheduler_NoRunsAfterStop verifies that once Stop returns the task is
// never invoked again.
func TestScheduler_NoRunsAfterStop(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, func() { runs.Add(1) }, testLogger())
	s.Start(context.Background())

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })
	s.Stop()

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("runs went from %d to %d after Stop", after, got)
	}
}

// TestScheduler_StopWaitsForRunningTask verifies that Stop blocks until an
// in-progress task returns.
func TestScheduler_StopWaitsForRunningTask(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	var once sync.Once
	s := NewScheduler(5*time.Millisecond, func() {
		once.Do(func() { close(started) })
		<-release
		finished.Store(true)
	}, testLogger())
	s.Start(context.Background())

	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop() returned while the task was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after the task finished")
	}
	if !finished.Load() {
		t.Error("task did not finish before Stop returned")
	}
}

// TestScheduler_StartTwice verifies that a second Start does not arm a
// second loop.
func TestScheduler_StartTwice(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	s := NewScheduler(50*time.Millisecond, func() {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
	}, testLogger())

	s.Start(context.Background())
	s.Start(context.Background())

	time.Sleep(175 * time.Millisecond)
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	// a single loop ticks at most 3 times in 175ms; two loops would give ~6
	if len(times) > 4 {
		t.Errorf("runs = %d, want at most 4 with a single loop", len(times))
	}
}

// TestScheduler_ConcurrentStartStop verifies there are no races between
// concurrent Start and Stop calls.
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	s := NewScheduler(time.Millisecond, func() {}, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()
	s.Stop()
}

// TestScheduler_ContextCancellation verifies that cancelling the start
// context stops the loop.
func TestScheduler_ContextCancellation(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(5*time.Millisecond, func() { runs.Add(1) }, testLogger())
	s.Start(ctx)

	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 })
	cancel()

	// stop should complete quickly since context is already cancelled
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not complete after parent context cancellation")
	}

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if got := runs.Load(); got != after {
		t.Errorf("runs went from %d to %d after cancellation", after, got)
	}
}

// TestScheduler_PanicRecovery verifies that a panicking task is logged with
// a correlation ID and does not stop the loop.
func TestScheduler_PanicRecovery(t *testing.T) {
	var logs syncBuffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	var runs atomic.Int32
	s := NewScheduler(5*time.Millisecond, func() {
		if runs.Add(1) == 1 {
			panic("simulated failure")
		}
	}, logger)
	s.Start(context.Background())

	// a second run proves the loop survived the panic
	waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 2 })
	s.Stop()

	out := logs.String()
	for _, want := range []string{"scheduled task panic", "simulated failure", "correlation_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
