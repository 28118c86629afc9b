package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrSyncBusy is returned by RunNow while another run is in progress.
// Callers are expected to retry later rather than queue.
var ErrSyncBusy = errors.New("a sync run is already in progress")

// Runner executes one synchronization pass.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running     bool       `json:"running"`
	SyncCount   int        `json:"sync_count"`
	ErrorsCount int        `json:"errors_count"`
	LastSync    *time.Time `json:"last_sync,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastResult  *RunResult `json:"last_result,omitempty"`
}

// Scheduler fires a sync run every interval on a background goroutine and
// accepts manual triggers in between. It is constructed explicitly and
// owned by the process composition; there is no package-level instance.
// At most one run executes at a time: a manual trigger during an active
// run is rejected with ErrSyncBusy.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	poll     time.Duration
	onStart  func()
	onResult func(*RunResult)

	runLock sync.Mutex // held for the duration of one run

	mu          sync.Mutex // guards everything below
	running     bool
	cancel      context.CancelFunc
	done        chan struct{}
	syncCount   int
	errorsCount int
	lastSync    time.Time
	nextRun     time.Time
	lastResult  *RunResult
}

// NewScheduler creates a stopped scheduler. poll controls how often the
// loop checks whether a run is due.
func NewScheduler(runner Runner, interval, poll time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if poll <= 0 {
		poll = 60 * time.Second
	}
	return &Scheduler{runner: runner, interval: interval, poll: poll}
}

// OnRunStart registers a callback invoked when a run actually begins, that
// is, after the run lock has been acquired. A busy-rejected trigger never
// fires it. Must be called before Start.
func (s *Scheduler) OnRunStart(fn func()) {
	s.onStart = fn
}

// OnRunComplete registers a callback invoked after every run, scheduled or
// manual, with its result. Must be called before Start.
func (s *Scheduler) OnRunComplete(fn func(*RunResult)) {
	s.onResult = fn
}

// Start launches the polling loop. Starting a running scheduler is a no-op
// with a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("scheduler already running, start ignored")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})
	s.nextRun = time.Now().Add(s.interval)

	slog.Info("scheduler started", "interval", s.interval, "next_run", s.nextRun.Format(time.RFC3339))
	go s.loop(ctx, s.done)
}

// Stop cancels the loop and waits briefly for it to exit. Stopping a
// stopped scheduler is a no-op with a warning. An in-flight run is not
// interrupted past its context; if it does not finish within the grace
// period it is abandoned, not killed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		slog.Warn("scheduler not running, stop ignored")
		return
	}
	s.running = false
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
		slog.Info("scheduler stopped")
	case <-time.After(5 * time.Second):
		slog.Warn("scheduler loop did not exit in time, abandoning")
	}
}

// Status returns a snapshot of the scheduler state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:     s.running,
		SyncCount:   s.syncCount,
		ErrorsCount: s.errorsCount,
		LastResult:  s.lastResult,
	}
	if !s.lastSync.IsZero() {
		t := s.lastSync
		st.LastSync = &t
	}
	if s.running && !s.nextRun.IsZero() {
		t := s.nextRun
		st.NextRun = &t
	}
	return st
}

// RunNow triggers a run immediately. It shares the run lock with the
// scheduled tick, so overlapping writes to the destination tabs cannot
// happen; a concurrent trigger gets ErrSyncBusy.
func (s *Scheduler) RunNow(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if !s.runLock.TryLock() {
		return nil, ErrSyncBusy
	}
	defer s.runLock.Unlock()

	return s.execute(ctx, opts)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			due := !s.nextRun.IsZero() && !time.Now().Before(s.nextRun)
			s.mu.Unlock()
			if due {
				s.tick(ctx)
			}
		}
	}
}

// tick runs one scheduled pass. It never lets a panic escape into the
// loop goroutine; a panicking run is logged and counted as failed.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.runLock.TryLock() {
		slog.Warn("scheduled run skipped, a run is already in progress")
		return
	}
	defer s.runLock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("sync run panicked", "panic", fmt.Sprint(r))
			s.mu.Lock()
			s.errorsCount++
			s.mu.Unlock()
		}
		s.mu.Lock()
		s.nextRun = time.Now().Add(s.interval)
		s.mu.Unlock()
	}()

	if _, err := s.execute(ctx, RunOptions{}); err != nil {
		slog.Warn("scheduled sync run failed", "error", err)
	}
}

// execute runs the runner and folds the outcome into the counters. Only a
// run that errors out entirely counts toward errorsCount; per-group
// failures inside a completed run are reported in the result. The caller
// must hold runLock.
func (s *Scheduler) execute(ctx context.Context, opts RunOptions) (*RunResult, error) {
	if s.onStart != nil {
		s.onStart()
	}
	result, err := s.runner.Run(ctx, opts)

	s.mu.Lock()
	if err != nil {
		s.errorsCount++
	} else {
		s.syncCount++
		s.lastSync = time.Now()
		s.lastResult = result
	}
	onResult := s.onResult
	s.mu.Unlock()

	if err == nil && onResult != nil {
		onResult(result)
	}
	return result, err
}
