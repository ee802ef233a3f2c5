// Package scheduler owns the background validation loop: it runs
// cycles on an interval, exposes a small control surface (start, stop,
// pause, resume, refresh_now, live parameter updates), and holds the
// catalog's current snapshot. It is the sole authority over validation
// state — callers never touch the catalog or the loop directly.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/proxycatalog/catalog/internal/catalog"
	"github.com/proxycatalog/catalog/internal/logging"
	"github.com/proxycatalog/catalog/internal/progress"
	"github.com/proxycatalog/catalog/internal/source"
	"github.com/proxycatalog/catalog/internal/telemetry"
	"github.com/proxycatalog/catalog/internal/validator"
)

// Status is the closed set of states the scheduler loop can report.
type Status string

const (
	StatusStopped    Status = "stopped"
	StatusRunning    Status = "running"
	StatusPaused     Status = "paused"
	StatusValidating Status = "validating"
)

// Snapshot is the consistent, read-only view returned by GetStatus.
type Snapshot struct {
	Status               Status
	ValidationInProgress bool
	IntervalSeconds      int
	ValidationThreads    int
	TestURL              string
	LastRunTime          *time.Time
	NextRunTime          *time.Time
	CurrentProxyCount    int
	ValidProxyCount      int
}

// Scheduler runs validation cycles against a fixed set of sources on
// an interval, and holds the most recent validated catalog snapshot.
type Scheduler struct {
	sources []source.Source
	realIP  string
	logger  *logging.Logger
	metrics *telemetry.Collector

	mu                sync.Mutex
	status            Status
	validationRunning bool
	intervalSeconds   int
	validationThreads int
	params            validator.Params
	lastRunTime       *time.Time
	nextRunTime       *time.Time
	catalog           []catalog.Record

	cancel context.CancelFunc
	done   chan struct{}

	stopCh    chan struct{}
	pauseCh   chan struct{}
	resumeCh  chan struct{}
	refreshCh chan struct{}

	onCycleComplete func(Snapshot)
}

// Config seeds a Scheduler's live parameters and dependencies.
type Config struct {
	Sources           []source.Source
	IntervalSeconds   int
	ValidationThreads int
	Params            validator.Params
	Logger            *logging.Logger
	Metrics           *telemetry.Collector

	// RealIP is the validator host's own public address, resolved once
	// by the caller (see internal/realip) before the scheduler starts.
	// Empty means resolution failed and anonymity classification
	// degrades to "Unknown (No Real IP)" for every cycle.
	RealIP string
}

// New builds a Scheduler in the stopped state. No background loop runs
// until Start is called.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Scheduler{
		sources:           cfg.Sources,
		realIP:            cfg.RealIP,
		logger:            logger,
		metrics:           cfg.Metrics,
		status:            StatusStopped,
		intervalSeconds:   cfg.IntervalSeconds,
		validationThreads: cfg.ValidationThreads,
		params:            cfg.Params,
	}
}

// Start spins up exactly one background loop if one is not already
// running. Idempotent: a second Start on a running scheduler is a
// no-op; on a paused scheduler it is equivalent to Resume.
func (s *Scheduler) Start() Snapshot {
	s.mu.Lock()
	if s.status == StatusPaused {
		s.mu.Unlock()
		return s.Resume()
	}
	if s.status != StatusStopped {
		defer s.mu.Unlock()
		return s.snapshotLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.stopCh = make(chan struct{})
	s.pauseCh = make(chan struct{}, 1)
	s.resumeCh = make(chan struct{}, 1)
	s.refreshCh = make(chan struct{}, 1)
	s.status = StatusRunning
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.SchedulerStateChange(string(StatusStopped), string(StatusRunning))
	go s.loop(ctx)

	return snap
}

// Stop signals the loop to exit after the current probe completes and
// joins it with a bounded timeout: max(5s, interval/10). On a scheduler
// that is already stopped, this is a no-op.
func (s *Scheduler) Stop() Snapshot {
	s.mu.Lock()
	if s.status == StatusStopped {
		defer s.mu.Unlock()
		return s.snapshotLocked()
	}

	close(s.stopCh)
	cancel := s.cancel
	done := s.done
	interval := s.intervalSeconds
	s.mu.Unlock()

	_ = cancel // the loop observes stopCh cooperatively; cancel only unblocks network I/O

	joinWindow := 5 * time.Second
	if alt := time.Duration(interval/10) * time.Second; alt > joinWindow {
		joinWindow = alt
	}

	select {
	case <-done:
	case <-time.After(joinWindow):
		s.logger.Warn("scheduler stop: join window elapsed, abandoning background loop")
		if cancel != nil {
			cancel()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusStopped
	s.nextRunTime = nil
	s.logger.SchedulerStateChange(string(StatusRunning), string(StatusStopped))
	return s.snapshotLocked()
}

// Pause is only valid from running or validating; it causes the loop
// to block at its next suspension point.
func (s *Scheduler) Pause() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning && s.status != StatusValidating {
		return s.snapshotLocked()
	}
	select {
	case s.pauseCh <- struct{}{}:
	default:
	}
	return s.snapshotLocked()
}

// Resume is only valid from paused; it unblocks the loop.
func (s *Scheduler) Resume() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusPaused {
		return s.snapshotLocked()
	}
	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
	return s.snapshotLocked()
}

// RefreshNow requests an out-of-cycle validation. It never blocks the
// caller. If a validation is already in progress it no-ops and reports
// that. If the scheduler is stopped it no-ops.
func (s *Scheduler) RefreshNow(background bool) (string, Snapshot) {
	s.mu.Lock()
	if s.validationRunning {
		defer s.mu.Unlock()
		return "Validation already in progress.", s.snapshotLocked()
	}
	if s.status == StatusStopped {
		defer s.mu.Unlock()
		return "Scheduler stopped.", s.snapshotLocked()
	}
	paused := s.status == StatusPaused
	s.mu.Unlock()

	if background || paused {
		go s.performValidation(context.Background())
		return "Refresh task started in background.", s.GetStatus()
	}

	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
	return "Refresh signal sent.", s.GetStatus()
}

// SetInterval atomically updates the live validation interval. Takes
// effect from the next scheduled run.
func (s *Scheduler) SetInterval(seconds int) (Snapshot, error) {
	if seconds <= 0 {
		return Snapshot{}, fmt.Errorf("scheduler: interval must be positive, got %d", seconds)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalSeconds = seconds
	return s.snapshotLocked(), nil
}

// SetValidationThreads atomically updates the live worker-pool size.
// Takes effect from the next scheduled run.
func (s *Scheduler) SetValidationThreads(n int) (Snapshot, error) {
	if n <= 0 {
		return Snapshot{}, fmt.Errorf("scheduler: validation threads must be positive, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validationThreads = n
	return s.snapshotLocked(), nil
}

// SetOnCycleComplete registers a callback invoked with the fresh status
// snapshot at the end of every validation cycle, after the catalog has
// been swapped. Used by the control plane to push updates to websocket
// subscribers without polling. fn must not block or call back into the
// scheduler.
func (s *Scheduler) SetOnCycleComplete(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCycleComplete = fn
}

// GetStatus returns a consistent snapshot of scheduler state.
func (s *Scheduler) GetStatus() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// GetProxies returns the current catalog snapshot, optionally filtered
// to only valid records.
func (s *Scheduler) GetProxies(onlyValid bool) []catalog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !onlyValid {
		out := make([]catalog.Record, len(s.catalog))
		copy(out, s.catalog)
		return out
	}

	var out []catalog.Record
	for _, r := range s.catalog {
		if r.IsValid {
			out = append(out, r)
		}
	}
	return out
}

func (s *Scheduler) snapshotLocked() Snapshot {
	validCount := 0
	for _, r := range s.catalog {
		if r.IsValid {
			validCount++
		}
	}
	return Snapshot{
		Status:               s.status,
		ValidationInProgress: s.validationRunning,
		IntervalSeconds:      s.intervalSeconds,
		ValidationThreads:    s.validationThreads,
		TestURL:              s.params.TestURL,
		LastRunTime:          s.lastRunTime,
		NextRunTime:          s.nextRunTime,
		CurrentProxyCount:    len(s.catalog),
		ValidProxyCount:      validCount,
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	select {
	case <-s.stopCh:
		s.finishStopped()
		return
	default:
		s.performValidation(ctx)
	}

	for {
		s.mu.Lock()
		next := time.Now()
		if s.lastRunTime != nil {
			next = s.lastRunTime.Add(time.Duration(s.intervalSeconds) * time.Second)
		}
		s.nextRunTime = &next
		s.mu.Unlock()

		if s.sleepUntil(ctx, next) == loopStop {
			s.finishStopped()
			return
		}
	}
}

type sleepOutcome int

const (
	loopRefresh sleepOutcome = iota
	loopStop
	loopRunAgain
)

// sleepUntil sleeps in ~1s ticks until deadline, or reacts to stop,
// pause, or refresh signals, whichever comes first. A refresh or an
// elapsed deadline runs exactly one validation cycle before returning;
// a pause blocks until resume or stop and then returns without
// validating.
func (s *Scheduler) sleepUntil(ctx context.Context, deadline time.Time) sleepOutcome {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return loopStop

		case <-s.refreshCh:
			s.performValidation(ctx)
			return loopRunAgain

		case <-s.pauseCh:
			s.mu.Lock()
			s.status = StatusPaused
			s.mu.Unlock()
			s.logger.SchedulerStateChange(string(StatusRunning), string(StatusPaused))

			select {
			case <-s.resumeCh:
				s.mu.Lock()
				s.status = StatusRunning
				s.mu.Unlock()
				s.logger.SchedulerStateChange(string(StatusPaused), string(StatusRunning))
				return loopRunAgain
			case <-s.stopCh:
				return loopStop
			}

		case now := <-ticker.C:
			if !now.Before(deadline) {
				s.performValidation(ctx)
				return loopRunAgain
			}
		}
	}
}

func (s *Scheduler) finishStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusStopped
	s.nextRunTime = nil
}

// performValidation runs exactly one aggregate → dedup → probe-all →
// swap cycle. It guarantees at-most-one-concurrent-validation via the
// validationRunning flag, and never leaves that flag set on panic or
// error — failures are logged and the loop continues on the next
// interval.
func (s *Scheduler) performValidation(ctx context.Context) {
	s.mu.Lock()
	if s.validationRunning {
		s.mu.Unlock()
		return
	}
	s.validationRunning = true
	now := time.Now().UTC()
	s.lastRunTime = &now
	prevStatus := s.status
	s.status = StatusValidating
	threads := s.validationThreads
	params := s.params
	s.mu.Unlock()

	s.logger.ValidationCycleStart(threads)
	if s.metrics != nil {
		s.metrics.RecordCycleStart()
	}
	cycleStart := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("validation cycle panicked", "panic", r)
			if s.metrics != nil {
				s.metrics.RecordCycleFailed()
			}
		}
		s.mu.Lock()
		s.validationRunning = false
		// Stop may have already moved status to StatusStopped and given up
		// on this cycle (join window elapsed); don't resurrect it to
		// running/paused underneath a caller that already observed stopped.
		if s.status != StatusStopped {
			if prevStatus == StatusPaused {
				s.status = StatusPaused
			} else {
				s.status = StatusRunning
			}
		}
		hook := s.onCycleComplete
		snap := s.snapshotLocked()
		s.mu.Unlock()
		if hook != nil {
			hook(snap)
		}
	}()

	results := s.runCycle(ctx, threads, params)

	s.mu.Lock()
	s.catalog = results
	validCount := 0
	for _, r := range results {
		if r.IsValid {
			validCount++
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordCycleDuration(time.Since(cycleStart))
		s.metrics.SetCatalogSize(len(results))
	}
	s.logger.ValidationCycleComplete(len(results), validCount, time.Since(cycleStart))
}

func (s *Scheduler) runCycle(ctx context.Context, threads int, params validator.Params) []catalog.Record {
	agg := source.NewAggregator(s.sources, func(fe *source.FetchError) {
		s.logger.SourceFetchFailed(fe.Source, fe.Err)
		if s.metrics != nil {
			s.metrics.RecordSourceFetchError(fe.Source)
		}
	})
	candidates := agg.Aggregate(ctx)
	deduped := validator.Dedup(candidates)

	return validator.RunBatch(ctx, deduped, validator.BatchConfig{
		Params:   params,
		Workers:  threads,
		Progress: &progress.NoneIndicator{},
		Metrics:  s.metrics,
		RealIP:   s.realIP,
	})
}
