package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nhle/mailsync/internal/logging"
)

// DefaultInterval is the scheduler period when none is configured.
const DefaultInterval = 60 * time.Second

// stopTimeout bounds how long Stop waits for a running cycle.
const stopTimeout = 5 * time.Second

// SyncState represents the current state of the background cycle.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// SyncStatus is a snapshot of the scheduler state.
type SyncStatus struct {
	State    SyncState
	Cycles   int
	LastRun  time.Time
	LastSync *time.Time
	LastNew  int
	Records  int
	Error    error
}

// Syncer is the work the scheduler runs.
type Syncer interface {
	Sync(ctx context.Context) Result
	StartupEnrichment(ctx context.Context) bool
}

// Scheduler runs a sync cycle on a fixed period. A cycle that is still
// running when the next tick fires causes that tick to be skipped; a
// failing or panicking cycle is logged and the schedule continues.
type Scheduler struct {
	svc      Syncer
	interval time.Duration
	logger   *slog.Logger

	mu      gosync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	stopCh  chan struct{}
	startWG gosync.WaitGroup
	status  SyncStatus
}

// NewScheduler creates a scheduler running svc every interval.
func NewScheduler(svc Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start registers the periodic job and runs the startup pass: an
// enrichment trigger when records already exist, then one immediate
// cycle. The scheduler stops when ctx is canceled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	cl := logging.NewCronLogger(s.logger)

	job := cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).
		Then(cron.FuncJob(func() { s.runCycle(runCtx) }))

	c := cron.New(cron.WithLogger(cl))
	if _, err := c.AddJob(fmt.Sprintf("@every %s", s.interval), job); err != nil {
		cancel()
		return fmt.Errorf("scheduling sync: %w", err)
	}

	stopCh := make(chan struct{})
	s.cron = c
	s.cancel = cancel
	s.stopCh = stopCh
	c.Start()

	s.startWG.Add(1)
	go func() {
		defer s.startWG.Done()
		if s.svc.StartupEnrichment(runCtx) {
			s.logger.Info("startup enrichment triggered")
		}
		job.Run()
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
		}
	}()

	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the schedule and waits, up to a bound, for a running cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	stopCh := s.stopCh
	s.cron = nil
	s.cancel = nil
	s.stopCh = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	close(stopCh)

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.startWG.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopTimeout):
		s.logger.Warn("stop timeout waiting for running cycle")
	}
	cancel()
	s.logger.Info("scheduler stopped")
}

// Status returns the current scheduler state.
func (s *Scheduler) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.setRunning()

	defer func() {
		if r := recover(); r != nil {
			s.finish(Result{Err: fmt.Errorf("sync cycle panicked: %v", r)})
			panic(r)
		}
	}()

	s.finish(s.svc.Sync(ctx))
}

func (s *Scheduler) setRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.State = SyncRunning
}

func (s *Scheduler) finish(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Cycles++
	s.status.LastRun = time.Now()
	s.status.Error = res.Err
	if res.Err != nil {
		s.status.State = SyncError
		return
	}
	s.status.State = SyncIdle
	s.status.LastSync = res.LastSync
	s.status.LastNew = len(res.NewIDs)
	s.status.Records = len(res.Records)
}
