package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
)

// SyncRunner runs one sync cycle.
type SyncRunner interface {
	Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error)
}

// SyncSchedulerConfig holds configuration for the sync scheduler.
type SyncSchedulerConfig struct {
	Interval     time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	RunOnStartup bool
	Logger       *slog.Logger
}

// SyncScheduler runs a merge sync on a fixed interval and on demand.
// Retryable failures are retried with linear backoff; authentication failures
// halt the schedule until the next manual trigger.
type SyncScheduler struct {
	runner  SyncRunner
	cfg     SyncSchedulerConfig
	trigger chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	halted bool
}

// NewSyncScheduler creates a scheduler. It does nothing until Start.
func NewSyncScheduler(runner SyncRunner, cfg SyncSchedulerConfig) (*SyncScheduler, error) {
	if runner == nil {
		return nil, errors.New("sync runner is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("sync interval must be positive, got %v", cfg.Interval)
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SyncScheduler{
		runner:  runner,
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the schedule loop.
func (s *SyncScheduler) Start() {
	if s.cfg.RunOnStartup {
		s.TriggerNow()
	}
	s.wg.Add(1)
	go s.loop()
	s.cfg.Logger.Info("Sync scheduler started", slog.Duration("interval", s.cfg.Interval))
}

func (s *SyncScheduler) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if s.Halted() {
				s.cfg.Logger.Debug("Scheduled sync skipped while halted")
				continue
			}
			s.runWithRetry(s.ctx)
		case <-s.trigger:
			s.runWithRetry(s.ctx)
		}
	}
}

// TriggerNow requests an immediate run and lifts a halt. Requests made while
// one is already waiting are coalesced.
func (s *SyncScheduler) TriggerNow() {
	s.mu.Lock()
	s.halted = false
	s.mu.Unlock()
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Halted reports whether scheduled runs are suspended after an authentication failure.
func (s *SyncScheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

func (s *SyncScheduler) runWithRetry(ctx context.Context) {
	opts := domain.SyncOptions{Strategy: domain.StrategyMerge}
	for attempt := 0; ; attempt++ {
		result, err := s.runner.Sync(ctx, opts)
		if err == nil {
			if deferred := result.Deferred(); deferred != nil {
				s.cfg.Logger.Warn("Scheduled sync is waiting for conflict resolution", slog.String("reason", deferred.Error()))
				return
			}
			s.cfg.Logger.Info("Scheduled sync finished",
				slog.String("status", string(result.Status)),
				slog.Bool("uploaded", result.Uploaded),
				slog.Int("conflicts", len(result.Conflicts)))
			return
		}

		logger := s.cfg.Logger.With(slog.String("error", err.Error()), slog.Int("attempt", attempt))
		switch {
		case errors.Is(err, apperrors.ErrSyncInProgress):
			logger.Debug("Sync already running, skipping")
			return
		case errors.Is(err, apperrors.ErrAuthentication), errors.Is(err, apperrors.ErrUnauthorized):
			s.mu.Lock()
			s.halted = true
			s.mu.Unlock()
			logger.Error("Sync halted until triggered manually")
			return
		case !apperrors.IsRetryable(err):
			logger.Error("Sync failed")
			return
		case attempt >= s.cfg.MaxRetries:
			logger.Error("Sync failed, will retry on the next run")
			return
		}

		delay := time.Duration(attempt+1) * s.cfg.RetryBackoff
		logger.Warn("Sync failed, retrying", slog.Duration("delay", delay))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Shutdown stops the loop, waiting at most timeout for a running cycle.
func (s *SyncScheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cfg.Logger.Info("Sync scheduler stopped")
	case <-time.After(timeout):
		s.cfg.Logger.Warn("Timed out waiting for sync scheduler to stop")
	}
}
