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
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
)

// ErrQueueFull is returned when the status queue cannot take another job
// without blocking the caller.
var ErrQueueFull = errors.New("status queue is full")

// ErrQueueClosed is returned after Stop.
var ErrQueueClosed = errors.New("status queue is closed")

// StatusJob asks the worker to move one transaction to Target.
type StatusJob struct {
	TransactionID string
	Target        domain.TransactionStatus
	Attempt       int
}

// StatusProcessor is the part of the transaction service the worker drives.
type StatusProcessor interface {
	TransitionStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error)
}

// StatusWorkerConfig holds configuration for the status worker.
type StatusWorkerConfig struct {
	WorkerCount int
	QueueSize   int
	MaxRetries  int
	// RetryDelay is multiplied by the attempt number.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// StatusWorker completes pending transactions in the background. Jobs are
// delivered at least once; the transition itself is idempotent, so a repeated
// delivery is harmless.
type StatusWorker struct {
	cfg       StatusWorkerConfig
	jobs      chan StatusJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	retries   sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
	started   bool
}

// NewStatusWorker creates a stopped worker. Jobs enqueued before Start are
// buffered.
func NewStatusWorker(cfg StatusWorkerConfig) *StatusWorker {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &StatusWorker{
		cfg:       cfg,
		jobs:      make(chan StatusJob, cfg.QueueSize),
		closeChan: make(chan struct{}),
	}
}

var _ portssvc.StatusJobQueue = (*StatusWorker)(nil)

// EnqueueStatusJob never blocks: callers hold account locks that the worker
// needs, so a full queue is reported instead of waited on.
func (w *StatusWorker) EnqueueStatusJob(ctx context.Context, transactionID string, target domain.TransactionStatus) error {
	return w.offer(StatusJob{TransactionID: transactionID, Target: target})
}

func (w *StatusWorker) offer(job StatusJob) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrQueueClosed
	}
	select {
	case w.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers and re-enqueues every transaction still pending
// from a previous run.
func (w *StatusWorker) Start(ctx context.Context, processor StatusProcessor) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrQueueClosed
	}
	if w.started {
		w.mu.Unlock()
		return errors.New("status worker already started")
	}
	w.started = true
	w.mu.Unlock()

	for i := 0; i < w.cfg.WorkerCount; i++ {
		w.wg.Add(1)
		go w.worker(ctx, processor)
	}
	w.cfg.Logger.Info("Status worker started", slog.Int("workers", w.cfg.WorkerCount))

	return w.recoverPending(ctx, processor)
}

func (w *StatusWorker) recoverPending(ctx context.Context, processor StatusProcessor) error {
	params := dto.ListTransactionsParams{Status: domain.TransactionPending, Limit: 500}
	recovered := 0
	for {
		page, err := processor.ListTransactions(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to list pending transactions: %w", err)
		}
		for _, txn := range page.Transactions {
			if err := w.offer(StatusJob{TransactionID: txn.TransactionID, Target: domain.TransactionCompleted}); err != nil {
				w.cfg.Logger.Warn("Pending transaction left for a later run",
					slog.String("transaction_id", txn.TransactionID), slog.String("error", err.Error()))
				continue
			}
			recovered++
		}
		if page.NextToken == nil {
			break
		}
		params.NextToken = page.NextToken
	}
	if recovered > 0 {
		w.cfg.Logger.Info("Recovered pending transactions", slog.Int("count", recovered))
	}
	return nil
}

func (w *StatusWorker) worker(ctx context.Context, processor StatusProcessor) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeChan:
			return
		case job := <-w.jobs:
			w.process(ctx, processor, job)
		}
	}
}

func (w *StatusWorker) process(ctx context.Context, processor StatusProcessor, job StatusJob) {
	logger := w.cfg.Logger.With(
		slog.String("transaction_id", job.TransactionID),
		slog.String("target", string(job.Target)),
		slog.Int("attempt", job.Attempt))

	_, err := processor.TransitionStatus(ctx, job.TransactionID, job.Target)
	switch {
	case err == nil:
		logger.Debug("Status job done")
		return
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrValidation):
		// Deleted or already moved elsewhere by the user.
		logger.Info("Status job dropped", slog.String("error", err.Error()))
		return
	case job.Attempt >= w.cfg.MaxRetries:
		logger.Error("Status job failed, giving up", slog.String("error", err.Error()))
		return
	}

	job.Attempt++
	delay := time.Duration(job.Attempt) * w.cfg.RetryDelay
	logger.Warn("Status job failed, retrying", slog.String("error", err.Error()), slog.Duration("delay", delay))
	w.retries.Add(1)
	go func() {
		defer w.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-w.closeChan:
			return
		case <-ctx.Done():
			return
		}
		w.requeue(ctx, job)
	}()
}

// requeue waits for room, unlike EnqueueStatusJob, since retries run outside
// any lock.
func (w *StatusWorker) requeue(ctx context.Context, job StatusJob) {
	select {
	case w.jobs <- job:
	case <-w.closeChan:
	case <-ctx.Done():
	}
}

// Stop stops the workers and waits for in-flight jobs to finish.
func (w *StatusWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeChan)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		w.retries.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cfg.Logger.Info("Status worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
