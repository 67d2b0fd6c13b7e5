package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const waitFor = 2 * time.Second

// scriptedRunner returns the scripted errors in order, then succeeds.
type scriptedRunner struct {
	mu     sync.Mutex
	script []error
	always error
	// result is the status of a successful run, idle when empty.
	result domain.SyncStatus
	calls  int
}

func (r *scriptedRunner) Sync(_ context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if opts.Strategy != domain.StrategyMerge {
		return nil, fmt.Errorf("unexpected strategy %q", opts.Strategy)
	}
	if len(r.script) > 0 {
		err := r.script[0]
		r.script = r.script[1:]
		return nil, err
	}
	if r.always != nil {
		return nil, r.always
	}
	status := r.result
	if status == "" {
		status = domain.SyncIdle
	}
	return &domain.SyncResult{Status: status, Strategy: opts.Strategy}, nil
}

func (r *scriptedRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func retryable(op string) error {
	return &apperrors.SyncError{Op: op, Retryable: true, Err: context.DeadlineExceeded}
}

func newSyncScheduler(t *testing.T, runner scheduler.SyncRunner, maxRetries int) *scheduler.SyncScheduler {
	t.Helper()
	s, err := scheduler.NewSyncScheduler(runner, scheduler.SyncSchedulerConfig{
		Interval:     time.Hour,
		MaxRetries:   maxRetries,
		RetryBackoff: time.Millisecond,
		Logger:       quietLogger,
	})
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { s.Shutdown(time.Second) })
	return s
}

func TestSyncScheduler_RetriesRetryableFailures(t *testing.T) {
	runner := &scriptedRunner{script: []error{retryable("download"), retryable("upload")}}
	s := newSyncScheduler(t, runner, 3)

	s.TriggerNow()
	require.Eventually(t, func() bool { return runner.Calls() == 3 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, runner.Calls(), "a success ends the retry loop")
}

func TestSyncScheduler_RetriesAreBounded(t *testing.T) {
	runner := &scriptedRunner{always: retryable("find")}
	s := newSyncScheduler(t, runner, 2)

	s.TriggerNow()
	require.Eventually(t, func() bool { return runner.Calls() == 3 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, runner.Calls())
	assert.False(t, s.Halted())
}

func TestSyncScheduler_ConflictedRunIsNotRetried(t *testing.T) {
	runner := &scriptedRunner{result: domain.SyncConflicted}
	s := newSyncScheduler(t, runner, 3)

	s.TriggerNow()
	require.Eventually(t, func() bool { return runner.Calls() == 1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, runner.Calls(), "waiting for resolution is not a failure")
	assert.False(t, s.Halted())
}

func TestSyncScheduler_NonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		halted bool
	}{
		{"authentication", &apperrors.AuthenticationError{Reason: "tag mismatch"}, true},
		{"unauthorized remote", &apperrors.SyncError{Op: "find", Err: apperrors.ErrUnauthorized}, true},
		{"in progress", apperrors.ErrSyncInProgress, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{always: tt.err}
			s := newSyncScheduler(t, runner, 5)

			s.TriggerNow()
			require.Eventually(t, func() bool { return runner.Calls() == 1 }, waitFor, time.Millisecond)
			time.Sleep(20 * time.Millisecond)
			assert.Equal(t, 1, runner.Calls())
			assert.Equal(t, tt.halted, s.Halted())
		})
	}
}

func TestSyncScheduler_HaltSkipsTicksUntilTriggered(t *testing.T) {
	runner := &scriptedRunner{script: []error{&apperrors.AuthenticationError{Reason: "wrong secret"}}}
	s, err := scheduler.NewSyncScheduler(runner, scheduler.SyncSchedulerConfig{
		Interval:     5 * time.Millisecond,
		RunOnStartup: true,
		Logger:       quietLogger,
	})
	require.NoError(t, err)
	s.Start()
	defer s.Shutdown(time.Second)

	require.Eventually(t, s.Halted, waitFor, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, runner.Calls(), "ticks are skipped while halted")

	s.TriggerNow()
	require.Eventually(t, func() bool { return runner.Calls() >= 3 }, waitFor, time.Millisecond, "ticks resume after a manual trigger")
	assert.False(t, s.Halted())
}

func TestNewSyncScheduler_Validation(t *testing.T) {
	_, err := scheduler.NewSyncScheduler(&scriptedRunner{}, scheduler.SyncSchedulerConfig{})
	assert.Error(t, err)
	_, err = scheduler.NewSyncScheduler(nil, scheduler.SyncSchedulerConfig{Interval: time.Minute})
	assert.Error(t, err)
}

// fakeProcessor records transitions and fails according to failures.
type fakeProcessor struct {
	mu       sync.Mutex
	calls    map[string]int
	done     map[string]domain.TransactionStatus
	failures map[string]error
	// failTimes bounds failures per id; zero means forever.
	failTimes map[string]int
	pending   []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		calls:     make(map[string]int),
		done:      make(map[string]domain.TransactionStatus),
		failures:  make(map[string]error),
		failTimes: make(map[string]int),
	}
}

func (p *fakeProcessor) TransitionStatus(_ context.Context, id string, status domain.TransactionStatus) (*domain.Transaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[id]++
	if err, ok := p.failures[id]; ok {
		if limit := p.failTimes[id]; limit == 0 || p.calls[id] <= limit {
			return nil, err
		}
	}
	p.done[id] = status
	return &domain.Transaction{TransactionID: id, Status: status}, nil
}

func (p *fakeProcessor) ListTransactions(_ context.Context, params dto.ListTransactionsParams) (*dto.ListTransactionsResponse, error) {
	if params.Status != domain.TransactionPending {
		return nil, fmt.Errorf("unexpected status filter %q", params.Status)
	}
	start := 0
	if params.NextToken != nil {
		_, _ = fmt.Sscanf(*params.NextToken, "%d", &start)
	}
	end := min(start+1, len(p.pending))
	resp := &dto.ListTransactionsResponse{}
	for _, id := range p.pending[start:end] {
		resp.Transactions = append(resp.Transactions, dto.TransactionResponse{TransactionID: id})
	}
	if end < len(p.pending) {
		next := fmt.Sprint(end)
		resp.NextToken = &next
	}
	return resp, nil
}

func (p *fakeProcessor) Calls(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

func (p *fakeProcessor) Done(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.done[id]
	return ok
}

func startWorker(t *testing.T, w *scheduler.StatusWorker, p *fakeProcessor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, p))
	t.Cleanup(func() {
		_ = w.Stop(context.Background())
		cancel()
	})
}

func TestStatusWorker_CompletesQueuedJobs(t *testing.T) {
	w := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{WorkerCount: 3, Logger: quietLogger})
	p := newFakeProcessor()
	ctx := context.Background()

	require.NoError(t, w.EnqueueStatusJob(ctx, "t1", domain.TransactionCompleted), "jobs are buffered before Start")
	startWorker(t, w, p)
	for _, id := range []string{"t2", "t3", "t4"} {
		require.NoError(t, w.EnqueueStatusJob(ctx, id, domain.TransactionCompleted))
	}

	require.Eventually(t, func() bool {
		return p.Done("t1") && p.Done("t2") && p.Done("t3") && p.Done("t4")
	}, waitFor, time.Millisecond)
}

func TestStatusWorker_Retries(t *testing.T) {
	w := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{MaxRetries: 3, RetryDelay: time.Millisecond, Logger: quietLogger})
	p := newFakeProcessor()
	p.failures["flaky"] = errors.New("store busy")
	p.failTimes["flaky"] = 2
	p.failures["broken"] = errors.New("store down")
	startWorker(t, w, p)

	require.NoError(t, w.EnqueueStatusJob(context.Background(), "flaky", domain.TransactionCompleted))
	require.NoError(t, w.EnqueueStatusJob(context.Background(), "broken", domain.TransactionCompleted))

	require.Eventually(t, func() bool { return p.Done("flaky") }, waitFor, time.Millisecond)
	assert.Equal(t, 3, p.Calls("flaky"))

	require.Eventually(t, func() bool { return p.Calls("broken") == 4 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, p.Calls("broken"), "one attempt plus three retries")
	assert.False(t, p.Done("broken"))
}

func TestStatusWorker_DropsClientErrors(t *testing.T) {
	w := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{MaxRetries: 3, RetryDelay: time.Millisecond, Logger: quietLogger})
	p := newFakeProcessor()
	p.failures["gone"] = apperrors.ErrNotFound
	p.failures["cancelled"] = apperrors.NewValidationError("status", "cannot move from cancelled to completed")
	startWorker(t, w, p)

	require.NoError(t, w.EnqueueStatusJob(context.Background(), "gone", domain.TransactionCompleted))
	require.NoError(t, w.EnqueueStatusJob(context.Background(), "cancelled", domain.TransactionCompleted))

	require.Eventually(t, func() bool { return p.Calls("gone") == 1 && p.Calls("cancelled") == 1 }, waitFor, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, p.Calls("gone"))
	assert.Equal(t, 1, p.Calls("cancelled"))
}

func TestStatusWorker_RecoversPendingOnStart(t *testing.T) {
	w := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{Logger: quietLogger})
	p := newFakeProcessor()
	p.pending = []string{"p1", "p2", "p3"}
	startWorker(t, w, p)

	require.Eventually(t, func() bool {
		return p.Done("p1") && p.Done("p2") && p.Done("p3")
	}, waitFor, time.Millisecond)
}

func TestStatusWorker_EnqueueNeverBlocks(t *testing.T) {
	w := scheduler.NewStatusWorker(scheduler.StatusWorkerConfig{QueueSize: 1, Logger: quietLogger})
	ctx := context.Background()

	require.NoError(t, w.EnqueueStatusJob(ctx, "t1", domain.TransactionCompleted))
	assert.ErrorIs(t, w.EnqueueStatusJob(ctx, "t2", domain.TransactionCompleted), scheduler.ErrQueueFull)

	require.NoError(t, w.Stop(ctx))
	assert.ErrorIs(t, w.EnqueueStatusJob(ctx, "t3", domain.TransactionCompleted), scheduler.ErrQueueClosed)
	assert.ErrorIs(t, w.Start(ctx, newFakeProcessor()), scheduler.ErrQueueClosed)
}
