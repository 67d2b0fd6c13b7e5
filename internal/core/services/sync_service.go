package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
)

const (
	DefaultSyncObjectName    = "ledger-backup.json"
	defaultRemoteTimeout     = 30 * time.Second
	errLocalChangedDuringRun = "local ledger changed while syncing"
)

// syncService is the sync and conflict resolution engine.
type syncService struct {
	BaseService
	uow        portsrepo.UnitOfWork
	gate       *LedgerGate
	cache      *CategoryCache
	remote     portsrepo.RemoteBlobStore
	encryption portssvc.EncryptionSvc

	objectName    string
	remoteTimeout time.Duration
	autoComplete  bool

	transactions portssvc.TransactionSvcFacade
	accounts     portssvc.AccountSvcFacade
	categories   portssvc.CategorySvcFacade

	running  sync.Mutex
	statusMu sync.Mutex
	status   domain.SyncStatus
}

// SyncServiceOption is a functional option for configuring the sync service
type SyncServiceOption func(*syncService)

// WithSyncObjectName names the remote blob.
func WithSyncObjectName(name string) SyncServiceOption {
	return func(s *syncService) {
		if name != "" {
			s.objectName = name
		}
	}
}

// WithRemoteTimeout bounds every remote round trip.
func WithRemoteTimeout(d time.Duration) SyncServiceOption {
	return func(s *syncService) {
		if d > 0 {
			s.remoteTimeout = d
		}
	}
}

// WithAutoCompleteMerge re-runs the merge once the last conflict is resolved.
func WithAutoCompleteMerge(enabled bool) SyncServiceOption {
	return func(s *syncService) {
		s.autoComplete = enabled
	}
}

// WithSyncCategoryCache lets the sync engine invalidate cached categories after a write-back.
func WithSyncCategoryCache(cache *CategoryCache) SyncServiceOption {
	return func(s *syncService) {
		s.cache = cache
	}
}

// WithConflictAppliers routes cloud-side resolutions through the engines so
// they are validated and keep balances consistent.
func WithConflictAppliers(txns portssvc.TransactionSvcFacade, accounts portssvc.AccountSvcFacade, categories portssvc.CategorySvcFacade) SyncServiceOption {
	return func(s *syncService) {
		s.transactions = txns
		s.accounts = accounts
		s.categories = categories
	}
}

// WithSyncClock replaces the wall clock.
func WithSyncClock(clock func() time.Time) SyncServiceOption {
	return func(s *syncService) {
		s.clock = clock
	}
}

// NewSyncService creates the sync engine.
func NewSyncService(uow portsrepo.UnitOfWork, gate *LedgerGate, remote portsrepo.RemoteBlobStore, encryption portssvc.EncryptionSvc, options ...SyncServiceOption) portssvc.SyncSvcFacade {
	svc := &syncService{
		uow:           uow,
		gate:          gate,
		remote:        remote,
		encryption:    encryption,
		objectName:    DefaultSyncObjectName,
		remoteTimeout: defaultRemoteTimeout,
		status:        domain.SyncIdle,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.SyncSvcFacade = (*syncService)(nil)

func (s *syncService) Sync(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	if opts.Strategy == "" {
		opts.Strategy = domain.StrategyMerge
	}
	if !opts.Strategy.IsValid() {
		return nil, apperrors.NewValidationError("strategy", "unknown sync strategy %q", opts.Strategy)
	}
	if !s.running.TryLock() {
		return nil, apperrors.ErrSyncInProgress
	}
	defer s.running.Unlock()
	return s.runCycle(ctx, opts)
}

// runCycle must be called with s.running held.
func (s *syncService) runCycle(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	defer s.setStatus(domain.SyncIdle)
	logger := s.GetLogger(ctx).With(slog.String("strategy", string(opts.Strategy)))

	result, err := s.cycle(ctx, opts)
	if err != nil {
		logger.Error("Sync failed",
			slog.String("error", err.Error()),
			slog.Bool("retryable", apperrors.IsRetryable(err)))
		s.recordFailure(ctx, err)
		return nil, err
	}
	logger.Info("Sync finished",
		slog.String("sync_state", string(result.Status)),
		slog.Bool("uploaded", result.Uploaded),
		slog.Int("conflicts", len(result.Conflicts)),
		slog.Int("added", result.Merge.Added),
		slog.Int("updated", result.Merge.Updated))
	return result, nil
}

func (s *syncService) cycle(ctx context.Context, opts domain.SyncOptions) (*domain.SyncResult, error) {
	s.setStatus(domain.SyncChecking)
	result := &domain.SyncResult{Strategy: opts.Strategy}

	state, err := s.uow.Repositories().SyncStateRepo.GetSyncState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	if state.DeviceID == "" {
		state.DeviceID = newID()
	}

	handle, err := s.findRemote(ctx)
	if err != nil {
		return nil, err
	}

	local, fingerprint, err := s.quiescedSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	if handle == nil || opts.Strategy == domain.StrategyOverwriteCloud {
		s.setStatus(domain.SyncSyncing)
		newHandle, err := s.upload(ctx, local, handle)
		if err != nil {
			return nil, err
		}
		result.Uploaded = true
		return s.finish(ctx, result, state, newHandle)
	}

	remote, err := s.downloadSnapshot(ctx, *handle)
	if err != nil {
		return nil, err
	}
	result.Downloaded = true
	remoteFingerprint, err := remote.Fingerprint()
	if err != nil {
		return nil, err
	}

	switch opts.Strategy {
	case domain.StrategyOverwriteLocal:
		s.setStatus(domain.SyncSyncing)
		replacement := *remote
		deriveCaches(&replacement)
		if err := s.writeBack(ctx, replacement, fingerprint, state); err != nil {
			return nil, err
		}
		result.Merge.Updated = len(replacement.Transactions) + len(replacement.Accounts) + len(replacement.Categories) + len(replacement.Budgets)
		return s.finish(ctx, result, state, handle)
	}

	if remoteFingerprint == fingerprint {
		return s.finish(ctx, result, state, handle)
	}

	plan, err := planMerge(local, *remote, mergeInput{decisions: state.Resolutions, force: opts.Force, now: s.Now()})
	if err != nil {
		return nil, err
	}
	result.Merge = plan.stats

	if len(plan.conflicts) > 0 {
		s.setStatus(domain.SyncConflicted)
		if err := s.replaceConflicts(ctx, plan.conflicts); err != nil {
			return nil, err
		}
		result.Status = domain.SyncConflicted
		result.Conflicts = plan.conflicts
		return result, nil
	}

	s.setStatus(domain.SyncSyncing)
	state.Resolutions = nil
	if err := s.writeBack(ctx, plan.union, fingerprint, state); err != nil {
		return nil, err
	}

	unionFingerprint, err := plan.union.Fingerprint()
	if err != nil {
		return nil, err
	}
	if unionFingerprint != remoteFingerprint {
		newHandle, err := s.upload(ctx, plan.union, handle)
		if err != nil {
			return nil, err
		}
		handle = newHandle
		result.Uploaded = true
	}
	return s.finish(ctx, result, state, handle)
}

// finish records a successful cycle.
func (s *syncService) finish(ctx context.Context, result *domain.SyncResult, state *domain.SyncState, handle *domain.RemoteHandle) (*domain.SyncResult, error) {
	now := s.Now()
	state.LastSyncAt = &now
	state.LastError = ""
	state.RemoteHandle = handle
	if err := s.uow.Repositories().SyncStateRepo.SaveSyncState(context.WithoutCancel(ctx), *state); err != nil {
		return nil, fmt.Errorf("failed to save sync state: %w", err)
	}
	if result.Status == "" {
		result.Status = domain.SyncUpToDate
	}
	result.LastSyncAt = &now
	return result, nil
}

func (s *syncService) recordFailure(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	repo := s.uow.Repositories().SyncStateRepo
	state, err := repo.GetSyncState(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to load sync state for failure bookkeeping")
		return
	}
	now := s.Now()
	state.LastFailureAt = &now
	state.LastError = cause.Error()
	if err := repo.SaveSyncState(ctx, *state); err != nil {
		s.LogError(ctx, err, "Failed to record sync failure")
	}
}

// quiescedSnapshot reads the ledger with no mutation in flight.
func (s *syncService) quiescedSnapshot(ctx context.Context) (domain.Snapshot, string, error) {
	release, err := s.gate.Quiesce(ctx)
	if err != nil {
		return domain.Snapshot{}, "", &apperrors.SyncError{Op: "snapshot", Retryable: false, Err: err}
	}
	defer release()

	snapshot, err := readSnapshot(ctx, s.uow.Repositories())
	if err != nil {
		return domain.Snapshot{}, "", err
	}
	fingerprint, err := snapshot.Fingerprint()
	return snapshot, fingerprint, err
}

// writeBack replaces the four ledger kinds with target in one store
// transaction. It is not cancellable: once started it runs to completion.
// If the ledger no longer matches expectedFingerprint nothing is written.
func (s *syncService) writeBack(ctx context.Context, target domain.Snapshot, expectedFingerprint string, state *domain.SyncState) error {
	ctx = context.WithoutCancel(ctx)
	release, err := s.gate.Quiesce(ctx)
	if err != nil {
		return err
	}
	defer release()

	var replaced []domain.Account
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		current, err := readSnapshot(ctx, repos)
		if err != nil {
			return err
		}
		replaced = current.Accounts
		fingerprint, err := current.Fingerprint()
		if err != nil {
			return err
		}
		if fingerprint != expectedFingerprint {
			return &apperrors.SyncError{Op: "merge", Retryable: true, Err: fmt.Errorf("%w: %s", apperrors.ErrConflict, errLocalChangedDuringRun)}
		}
		if err := replaceSnapshot(ctx, repos, current, target); err != nil {
			return err
		}
		if err := clearConflicts(ctx, repos); err != nil {
			return err
		}
		return repos.SyncStateRepo.SaveSyncState(ctx, *state)
	})
	if err != nil {
		return err
	}

	// Every balance was just re-derived from the log, so fences no longer apply.
	s.cache.Purge()
	for _, a := range append(replaced, target.Accounts...) {
		s.gate.Unfence(a.AccountID)
	}
	return nil
}

func (s *syncService) replaceConflicts(ctx context.Context, conflicts []domain.Conflict) error {
	return s.uow.WithinTransaction(context.WithoutCancel(ctx), func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		if err := clearConflicts(ctx, repos); err != nil {
			return err
		}
		for _, c := range conflicts {
			if err := repos.ConflictRepo.SaveConflict(ctx, c); err != nil {
				return fmt.Errorf("failed to save conflict: %w", err)
			}
		}
		return nil
	})
}

func (s *syncService) Status(ctx context.Context) (*dto.SyncStatusResponse, error) {
	repos := s.uow.Repositories()
	state, err := repos.SyncStateRepo.GetSyncState(ctx)
	if err != nil {
		return nil, err
	}
	conflicts, err := repos.ConflictRepo.ListConflicts(ctx)
	if err != nil {
		return nil, err
	}

	status := s.currentStatus()
	if status == domain.SyncIdle && len(conflicts) > 0 {
		status = domain.SyncConflicted
	}
	resp := &dto.SyncStatusResponse{
		Status:           status,
		DeviceID:         state.DeviceID,
		LastSyncAt:       state.LastSyncAt,
		LastFailureAt:    state.LastFailureAt,
		LastError:        state.LastError,
		PendingConflicts: len(conflicts),
	}
	if state.RemoteHandle != nil {
		resp.RemoteRevision = state.RemoteHandle.Revision
	}
	return resp, nil
}

func (s *syncService) ListConflicts(ctx context.Context) ([]domain.Conflict, error) {
	conflicts, err := s.uow.Repositories().ConflictRepo.ListConflicts(ctx)
	if err != nil {
		s.LogError(ctx, err, "Failed to list conflicts")
		return nil, err
	}
	if conflicts == nil {
		return []domain.Conflict{}, nil
	}
	return conflicts, nil
}

// ResolveConflict applies the chosen side, remembers the decision for the
// next merge and removes the conflict. Cloud data that the engines reject
// locally (for example because it references a category that only exists
// remotely) is left to the merge, which applies the recorded decision.
func (s *syncService) ResolveConflict(ctx context.Context, conflictID string, side domain.ResolutionSide) (*dto.ResolveConflictResponse, error) {
	if !side.IsValid() {
		return nil, apperrors.NewValidationError("resolution", "must be local or cloud")
	}
	if !s.running.TryLock() {
		return nil, apperrors.ErrSyncInProgress
	}
	defer s.running.Unlock()

	conflict, err := s.uow.Repositories().ConflictRepo.FindConflictByID(ctx, conflictID)
	if err != nil {
		return nil, err
	}

	if side == domain.ResolveCloud {
		if err := s.applyCloud(ctx, *conflict); err != nil {
			if !isClientError(err) {
				s.LogError(ctx, err, "Failed to apply cloud side of conflict", slog.String("conflict_id", conflictID))
				return nil, err
			}
			s.LogWarn(ctx, "Cloud side deferred to next merge",
				slog.String("conflict_id", conflictID),
				slog.String("error", err.Error()))
		}
	}

	release, err := s.gate.LockAccounts(ctx)
	if err != nil {
		return nil, err
	}
	remaining := 0
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context, repos portsrepo.RepositoryProvider) error {
		state, err := repos.SyncStateRepo.GetSyncState(ctx)
		if err != nil {
			return err
		}
		if state.Resolutions == nil {
			state.Resolutions = make(map[string]domain.ResolutionSide)
		}
		state.Resolutions[conflict.DecisionKey()] = side
		if err := repos.SyncStateRepo.SaveSyncState(ctx, *state); err != nil {
			return err
		}
		if err := repos.ConflictRepo.DeleteConflict(ctx, conflictID); err != nil {
			return err
		}
		left, err := repos.ConflictRepo.ListConflicts(ctx)
		remaining = len(left)
		return err
	})
	release()
	if err != nil {
		s.LogError(ctx, err, "Failed to record conflict resolution", slog.String("conflict_id", conflictID))
		return nil, err
	}

	s.LogInfo(ctx, "Conflict resolved",
		slog.String("conflict_id", conflictID),
		slog.String("resolution", string(side)),
		slog.Int("remaining", remaining))

	resp := &dto.ResolveConflictResponse{ConflictID: conflictID, Resolution: string(side), RemainingConflicts: remaining}
	if remaining == 0 && s.autoComplete {
		result, err := s.runCycle(ctx, domain.SyncOptions{Strategy: domain.StrategyMerge})
		if err != nil {
			// The resolution itself is recorded; the scheduler retries the merge.
			s.LogWarn(ctx, "Merge after final resolution failed", slog.String("error", err.Error()))
		} else {
			syncResp := dto.ToSyncResponse(result)
			resp.Sync = &syncResp
			resp.RemainingConflicts = len(result.Conflicts)
		}
	}
	return resp, nil
}

func (s *syncService) applyCloud(ctx context.Context, c domain.Conflict) error {
	switch c.Type {
	case domain.ConflictTransaction:
		if s.transactions == nil {
			return nil
		}
		var cloud domain.Transaction
		if err := json.Unmarshal(c.CloudData, &cloud); err != nil {
			return fmt.Errorf("failed to decode cloud transaction: %w", err)
		}
		updated, err := s.transactions.UpdateTransaction(ctx, cloud.TransactionID, dto.UpdateTransactionRequest{
			Amount:       &cloud.Amount,
			Type:         &cloud.Type,
			CategoryID:   &cloud.CategoryID,
			AccountID:    &cloud.AccountID,
			Date:         &cloud.Date,
			Description:  &cloud.Description,
			CurrencyCode: &cloud.CurrencyCode,
		})
		if err != nil {
			return err
		}
		if updated.Status != cloud.Status {
			_, err = s.transactions.TransitionStatus(ctx, cloud.TransactionID, cloud.Status)
		}
		return err

	case domain.ConflictAccount:
		if s.accounts == nil {
			return nil
		}
		var cloud domain.Account
		if err := json.Unmarshal(c.CloudData, &cloud); err != nil {
			return fmt.Errorf("failed to decode cloud account: %w", err)
		}
		if _, err := s.accounts.UpdateAccount(ctx, cloud.AccountID, dto.UpdateAccountRequest{
			Name:         &cloud.Name,
			AccountType:  &cloud.AccountType,
			CurrencyCode: &cloud.CurrencyCode,
			IsActive:     &cloud.IsActive,
		}); err != nil {
			return err
		}
		_, err := s.accounts.AdjustOpeningBalance(ctx, cloud.AccountID, cloud.OpeningBalance)
		return err

	case domain.ConflictCategory:
		if s.categories == nil {
			return nil
		}
		var cloud domain.Category
		if err := json.Unmarshal(c.CloudData, &cloud); err != nil {
			return fmt.Errorf("failed to decode cloud category: %w", err)
		}
		_, err := s.categories.UpdateCategory(ctx, cloud.CategoryID, dto.UpdateCategoryRequest{Name: &cloud.Name, Color: &cloud.Color})
		if err == nil {
			s.cache.Remove(cloud.CategoryID)
		}
		return err
	}
	return apperrors.NewValidationError("type", "unknown conflict type %q", c.Type)
}

func (s *syncService) findRemote(ctx context.Context) (*domain.RemoteHandle, error) {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	handle, err := s.remote.Find(rctx, s.objectName)
	return handle, remoteError("find", err)
}

func (s *syncService) downloadSnapshot(ctx context.Context, handle domain.RemoteHandle) (*domain.Snapshot, error) {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	data, err := s.remote.Download(rctx, handle)
	if err != nil {
		return nil, remoteError("download", err)
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	return s.encryption.DecryptSnapshot(ctx, *env)
}

func (s *syncService) upload(ctx context.Context, snapshot domain.Snapshot, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	env, err := s.encryption.EncryptSnapshot(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	data, err := encodeEnvelope(env)
	if err != nil {
		return nil, err
	}
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()
	handle, err := s.remote.Upload(rctx, s.objectName, data, existing)
	return handle, remoteError("upload", err)
}

// remoteError classifies a remote store failure by whether retrying can help.
func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	retryable := true
	switch {
	case errors.Is(err, context.Canceled):
		retryable = false
	case errors.Is(err, apperrors.ErrUnauthorized):
		retryable = false
	}
	return &apperrors.SyncError{Op: op, Retryable: retryable, Err: err}
}

func (s *syncService) setStatus(status domain.SyncStatus) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status = status
}

func (s *syncService) currentStatus() domain.SyncStatus {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.status
}

func readSnapshot(ctx context.Context, repos portsrepo.RepositoryProvider) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	var err error
	if snapshot.Transactions, err = repos.TransactionRepo.ListTransactions(ctx, domain.TransactionFilter{}); err != nil {
		return snapshot, fmt.Errorf("failed to read transactions: %w", err)
	}
	if snapshot.Accounts, err = repos.AccountRepo.ListAccounts(ctx); err != nil {
		return snapshot, fmt.Errorf("failed to read accounts: %w", err)
	}
	if snapshot.Categories, err = repos.CategoryRepo.ListCategories(ctx); err != nil {
		return snapshot, fmt.Errorf("failed to read categories: %w", err)
	}
	if snapshot.Budgets, err = repos.BudgetRepo.ListBudgets(ctx); err != nil {
		return snapshot, fmt.Errorf("failed to read budgets: %w", err)
	}
	snapshot.Normalize()
	return snapshot, nil
}

// replaceSnapshot makes the store hold exactly target for the four ledger kinds.
func replaceSnapshot(ctx context.Context, repos portsrepo.RepositoryProvider, current, target domain.Snapshot) error {
	keep := make(map[string]bool)
	for _, t := range target.Transactions {
		keep["t|"+t.TransactionID] = true
	}
	for _, a := range target.Accounts {
		keep["a|"+a.AccountID] = true
	}
	for _, c := range target.Categories {
		keep["c|"+c.CategoryID] = true
	}
	for _, b := range target.Budgets {
		keep["b|"+b.BudgetID] = true
	}

	for _, t := range current.Transactions {
		if !keep["t|"+t.TransactionID] {
			if err := repos.TransactionRepo.DeleteTransaction(ctx, t.TransactionID); err != nil {
				return err
			}
		}
	}
	for _, b := range current.Budgets {
		if !keep["b|"+b.BudgetID] {
			if err := repos.BudgetRepo.DeleteBudget(ctx, b.BudgetID); err != nil {
				return err
			}
		}
	}
	for _, a := range current.Accounts {
		if !keep["a|"+a.AccountID] {
			if err := repos.AccountRepo.DeleteAccount(ctx, a.AccountID); err != nil {
				return err
			}
		}
	}
	for _, c := range current.Categories {
		if !keep["c|"+c.CategoryID] {
			if err := repos.CategoryRepo.DeleteCategory(ctx, c.CategoryID); err != nil {
				return err
			}
		}
	}

	for _, c := range target.Categories {
		if err := repos.CategoryRepo.SaveCategory(ctx, c); err != nil {
			return err
		}
	}
	for _, a := range target.Accounts {
		if err := repos.AccountRepo.SaveAccount(ctx, a); err != nil {
			return err
		}
	}
	for _, t := range target.Transactions {
		if err := repos.TransactionRepo.SaveTransaction(ctx, t); err != nil {
			return err
		}
	}
	for _, b := range target.Budgets {
		if err := repos.BudgetRepo.SaveBudget(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

func clearConflicts(ctx context.Context, repos portsrepo.RepositoryProvider) error {
	existing, err := repos.ConflictRepo.ListConflicts(ctx)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if err := repos.ConflictRepo.DeleteConflict(ctx, c.ConflictID); err != nil {
			return err
		}
	}
	return nil
}
