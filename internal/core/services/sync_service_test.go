package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/adapters/blobstore/local"
	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/core/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const testIterations = 10_000

type device struct {
	*ledgerFixture
	sync portssvc.SyncSvcFacade
}

func newDevice(t *testing.T, remote portsrepo.RemoteBlobStore, secret string) *device {
	t.Helper()
	f := newLedgerFixture(t)
	enc, err := services.NewEncryptionService(secret, testIterations)
	require.NoError(t, err)
	svc := services.NewSyncService(f.uow, f.gate, remote, enc,
		services.WithAutoCompleteMerge(true),
		services.WithSyncCategoryCache(f.cache),
		services.WithConflictAppliers(f.transactions, f.accounts, f.categories),
		services.WithRemoteTimeout(5*time.Second),
	)
	return &device{ledgerFixture: f, sync: svc}
}

func (d *device) merge(t *testing.T) *domain.SyncResult {
	t.Helper()
	res, err := d.sync.Sync(context.Background(), domain.SyncOptions{Strategy: domain.StrategyMerge})
	require.NoError(t, err)
	return res
}

func (d *device) transactionsByDescription(t *testing.T) map[string]dto.TransactionResponse {
	t.Helper()
	list, err := d.transactions.ListTransactions(context.Background(), dto.ListTransactionsParams{Limit: 500})
	require.NoError(t, err)
	out := make(map[string]dto.TransactionResponse, len(list.Transactions))
	for _, txn := range list.Transactions {
		out[txn.Description] = txn
	}
	return out
}

type SyncServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	remote *local.Store
	a, b   *device
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	remote, err := local.NewStore(s.T().TempDir())
	s.Require().NoError(err)
	s.remote = remote
	s.a = newDevice(s.T(), remote, "correct horse battery staple")
	s.b = newDevice(s.T(), remote, "correct horse battery staple")
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) TestFirstSyncUploadsThenUpToDate() {
	acc := s.a.account(s.T(), "Checking", "1000")
	s.a.expense(s.T(), acc.AccountID, "150", "2024-01-10")

	first := s.a.merge(s.T())
	s.Equal(domain.SyncUpToDate, first.Status)
	s.True(first.Uploaded)
	s.False(first.Downloaded)
	s.NotNil(first.LastSyncAt)

	second := s.a.merge(s.T())
	s.Equal(domain.SyncUpToDate, second.Status)
	s.False(second.Uploaded)
	s.True(second.Downloaded)

	status, err := s.a.sync.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.SyncIdle, status.Status)
	s.NotEmpty(status.DeviceID)
	s.NotNil(status.LastSyncAt)
	s.NotEmpty(status.RemoteRevision)
	s.Zero(status.PendingConflicts)
}

func (s *SyncServiceTestSuite) TestMergeBuildsUnion() {
	accA := s.a.account(s.T(), "Checking", "1000")
	s.a.expense(s.T(), accA.AccountID, "150", "2024-01-10")
	s.a.merge(s.T())

	// Device B created the same account independently, so the two pair by name.
	accB := s.b.account(s.T(), "Checking", "1000")
	s.b.expense(s.T(), accB.AccountID, "40", "2024-01-11")

	res := s.b.merge(s.T())
	s.Equal(domain.SyncUpToDate, res.Status)
	s.True(res.Uploaded)
	s.Equal(1, res.Merge.Added)

	_, err := s.b.accounts.GetAccountByID(s.ctx, accB.AccountID)
	s.ErrorIs(err, apperrors.ErrNotFound, "the paired account adopts the remote id")
	txns := s.b.transactionsByDescription(s.T())
	s.Require().Len(txns, 2)
	s.Equal(accA.AccountID, txns["Groceries 40"].AccountID, "local references follow the renamed account")
	s.True(dec("810").Equal(s.b.balance(s.T(), accA.AccountID)))
	s.b.requireReplayConsistent(s.T())

	again := s.a.merge(s.T())
	s.Equal(domain.SyncUpToDate, again.Status)
	s.False(again.Uploaded, "A only adds what B already uploaded")
	s.Len(s.a.transactionsByDescription(s.T()), 2)
	s.True(dec("810").Equal(s.a.balance(s.T(), accA.AccountID)))
	s.a.requireReplayConsistent(s.T())

	// Both devices now hold the same ledger, so nothing moves.
	quiet := s.b.merge(s.T())
	s.False(quiet.Uploaded)
	s.Zero(quiet.Merge.Added + quiet.Merge.Updated)
}

func (s *SyncServiceTestSuite) TestConflictResolution() {
	acc := s.a.account(s.T(), "Checking", "1000")
	txn := s.a.expense(s.T(), acc.AccountID, "150", "2024-01-10")
	s.a.merge(s.T())
	s.b.merge(s.T())

	amountA, amountB := dec("200"), dec("300")
	_, err := s.a.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{Amount: &amountA})
	s.Require().NoError(err)
	_, err = s.b.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{Amount: &amountB})
	s.Require().NoError(err)

	// A differs from the remote copy and has to decide.
	res := s.a.merge(s.T())
	s.Equal(domain.SyncConflicted, res.Status)
	s.Require().Len(res.Conflicts, 1)
	conflict := res.Conflicts[0]
	s.Equal(domain.ConflictTransaction, conflict.Type)

	status, err := s.a.sync.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.SyncConflicted, status.Status)
	s.Equal(1, status.PendingConflicts)

	rerun := s.a.merge(s.T())
	s.Require().Len(rerun.Conflicts, 1)
	s.Equal(conflict.ConflictID, rerun.Conflicts[0].ConflictID, "conflict ids are stable across runs")
	pending, err := s.a.sync.ListConflicts(s.ctx)
	s.Require().NoError(err)
	s.Len(pending, 1)

	resolved, err := s.a.sync.ResolveConflict(s.ctx, conflict.ConflictID, domain.ResolveLocal)
	s.Require().NoError(err)
	s.Zero(resolved.RemainingConflicts)
	s.Require().NotNil(resolved.Sync, "the last resolution completes the merge")
	s.Equal(domain.SyncUpToDate, resolved.Sync.Status)
	s.True(resolved.Sync.Uploaded)

	_, err = s.a.sync.ResolveConflict(s.ctx, conflict.ConflictID, domain.ResolveLocal)
	s.ErrorIs(err, apperrors.ErrNotFound)

	// B now sees A's decision as the remote copy and takes it.
	res = s.b.merge(s.T())
	s.Require().Len(res.Conflicts, 1)
	resolved, err = s.b.sync.ResolveConflict(s.ctx, res.Conflicts[0].ConflictID, domain.ResolveCloud)
	s.Require().NoError(err)
	s.Require().NotNil(resolved.Sync)
	s.Equal(domain.SyncUpToDate, resolved.Sync.Status)

	got, err := s.b.transactions.GetTransactionByID(s.ctx, txn.TransactionID)
	s.Require().NoError(err)
	s.True(amountA.Equal(got.Amount))
	s.True(dec("800").Equal(s.b.balance(s.T(), acc.AccountID)))
	s.b.requireReplayConsistent(s.T())

	status, err = s.b.sync.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(domain.SyncIdle, status.Status)
	s.Zero(status.PendingConflicts)
}

func (s *SyncServiceTestSuite) TestForceMergeTakesRemote() {
	acc := s.a.account(s.T(), "Checking", "1000")
	txn := s.a.expense(s.T(), acc.AccountID, "150", "2024-01-10")
	s.a.merge(s.T())
	s.b.merge(s.T())

	amountB := dec("10")
	_, err := s.b.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{Amount: &amountB})
	s.Require().NoError(err)

	res, err := s.b.sync.Sync(s.ctx, domain.SyncOptions{Strategy: domain.StrategyMerge, Force: true})
	s.Require().NoError(err)
	s.Equal(domain.SyncUpToDate, res.Status)
	s.Empty(res.Conflicts)
	s.Equal(1, res.Merge.Updated)
	s.True(dec("850").Equal(s.b.balance(s.T(), acc.AccountID)))
}

func (s *SyncServiceTestSuite) TestOverwriteStrategies() {
	accA := s.a.account(s.T(), "Checking", "1000")
	s.a.expense(s.T(), accA.AccountID, "150", "2024-01-10")
	s.a.merge(s.T())

	accB := s.b.account(s.T(), "Cash", "20")
	s.b.expense(s.T(), accB.AccountID, "5", "2024-01-12")

	res, err := s.b.sync.Sync(s.ctx, domain.SyncOptions{Strategy: domain.StrategyOverwriteLocal})
	s.Require().NoError(err)
	s.True(res.Downloaded)
	s.False(res.Uploaded)
	_, err = s.b.accounts.GetAccountByID(s.ctx, accB.AccountID)
	s.ErrorIs(err, apperrors.ErrNotFound, "overwrite_local discards local-only records")
	s.True(dec("850").Equal(s.b.balance(s.T(), accA.AccountID)))
	s.b.requireReplayConsistent(s.T())

	s.b.expense(s.T(), accA.AccountID, "50", "2024-01-13")
	res, err = s.b.sync.Sync(s.ctx, domain.SyncOptions{Strategy: domain.StrategyOverwriteCloud})
	s.Require().NoError(err)
	s.True(res.Uploaded)

	res = s.a.merge(s.T())
	s.Equal(1, res.Merge.Added)
	s.True(dec("800").Equal(s.a.balance(s.T(), accA.AccountID)))
}

func (s *SyncServiceTestSuite) TestBudgetsTakeRemoteWithoutConflict() {
	jan, err := s.a.budgets.CreateBudget(s.ctx, dto.CreateBudgetRequest{
		Name: "Groceries", CategoryID: "cat-groceries", Amount: dec("500"), Period: domain.PeriodMonthly, StartDate: day("2024-01-01"),
	})
	s.Require().NoError(err)
	s.a.merge(s.T())
	s.b.merge(s.T())

	amountA, amountB := dec("600"), dec("700")
	_, err = s.a.budgets.UpdateBudget(s.ctx, jan.BudgetID, dto.UpdateBudgetRequest{Amount: &amountA})
	s.Require().NoError(err)
	_, err = s.a.sync.Sync(s.ctx, domain.SyncOptions{Strategy: domain.StrategyOverwriteCloud})
	s.Require().NoError(err)
	_, err = s.b.budgets.UpdateBudget(s.ctx, jan.BudgetID, dto.UpdateBudgetRequest{Amount: &amountB})
	s.Require().NoError(err)

	res := s.b.merge(s.T())
	s.Empty(res.Conflicts)
	s.Equal(1, res.Merge.Updated)

	got, err := s.b.budgets.GetBudgetByID(s.ctx, jan.BudgetID)
	s.Require().NoError(err)
	s.True(amountA.Equal(got.Amount))
}

func (s *SyncServiceTestSuite) TestWrongSecretIsRejected() {
	s.a.account(s.T(), "Checking", "1000")
	s.a.merge(s.T())

	intruder := newDevice(s.T(), s.remote, "a different secret")
	_, err := intruder.sync.Sync(s.ctx, domain.SyncOptions{})
	s.ErrorIs(err, apperrors.ErrAuthentication)
	s.False(apperrors.IsRetryable(err))

	accounts, err := intruder.accounts.ListAccounts(s.ctx)
	s.Require().NoError(err)
	s.Empty(accounts, "nothing is written when the envelope fails authentication")

	status, err := intruder.sync.Status(s.ctx)
	s.Require().NoError(err)
	s.NotNil(status.LastFailureAt)
	s.NotEmpty(status.LastError)
}

func (s *SyncServiceTestSuite) TestRejectsUnknownStrategy() {
	_, err := s.a.sync.Sync(s.ctx, domain.SyncOptions{Strategy: "shuffle"})
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.a.sync.ResolveConflict(s.ctx, "any", "both")
	s.ErrorIs(err, apperrors.ErrValidation)
}

// fakeRemote fails or blocks on Find.
type fakeRemote struct {
	findErr error
	entered chan struct{}
	release chan struct{}
}

func (r *fakeRemote) Find(ctx context.Context, name string) (*domain.RemoteHandle, error) {
	if r.entered != nil {
		close(r.entered)
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, r.findErr
}

func (r *fakeRemote) Upload(ctx context.Context, name string, data []byte, existing *domain.RemoteHandle) (*domain.RemoteHandle, error) {
	return &domain.RemoteHandle{ID: name, Name: name, Revision: "1"}, nil
}

func (r *fakeRemote) Download(ctx context.Context, handle domain.RemoteHandle) ([]byte, error) {
	return nil, apperrors.ErrNotFound
}

func TestSync_RemoteErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"timeout", context.DeadlineExceeded, true},
		{"stale", apperrors.ErrStaleRemote, true},
		{"transient", errors.New("connection reset"), true},
		{"unauthorized", apperrors.ErrUnauthorized, false},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDevice(t, &fakeRemote{findErr: tt.err}, "secret")
			_, err := d.sync.Sync(context.Background(), domain.SyncOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrSync)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.retryable, apperrors.IsRetryable(err))
		})
	}
}

func TestSync_RejectsConcurrentRuns(t *testing.T) {
	remote := &fakeRemote{entered: make(chan struct{}), release: make(chan struct{})}
	d := newDevice(t, remote, "secret")

	done := make(chan error, 1)
	go func() {
		_, err := d.sync.Sync(context.Background(), domain.SyncOptions{})
		done <- err
	}()
	<-remote.entered

	_, err := d.sync.Sync(context.Background(), domain.SyncOptions{})
	assert.ErrorIs(t, err, apperrors.ErrSyncInProgress)

	status, err := d.sync.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncChecking, status.Status)

	close(remote.release)
	require.NoError(t, <-done)

	status, err = d.sync.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SyncIdle, status.Status)
}
