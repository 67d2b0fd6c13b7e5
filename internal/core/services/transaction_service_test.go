package services_test

import (
	"context"
	"testing"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

type TransactionServiceTestSuite struct {
	suite.Suite
	ctx context.Context
	f   *ledgerFixture
	acc *domain.Account
}

func (s *TransactionServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.f = newLedgerFixture(s.T())
	s.acc = s.f.account(s.T(), "Checking", "1000")
}

func TestTransactionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TransactionServiceTestSuite))
}

func (s *TransactionServiceTestSuite) TestCreateUpdateDelete_KeepsBalance() {
	txn := s.f.expense(s.T(), s.acc.AccountID, "150", "2024-01-10")
	s.True(dec("850").Equal(s.f.balance(s.T(), s.acc.AccountID)))
	s.Equal("USD", txn.CurrencyCode, "currency defaults to the account currency")

	amount := dec("200")
	_, err := s.f.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{Amount: &amount})
	s.Require().NoError(err)
	s.True(dec("800").Equal(s.f.balance(s.T(), s.acc.AccountID)))

	s.Require().NoError(s.f.transactions.DeleteTransaction(s.ctx, txn.TransactionID))
	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)))

	_, err = s.f.transactions.GetTransactionByID(s.ctx, txn.TransactionID)
	s.ErrorIs(err, apperrors.ErrNotFound)
	s.f.requireReplayConsistent(s.T())
}

func (s *TransactionServiceTestSuite) TestIncomeAndTransfer() {
	_, err := s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("500"), Type: domain.TransactionIncome, CategoryID: "cat-salary",
		AccountID: s.acc.AccountID, Date: day("2024-01-01"), Description: "Salary",
	})
	s.Require().NoError(err)
	_, err = s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("300"), Type: domain.TransactionTransfer, CategoryID: "cat-salary",
		AccountID: s.acc.AccountID, Date: day("2024-01-02"), Description: "To savings",
	})
	s.Require().NoError(err)
	s.True(dec("1200").Equal(s.f.balance(s.T(), s.acc.AccountID)))
}

func (s *TransactionServiceTestSuite) TestCreate_Rejections() {
	inactive := s.f.account(s.T(), "Old", "0")
	s.Require().NoError(s.f.accounts.DeactivateAccount(s.ctx, inactive.AccountID))

	base := dto.CreateTransactionRequest{
		Amount: dec("10"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: s.acc.AccountID, Date: day("2024-01-10"), Description: "Bread",
	}
	tests := []struct {
		name   string
		mutate func(r *dto.CreateTransactionRequest)
		want   error
	}{
		{"zero amount", func(r *dto.CreateTransactionRequest) { r.Amount = dec("0") }, apperrors.ErrValidation},
		{"negative amount", func(r *dto.CreateTransactionRequest) { r.Amount = dec("-5") }, apperrors.ErrValidation},
		{"blank description", func(r *dto.CreateTransactionRequest) { r.Description = "   " }, apperrors.ErrValidation},
		{"unknown account", func(r *dto.CreateTransactionRequest) { r.AccountID = "missing" }, apperrors.ErrReferential},
		{"unknown category", func(r *dto.CreateTransactionRequest) { r.CategoryID = "missing" }, apperrors.ErrReferential},
		{"income category on expense", func(r *dto.CreateTransactionRequest) { r.CategoryID = "cat-salary" }, apperrors.ErrReferential},
		{"currency mismatch", func(r *dto.CreateTransactionRequest) { r.CurrencyCode = "EUR" }, apperrors.ErrValidation},
		{"inactive account", func(r *dto.CreateTransactionRequest) { r.AccountID = inactive.AccountID }, apperrors.ErrValidation},
		{"terminal status on create", func(r *dto.CreateTransactionRequest) { r.Status = domain.TransactionFailed }, apperrors.ErrValidation},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := base
			tt.mutate(&req)
			_, err := s.f.transactions.CreateTransaction(s.ctx, req)
			s.ErrorIs(err, tt.want)
		})
	}

	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)))
	list, err := s.f.transactions.ListTransactions(s.ctx, dto.ListTransactionsParams{})
	s.Require().NoError(err)
	s.Empty(list.Transactions)
}

func (s *TransactionServiceTestSuite) TestUpdate_RejectedPatchChangesNothing() {
	txn := s.f.expense(s.T(), s.acc.AccountID, "100", "2024-01-10")

	wrongCategory := "cat-salary"
	_, err := s.f.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{CategoryID: &wrongCategory})
	s.ErrorIs(err, apperrors.ErrReferential)

	zero := dec("0")
	_, err = s.f.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{Amount: &zero})
	s.ErrorIs(err, apperrors.ErrValidation)

	stored, err := s.f.transactions.GetTransactionByID(s.ctx, txn.TransactionID)
	s.Require().NoError(err)
	s.True(dec("100").Equal(stored.Amount))
	s.Equal("cat-groceries", stored.CategoryID)
	s.True(dec("900").Equal(s.f.balance(s.T(), s.acc.AccountID)))
}

func (s *TransactionServiceTestSuite) TestUpdate_MovesBetweenAccounts() {
	savings := s.f.account(s.T(), "Savings", "50")
	txn := s.f.expense(s.T(), s.acc.AccountID, "40", "2024-01-10")

	_, err := s.f.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{AccountID: &savings.AccountID})
	s.Require().NoError(err)

	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)))
	s.True(dec("10").Equal(s.f.balance(s.T(), savings.AccountID)))
	s.f.requireReplayConsistent(s.T())
}

func (s *TransactionServiceTestSuite) TestTransitionStatus() {
	txn, err := s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("100"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: s.acc.AccountID, Date: day("2024-01-10"), Description: "Pending groceries",
		Status: domain.TransactionPending,
	})
	s.Require().NoError(err)
	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)), "pending has no balance effect")

	got, err := s.f.transactions.TransitionStatus(s.ctx, txn.TransactionID, domain.TransactionCompleted)
	s.Require().NoError(err)
	s.Equal(domain.TransactionCompleted, got.Status)
	s.True(dec("900").Equal(s.f.balance(s.T(), s.acc.AccountID)))

	_, err = s.f.transactions.TransitionStatus(s.ctx, txn.TransactionID, domain.TransactionCompleted)
	s.Require().NoError(err, "repeating a transition is a no-op")
	s.True(dec("900").Equal(s.f.balance(s.T(), s.acc.AccountID)))

	_, err = s.f.transactions.TransitionStatus(s.ctx, txn.TransactionID, domain.TransactionPending)
	s.ErrorIs(err, apperrors.ErrValidation)

	_, err = s.f.transactions.TransitionStatus(s.ctx, txn.TransactionID, domain.TransactionCancelled)
	s.Require().NoError(err)
	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)))

	_, err = s.f.transactions.TransitionStatus(s.ctx, txn.TransactionID, domain.TransactionCompleted)
	s.ErrorIs(err, apperrors.ErrValidation, "cancelled is terminal")

	_, err = s.f.transactions.TransitionStatus(s.ctx, "missing", domain.TransactionCompleted)
	s.ErrorIs(err, apperrors.ErrNotFound)
	s.f.requireReplayConsistent(s.T())
}

func (s *TransactionServiceTestSuite) TestFailedWriteRollsBack() {
	s.f.store.failAccounts.Store(true)
	_, err := s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("75"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: s.acc.AccountID, Date: day("2024-01-10"), Description: "Never stored",
	})
	s.ErrorIs(err, errInjected)
	s.NotErrorIs(err, apperrors.ErrConsistency)
	s.f.store.failAccounts.Store(false)

	list, err := s.f.transactions.ListTransactions(s.ctx, dto.ListTransactionsParams{})
	s.Require().NoError(err)
	s.Empty(list.Transactions)
	s.True(dec("1000").Equal(s.f.balance(s.T(), s.acc.AccountID)))
	s.False(s.f.gate.IsFenced(s.acc.AccountID))
}

func (s *TransactionServiceTestSuite) TestFailedRollbackFencesAccount() {
	s.f.store.failAccounts.Store(true)
	s.f.store.brokenRollback.Store(true)
	_, err := s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("100"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: s.acc.AccountID, Date: day("2024-01-10"), Description: "Half written",
	})
	s.ErrorIs(err, apperrors.ErrConsistency)
	s.f.store.failAccounts.Store(false)
	s.f.store.brokenRollback.Store(false)

	s.True(s.f.gate.IsFenced(s.acc.AccountID))
	_, err = s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
		Amount: dec("1"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: s.acc.AccountID, Date: day("2024-01-11"), Description: "Blocked",
	})
	s.ErrorIs(err, apperrors.ErrConsistency, "fenced accounts reject mutations")

	report, err := s.f.accounts.VerifyAccount(s.ctx, s.acc.AccountID)
	s.Require().NoError(err)
	s.False(report.Consistent)
	s.True(report.Fenced)
	s.True(dec("100").Equal(report.Drift))

	reconciled, err := s.f.accounts.ReconcileAccount(s.ctx, s.acc.AccountID)
	s.Require().NoError(err)
	s.True(dec("900").Equal(reconciled.Balance))
	s.False(s.f.gate.IsFenced(s.acc.AccountID))

	s.f.expense(s.T(), s.acc.AccountID, "50", "2024-01-12")
	s.f.requireReplayConsistent(s.T())
}

func (s *TransactionServiceTestSuite) TestConcurrentMutations() {
	other := s.f.account(s.T(), "Other", "1000")

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		accountID := s.acc.AccountID
		if i%2 == 1 {
			accountID = other.AccountID
		}
		g.Go(func() error {
			txn, err := s.f.transactions.CreateTransaction(s.ctx, dto.CreateTransactionRequest{
				Amount: dec("10"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
				AccountID: accountID, Date: day("2024-02-01"), Description: "Coffee",
			})
			if err != nil {
				return err
			}
			// Move half of them across to exercise the two-account locks.
			if i%4 == 0 {
				_, err = s.f.transactions.UpdateTransaction(s.ctx, txn.TransactionID, dto.UpdateTransactionRequest{AccountID: &other.AccountID})
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())

	total := s.f.balance(s.T(), s.acc.AccountID).Add(s.f.balance(s.T(), other.AccountID))
	s.True(dec("1600").Equal(total), "got %s", total)
	s.True(dec("900").Equal(s.f.balance(s.T(), s.acc.AccountID)))
	s.f.requireReplayConsistent(s.T())
}

func (s *TransactionServiceTestSuite) TestListTransactions_Pagination() {
	for _, d := range []string{"2024-01-05", "2024-01-01", "2024-01-03", "2024-01-04", "2024-01-02"} {
		s.f.expense(s.T(), s.acc.AccountID, "1", d)
	}

	var seen []string
	var token *string
	for page := 0; page < 5; page++ {
		resp, err := s.f.transactions.ListTransactions(s.ctx, dto.ListTransactionsParams{Limit: 2, NextToken: token})
		s.Require().NoError(err)
		for _, t := range resp.Transactions {
			seen = append(seen, t.Date.Format("2006-01-02"))
		}
		if resp.NextToken == nil {
			break
		}
		token = resp.NextToken
	}
	s.Equal([]string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, seen)

	bad := "not-a-token"
	_, err := s.f.transactions.ListTransactions(s.ctx, dto.ListTransactionsParams{NextToken: &bad})
	s.ErrorIs(err, apperrors.ErrValidation)
}

type recordingQueue struct {
	jobs []string
}

func (q *recordingQueue) EnqueueStatusJob(ctx context.Context, transactionID string, target domain.TransactionStatus) error {
	q.jobs = append(q.jobs, transactionID+"->"+string(target))
	return nil
}

func TestCreatePending_EnqueuesStatusJob(t *testing.T) {
	f := newLedgerFixture(t)
	queue := &recordingQueue{}
	svc := newTransactionServiceWithQueue(f, queue)
	acc := f.account(t, "Checking", "10")

	pending, err := svc.CreateTransaction(context.Background(), dto.CreateTransactionRequest{
		Amount: dec("5"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: acc.AccountID, Date: day("2024-01-10"), Description: "Card hold", Status: domain.TransactionPending,
	})
	require.NoError(t, err)
	_, err = svc.CreateTransaction(context.Background(), dto.CreateTransactionRequest{
		Amount: dec("1"), Type: domain.TransactionExpense, CategoryID: "cat-groceries",
		AccountID: acc.AccountID, Date: day("2024-01-10"), Description: "Cash",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{pending.TransactionID + "->completed"}, queue.jobs)
}
