// Package storetest holds the behaviour every LedgerStore implementation must show.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/domain"
	portsrepo "github.com/SscSPs/money_sync_app/internal/core/ports/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises store. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) portsrepo.LedgerStore) {
	ctx := context.Background()
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRecord(ctx, domain.KindAccount, "nope")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.ErrorIs(t, s.DeleteRecord(ctx, domain.KindAccount, "nope"), apperrors.ErrNotFound)
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutRecord(ctx, domain.KindAccount, "a1", domain.IndexKeys{}, []byte(`{"v":1}`)))
		require.NoError(t, s.PutRecord(ctx, domain.KindAccount, "a1", domain.IndexKeys{}, []byte(`{"v":2}`)))
		got, err := s.GetRecord(ctx, domain.KindAccount, "a1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":2}`, string(got))
	})

	t.Run("scan filters and orders by date then id", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutRecord(ctx, domain.KindTransaction, "t3", domain.IndexKeys{AccountID: "a1", Date: feb}, []byte(`{"id":"t3"}`)))
		require.NoError(t, s.PutRecord(ctx, domain.KindTransaction, "t2", domain.IndexKeys{AccountID: "a1", Date: jan}, []byte(`{"id":"t2"}`)))
		require.NoError(t, s.PutRecord(ctx, domain.KindTransaction, "t1", domain.IndexKeys{AccountID: "a1", Date: jan}, []byte(`{"id":"t1"}`)))
		require.NoError(t, s.PutRecord(ctx, domain.KindTransaction, "t4", domain.IndexKeys{AccountID: "a2", Date: jan}, []byte(`{"id":"t4"}`)))
		require.NoError(t, s.PutRecord(ctx, domain.KindAccount, "a1", domain.IndexKeys{}, []byte(`{"id":"a1"}`)))

		got, err := s.ScanRecords(ctx, portsrepo.ScanQuery{Kind: domain.KindTransaction, AccountID: "a1"})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.JSONEq(t, `{"id":"t1"}`, string(got[0]))
		assert.JSONEq(t, `{"id":"t2"}`, string(got[1]))
		assert.JSONEq(t, `{"id":"t3"}`, string(got[2]))

		to := feb
		got, err = s.ScanRecords(ctx, portsrepo.ScanQuery{Kind: domain.KindTransaction, From: &jan, To: &to})
		require.NoError(t, err)
		assert.Len(t, got, 3, "upper bound is exclusive")
	})

	t.Run("transaction commits", func(t *testing.T) {
		s := newStore(t)
		err := s.WithTransaction(ctx, func(ctx context.Context, tx portsrepo.RecordStore) error {
			if err := tx.PutRecord(ctx, domain.KindAccount, "a1", domain.IndexKeys{}, []byte(`{"id":"a1"}`)); err != nil {
				return err
			}
			got, err := tx.GetRecord(ctx, domain.KindAccount, "a1")
			if err != nil {
				return err
			}
			assert.JSONEq(t, `{"id":"a1"}`, string(got), "writes are visible inside the transaction")
			return nil
		})
		require.NoError(t, err)
		_, err = s.GetRecord(ctx, domain.KindAccount, "a1")
		assert.NoError(t, err)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutRecord(ctx, domain.KindAccount, "keep", domain.IndexKeys{}, []byte(`{"v":1}`)))
		boom := errors.New("boom")
		err := s.WithTransaction(ctx, func(ctx context.Context, tx portsrepo.RecordStore) error {
			require.NoError(t, tx.PutRecord(ctx, domain.KindAccount, "new", domain.IndexKeys{}, []byte(`{}`)))
			require.NoError(t, tx.PutRecord(ctx, domain.KindAccount, "keep", domain.IndexKeys{}, []byte(`{"v":2}`)))
			require.NoError(t, tx.DeleteRecord(ctx, domain.KindAccount, "keep"))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.GetRecord(ctx, domain.KindAccount, "new")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		got, err := s.GetRecord(ctx, domain.KindAccount, "keep")
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":1}`, string(got))
	})
}
