package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SscSPs/money_sync_app/internal/apperrors"
	"github.com/SscSPs/money_sync_app/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerGate_SameAccountSerializes(t *testing.T) {
	gate := services.NewLedgerGate()
	ctx := context.Background()

	release, err := gate.LockAccounts(ctx, "acc-1")
	require.NoError(t, err)

	other, err := gate.LockAccounts(ctx, "acc-2")
	require.NoError(t, err, "different accounts do not contend")
	other()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = gate.LockAccounts(short, "acc-2", "acc-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	again, err := gate.LockAccounts(ctx, "acc-1", "acc-1")
	require.NoError(t, err, "duplicate ids are locked once")
	again()
}

func TestLedgerGate_QuiesceDrainsMutations(t *testing.T) {
	gate := services.NewLedgerGate()
	ctx := context.Background()

	release, err := gate.LockAccounts(ctx, "acc-1")
	require.NoError(t, err)

	quiesced := make(chan func())
	go func() {
		resume, err := gate.Quiesce(ctx)
		if err == nil {
			quiesced <- resume
		}
	}()

	select {
	case <-quiesced:
		t.Fatal("quiesce must wait for the in-flight mutation")
	case <-time.After(20 * time.Millisecond):
	}

	release()
	var resume func()
	select {
	case resume = <-quiesced:
	case <-time.After(time.Second):
		t.Fatal("quiesce did not complete after the mutation finished")
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = gate.LockAccounts(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "new mutations wait while quiesced")

	resume()
	unlocked, err := gate.LockAccounts(ctx, "acc-1")
	require.NoError(t, err)
	unlocked()
}

func TestLedgerGate_Fencing(t *testing.T) {
	gate := services.NewLedgerGate()
	cause := &apperrors.ConsistencyError{AccountID: "acc-1", Op: "delete"}

	assert.NoError(t, gate.CheckFenced("acc-1", "acc-2"))
	gate.Fence(cause)
	assert.True(t, gate.IsFenced("acc-1"))
	assert.ErrorIs(t, gate.CheckFenced("acc-2", "acc-1"), apperrors.ErrConsistency)

	gate.Unfence("acc-1")
	assert.False(t, gate.IsFenced("acc-1"))
}
