package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/visionhub/internal/apperror"
)

func TestLedger_DebitGuardsBalance(t *testing.T) {
	store := newMemStore()
	store.credits["u1"] = 15
	ledger := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, ledger.Debit(ctx, "u1", 10))
	assert.Equal(t, 5, store.balance("u1"))

	err := ledger.Debit(ctx, "u1", 10)
	assert.Equal(t, ErrInsufficientCredits, err)
	assert.Equal(t, 5, store.balance("u1"))
}

func TestLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store := newMemStore()
	store.credits["u1"] = 25
	ledger := NewLedger(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.Debit(context.Background(), "u1", 10) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 5, store.balance("u1"))
}

func TestLedger_CheckAndReserve(t *testing.T) {
	store := newMemStore()
	store.credits["rich"] = 10
	store.credits["poor"] = 9
	ledger := NewLedger(store)
	ctx := context.Background()

	assert.NoError(t, ledger.CheckAndReserve(ctx, "rich", 10))
	assert.Equal(t, 10, store.balance("rich"))
	assert.Equal(t, ErrInsufficientCredits, ledger.CheckAndReserve(ctx, "poor", 10))
	assert.ErrorIs(t, ledger.CheckAndReserve(ctx, "ghost", 10), apperror.ErrNotFound)
	assert.ErrorIs(t, ledger.CheckAndReserve(ctx, "rich", 0), apperror.ErrValidation)
}

func TestLedger_Credit(t *testing.T) {
	store := newMemStore()
	store.credits["u1"] = 0
	ledger := NewLedger(store)
	ctx := context.Background()

	require.NoError(t, ledger.Credit(ctx, "u1", 100, "admin"))
	assert.Equal(t, 100, store.balance("u1"))

	balance, err := ledger.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 100, balance)

	assert.ErrorIs(t, ledger.Credit(ctx, "u1", -5, "admin"), apperror.ErrValidation)
	assert.ErrorIs(t, ledger.Credit(ctx, "ghost", 5, "admin"), apperror.ErrNotFound)
}
