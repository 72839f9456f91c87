package treasury

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wagerhouse/bookd/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func (v *Vault) totalTokens() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.pool
	for _, b := range v.escrow {
		t += b
	}
	for _, b := range v.accounts {
		t += b
	}
	return t
}

func TestCreditAndCollect(t *testing.T) {
	ctx := context.Background()
	v := NewVault(1_000)

	require.NoError(t, v.Credit(alice, 500))
	require.EqualValues(t, 500, v.BalanceOf(alice))
	require.ErrorIs(t, v.Credit(alice, 0), domain.ErrValidation)

	require.NoError(t, v.CollectStake(ctx, "m1", alice, 200))
	require.EqualValues(t, 300, v.BalanceOf(alice))
	bal, err := v.Balance(ctx, "m1")
	require.NoError(t, err)
	require.EqualValues(t, 200, bal)

	err = v.CollectStake(ctx, "m1", alice, 301)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.ErrorIs(t, err, domain.ErrTransfer)
	require.EqualValues(t, 300, v.BalanceOf(alice), "failed collect moved tokens")
}

func TestDisburseIsAtomic(t *testing.T) {
	ctx := context.Background()
	v := NewVault(0)
	require.NoError(t, v.Credit(alice, 100))
	require.NoError(t, v.CollectStake(ctx, "m1", alice, 100))

	// 150 owed against 100 escrowed: nothing may move.
	_, err := v.Disburse(ctx, "m1", []domain.PayoutOrder{
		{Bettor: alice, Amount: 75},
		{Bettor: bob, Amount: 75},
	})
	require.ErrorIs(t, err, domain.ErrTransfer)
	require.EqualValues(t, 0, v.BalanceOf(alice))
	require.EqualValues(t, 0, v.BalanceOf(bob))
	bal, err := v.Balance(ctx, "m1")
	require.NoError(t, err)
	require.EqualValues(t, 100, bal)

	residual, err := v.Disburse(ctx, "m1", []domain.PayoutOrder{{Bettor: bob, Amount: 60}})
	require.NoError(t, err)
	require.EqualValues(t, 40, residual)
	require.EqualValues(t, 60, v.BalanceOf(bob))
	require.EqualValues(t, 40, v.Pool())
}

func TestFundAndWithdraw(t *testing.T) {
	ctx := context.Background()
	v := NewVault(1_000)

	require.NoError(t, v.Fund(ctx, "m1", 400))
	require.EqualValues(t, 600, v.Pool())

	require.ErrorIs(t, v.Fund(ctx, "m1", 700), domain.ErrTransfer)
	require.ErrorIs(t, v.Fund(ctx, "m1", -500), domain.ErrTransfer)
	require.NoError(t, v.Fund(ctx, "m1", 0))

	require.NoError(t, v.Fund(ctx, "m1", -400))
	require.EqualValues(t, 1_000, v.Pool())
}

func TestConservationUnderConcurrentStakes(t *testing.T) {
	ctx := context.Background()
	v := NewVault(10_000)
	require.NoError(t, v.Credit(alice, 5_000))
	require.NoError(t, v.Credit(bob, 5_000))
	before := v.totalTokens()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.CollectStake(ctx, "m1", alice, 10)
		}()
		go func() {
			defer wg.Done()
			_ = v.CollectStake(ctx, "m2", bob, 10)
		}()
	}
	wg.Wait()

	require.Equal(t, before, v.totalTokens(), "stakes must conserve tokens")
	bal, err := v.Balance(ctx, "m1")
	require.NoError(t, err)
	require.EqualValues(t, 500, bal)
}

func TestTransferJournal(t *testing.T) {
	ctx := context.Background()
	v := NewVault(100)
	require.NoError(t, v.Credit(alice, 50))
	require.NoError(t, v.CollectStake(ctx, "m1", alice, 20))
	_, err := v.Disburse(ctx, "m1", nil)
	require.NoError(t, err)

	entries := v.Transfers(10)
	require.Len(t, entries, 3) // deposit, stake, sweep
	require.Equal(t, TransferSweep, entries[0].Kind, "journal is newest first")
	require.Equal(t, TransferStake, entries[1].Kind)
	require.Equal(t, TransferDeposit, entries[2].Kind)
	for _, e := range entries {
		require.NotEmpty(t, e.ID)
		require.False(t, e.At.IsZero())
	}

	require.Len(t, v.Transfers(2), 2)
}
