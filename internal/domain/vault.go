package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// PayoutOrder is one transfer owed to a bettor at settlement or
// cancellation.
type PayoutOrder struct {
	Bettor common.Address
	Amount int64
}

// TokenVault is the custody boundary. It moves tokens between bettor
// accounts, per-market escrow, and the liquidity pool. Every failure
// surfaces as an ErrTransfer-classified error; callers treat any error as
// "nothing moved". Disburse is atomic: either every payout lands and the
// remainder sweeps to the pool, or the escrow is untouched.
type TokenVault interface {
	CollectStake(ctx context.Context, marketID string, bettor common.Address, amount int64) error
	Disburse(ctx context.Context, marketID string, payouts []PayoutOrder) (residual int64, err error)
	Fund(ctx context.Context, marketID string, amount int64) error
	Balance(ctx context.Context, marketID string) (int64, error)
}
