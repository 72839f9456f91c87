// Package treasury implements the token custody boundary: bettor
// accounts, per-market escrow, and the liquidity pool that backs every
// book.
package treasury

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/wagerhouse/bookd/internal/domain"
)

// TransferKind tags vault journal entries.
type TransferKind string

const (
	TransferDeposit  TransferKind = "deposit"
	TransferStake    TransferKind = "stake"
	TransferPayout   TransferKind = "payout"
	TransferFund     TransferKind = "fund"
	TransferWithdraw TransferKind = "withdraw"
	TransferSweep    TransferKind = "sweep"
)

// Transfer is one journaled token movement.
type Transfer struct {
	ID       string       `json:"id"`
	Kind     TransferKind `json:"kind"`
	MarketID string       `json:"market_id,omitempty"`
	Bettor   string       `json:"bettor,omitempty"`
	Amount   int64        `json:"amount"`
	At       time.Time    `json:"at"`
}

// The journal keeps only the most recent receipts in memory.
const maxJournal = 10_000

// Vault moves tokens between bettor accounts, per-market escrow, and the
// liquidity pool. Every movement is atomic under one lock and journaled
// with a uuid receipt; any error means nothing moved.
type Vault struct {
	mu       sync.Mutex
	pool     int64
	escrow   map[string]int64
	accounts map[common.Address]int64
	journal  []Transfer
}

var _ domain.TokenVault = (*Vault)(nil)

// NewVault seeds the liquidity pool.
func NewVault(openingPool int64) *Vault {
	return &Vault{
		pool:     openingPool,
		escrow:   make(map[string]int64),
		accounts: make(map[common.Address]int64),
	}
}

// Credit deposits tokens into a bettor's account.
func (v *Vault) Credit(bettor common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: deposit must be positive", domain.ErrValidation)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[bettor] += amount
	v.log(TransferDeposit, "", bettor.Hex(), amount)
	return nil
}

// BalanceOf reports a bettor's free balance.
func (v *Vault) BalanceOf(bettor common.Address) int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.accounts[bettor]
}

// CollectStake moves stake from the bettor into the market's escrow.
func (v *Vault) CollectStake(_ context.Context, marketID string, bettor common.Address, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: stake must be positive", domain.ErrValidation)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.accounts[bettor] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d",
			domain.ErrInsufficientFunds, bettor.Hex(), v.accounts[bettor], amount)
	}
	v.accounts[bettor] -= amount
	v.escrow[marketID] += amount
	v.log(TransferStake, marketID, bettor.Hex(), amount)
	return nil
}

// Disburse pays every payout from the market's escrow and sweeps the
// remainder to the pool. Coverage is checked up front so either all of
// it lands or nothing moves.
func (v *Vault) Disburse(_ context.Context, marketID string, payouts []domain.PayoutOrder) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var need int64
	for _, p := range payouts {
		if p.Amount < 0 {
			return 0, fmt.Errorf("%w: negative payout", domain.ErrValidation)
		}
		need += p.Amount
	}
	bal := v.escrow[marketID]
	if bal < need {
		return 0, fmt.Errorf("%w: escrow %d cannot cover payouts %d", domain.ErrTransfer, bal, need)
	}
	for _, p := range payouts {
		v.accounts[p.Bettor] += p.Amount
		v.log(TransferPayout, marketID, p.Bettor.Hex(), p.Amount)
	}
	residual := bal - need
	v.pool += residual
	delete(v.escrow, marketID)
	if residual > 0 {
		v.log(TransferSweep, marketID, "", residual)
	}
	return residual, nil
}

// Fund moves pool capital into market escrow; negative amounts withdraw
// back to the pool.
func (v *Vault) Fund(_ context.Context, marketID string, amount int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case amount == 0:
		return nil
	case amount > 0:
		if v.pool < amount {
			return fmt.Errorf("%w: pool %d cannot back %d", domain.ErrTransfer, v.pool, amount)
		}
		v.pool -= amount
		v.escrow[marketID] += amount
		v.log(TransferFund, marketID, "", amount)
	default:
		if v.escrow[marketID] < -amount {
			return fmt.Errorf("%w: escrow %d cannot release %d", domain.ErrTransfer, v.escrow[marketID], -amount)
		}
		v.escrow[marketID] += amount
		v.pool -= amount
		v.log(TransferWithdraw, marketID, "", -amount)
	}
	return nil
}

// Balance reports the market's current escrow.
func (v *Vault) Balance(_ context.Context, marketID string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.escrow[marketID], nil
}

// Pool reports the free liquidity available to back markets.
func (v *Vault) Pool() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pool
}

// Transfers returns the most recent journal entries, newest first.
func (v *Vault) Transfers(limit int) []Transfer {
	v.mu.Lock()
	defer v.mu.Unlock()
	if limit <= 0 || limit > len(v.journal) {
		limit = len(v.journal)
	}
	out := make([]Transfer, 0, limit)
	for i := len(v.journal) - 1; i >= len(v.journal)-limit; i-- {
		out = append(out, v.journal[i])
	}
	return out
}

func (v *Vault) log(kind TransferKind, marketID, bettor string, amount int64) {
	v.journal = append(v.journal, Transfer{
		ID:       uuid.NewString(),
		Kind:     kind,
		MarketID: marketID,
		Bettor:   bettor,
		Amount:   amount,
		At:       time.Now().UTC(),
	})
	if len(v.journal) > maxJournal {
		v.journal = v.journal[len(v.journal)-maxJournal:]
	}
}
