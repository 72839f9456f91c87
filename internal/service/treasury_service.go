package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/metrics"
	"github.com/wagerhouse/bookd/internal/treasury"
)

// TreasuryService fronts the vault for the API: deposits, balances and
// the transfer journal.
type TreasuryService struct {
	vault   *treasury.Vault
	audit   domain.AuditStore
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewTreasuryService creates a TreasuryService with all required
// dependencies.
func NewTreasuryService(vault *treasury.Vault, audit domain.AuditStore, m *metrics.Metrics, logger *slog.Logger) *TreasuryService {
	return &TreasuryService{
		vault:   vault,
		audit:   audit,
		metrics: m,
		logger:  logger,
	}
}

// Deposit credits tokens into a bettor's account.
func (s *TreasuryService) Deposit(ctx context.Context, bettor common.Address, amount int64, actor string) (int64, error) {
	if err := s.vault.Credit(bettor, amount); err != nil {
		return 0, fmt.Errorf("treasury_service: deposit: %w", err)
	}
	balance := s.vault.BalanceOf(bettor)

	if auditErr := s.audit.Log(ctx, actor, "treasury.deposit", bettor.Hex(), map[string]any{
		"amount":  amount,
		"balance": balance,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "treasury_service: audit log failed",
			slog.String("bettor", bettor.Hex()),
			slog.String("error", auditErr.Error()),
		)
	}
	s.metrics.UpdatePoolBalance(s.vault.Pool())

	s.logger.InfoContext(ctx, "treasury_service: deposit credited",
		slog.String("bettor", bettor.Hex()),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance),
	)
	return balance, nil
}

// Balance reports a bettor's free balance.
func (s *TreasuryService) Balance(bettor common.Address) int64 {
	return s.vault.BalanceOf(bettor)
}

// Escrow reports the tokens locked behind one market.
func (s *TreasuryService) Escrow(ctx context.Context, marketID string) (int64, error) {
	bal, err := s.vault.Balance(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("treasury_service: escrow %q: %w", marketID, err)
	}
	return bal, nil
}

// Pool reports the free liquidity available to back markets.
func (s *TreasuryService) Pool() int64 {
	return s.vault.Pool()
}

// Transfers returns the most recent vault journal entries, newest
// first.
func (s *TreasuryService) Transfers(limit int) []treasury.Transfer {
	return s.vault.Transfers(limit)
}
