package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/treasury"
)

// TreasuryService defines the vault operations the handler needs.
type TreasuryService interface {
	Deposit(ctx context.Context, bettor common.Address, amount int64, actor string) (int64, error)
	Balance(bettor common.Address) int64
	Escrow(ctx context.Context, marketID string) (int64, error)
	Pool() int64
	Transfers(limit int) []treasury.Transfer
}

// TreasuryHandler serves deposit and vault inspection endpoints.
type TreasuryHandler struct {
	vault  TreasuryService
	logger *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler.
func NewTreasuryHandler(vault TreasuryService, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		vault:  vault,
		logger: logger,
	}
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

type depositResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// Deposit credits tokens to a bettor's vault balance.
// POST /api/bettors/{addr}/deposit
func (h *TreasuryHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	bettor, err := parseAddress(pathParam(r, "addr"))
	if err != nil {
		respondError(w, r, h.logger, "parse bettor", err)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	balance, err := h.vault.Deposit(r.Context(), bettor, req.Amount, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, depositResponse{
		Address: bettor.Hex(),
		Balance: balance,
	})
}

// treasuryResponse reports the house pool and recent token movements.
// Escrow is present only when a market filter was given.
type treasuryResponse struct {
	Pool      int64               `json:"pool"`
	Escrow    *int64              `json:"escrow,omitempty"`
	Transfers []treasury.Transfer `json:"transfers"`
}

// Treasury returns the pool balance and the most recent transfers.
// GET /api/treasury?limit=50&market=<id>
func (h *TreasuryHandler) Treasury(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	resp := treasuryResponse{
		Pool:      h.vault.Pool(),
		Transfers: h.vault.Transfers(opts.Limit),
	}

	if marketID := r.URL.Query().Get("market"); marketID != "" {
		escrow, err := h.vault.Escrow(r.Context(), marketID)
		if err != nil {
			respondError(w, r, h.logger, "escrow", err)
			return
		}
		resp.Escrow = &escrow
	}

	writeJSON(w, http.StatusOK, resp)
}

// balanceResponse reports one bettor's spendable vault balance.
type balanceResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// BettorBalance returns the current vault balance for an address.
// GET /api/bettors/{addr}/balance
func (h *TreasuryHandler) BettorBalance(w http.ResponseWriter, r *http.Request) {
	bettor, err := parseAddress(pathParam(r, "addr"))
	if err != nil {
		respondError(w, r, h.logger, "parse bettor", err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Address: bettor.Hex(),
		Balance: h.vault.Balance(bettor),
	})
}
