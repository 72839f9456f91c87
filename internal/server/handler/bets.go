package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
)

// BetService defines the wager operations the handler needs.
type BetService interface {
	PlaceBet(ctx context.Context, marketID string, bettor common.Address, kind domain.BetKind, side domain.Side, stake int64) (domain.Position, error)
	GetBet(ctx context.Context, marketID string, id uint64) (domain.Position, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error)
	ListByBettor(ctx context.Context, bettor common.Address, opts domain.ListOpts) ([]domain.Position, error)
}

// BetHandler serves wager placement and lookup endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// placeBetRequest is the body for bet placement. Stake is in token
// minor units.
type placeBetRequest struct {
	Bettor string `json:"bettor"`
	Kind   string `json:"kind"`
	Side   string `json:"side"`
	Stake  int64  `json:"stake"`
}

// PlaceBet accepts a wager against the market's current board.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bettor, err := parseAddress(req.Bettor)
	if err != nil {
		respondError(w, r, h.logger, "parse bettor", err)
		return
	}

	pos, err := h.bets.PlaceBet(r.Context(), id, bettor,
		domain.BetKind(req.Kind), domain.Side(req.Side), req.Stake)
	if err != nil {
		respondError(w, r, h.logger, "place bet", err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// GetBet returns one position by its market-scoped ID.
// GET /api/markets/{id}/bets/{betID}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	betID, err := parseBetID(pathParam(r, "betID"))
	if err != nil {
		respondError(w, r, h.logger, "parse bet id", err)
		return
	}

	pos, err := h.bets.GetBet(r.Context(), id, betID)
	if err != nil {
		respondError(w, r, h.logger, "get bet", err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// listBetsResponse wraps position listings with pagination metadata.
type listBetsResponse struct {
	Bets   []domain.Position `json:"bets"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// ListMarketBets returns the positions recorded against one market.
// GET /api/markets/{id}/bets?limit=50&offset=0
func (h *BetHandler) ListMarketBets(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}
	opts := parseListOpts(r)

	bets, err := h.bets.ListByMarket(r.Context(), id, opts)
	if err != nil {
		respondError(w, r, h.logger, "list market bets", err)
		return
	}

	writeJSON(w, http.StatusOK, listBetsResponse{
		Bets:   bets,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// ListBettorBets returns every position held by one address across markets.
// GET /api/bettors/{addr}/bets?limit=50&offset=0
func (h *BetHandler) ListBettorBets(w http.ResponseWriter, r *http.Request) {
	bettor, err := parseAddress(pathParam(r, "addr"))
	if err != nil {
		respondError(w, r, h.logger, "parse bettor", err)
		return
	}
	opts := parseListOpts(r)

	bets, err := h.bets.ListByBettor(r.Context(), bettor, opts)
	if err != nil {
		respondError(w, r, h.logger, "list bettor bets", err)
		return
	}

	writeJSON(w, http.StatusOK, listBetsResponse{
		Bets:   bets,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}
