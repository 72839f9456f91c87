package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
)

// LifecycleService defines the state transitions the handler needs.
type LifecycleService interface {
	Start(ctx context.Context, marketID string, actor string) (domain.Market, error)
	Settle(ctx context.Context, marketID string, homeScore, awayScore int64, actor string) (engine.SettlementResult, error)
	Cancel(ctx context.Context, marketID string, actor string) (engine.SettlementResult, error)
}

// LifecycleHandler serves market start, settle, and cancel endpoints.
type LifecycleHandler struct {
	lifecycle LifecycleService
	logger    *slog.Logger
}

// NewLifecycleHandler creates a LifecycleHandler.
func NewLifecycleHandler(lifecycle LifecycleService, logger *slog.Logger) *LifecycleHandler {
	return &LifecycleHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// Start freezes the board and moves an open market to started.
// POST /api/markets/{id}/start
func (h *LifecycleHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.lifecycle.Start(r.Context(), id, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "start market", err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// settleRequest carries the final score.
type settleRequest struct {
	HomeScore int64 `json:"home_score"`
	AwayScore int64 `json:"away_score"`
}

// settlementResponse summarises a terminal transition's disbursements.
type settlementResponse struct {
	MarketID  string `json:"market_id"`
	Outcome   string `json:"outcome"`
	Positions int    `json:"positions"`
	Winners   int    `json:"winners"`
	Pushes    int    `json:"pushes"`
	PaidOut   int64  `json:"paid_out"`
	Refunded  int64  `json:"refunded"`
	Residual  int64  `json:"residual"`
}

func summarise(marketID, outcome string, res engine.SettlementResult) settlementResponse {
	return settlementResponse{
		MarketID:  marketID,
		Outcome:   outcome,
		Positions: res.Positions,
		Winners:   res.Winners,
		Pushes:    res.Pushes,
		PaidOut:   res.PaidOut,
		Refunded:  res.Refunded,
		Residual:  res.Residual,
	}
}

// Settle grades every position against the final score and pays winners.
// POST /api/markets/{id}/settle
func (h *LifecycleHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.lifecycle.Settle(r.Context(), id, req.HomeScore, req.AwayScore, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "settle market", err)
		return
	}

	writeJSON(w, http.StatusOK, summarise(id, string(domain.MarketSettled), res))
}

// Cancel voids a market and refunds every stake in full.
// POST /api/markets/{id}/cancel
func (h *LifecycleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	res, err := h.lifecycle.Cancel(r.Context(), id, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "cancel market", err)
		return
	}

	writeJSON(w, http.StatusOK, summarise(id, string(domain.MarketCancelled), res))
}
