package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/domain"
)

// RiskService defines the exposure operations the handler needs.
type RiskService interface {
	Exposure(ctx context.Context, marketID string) (domain.ExposureSnapshot, error)
	SetLimit(ctx context.Context, marketID string, slot domain.ExposureSlot, max int64, actor string) (domain.ExposureSnapshot, error)
	SetAllLimits(ctx context.Context, marketID string, maxes map[domain.ExposureSlot]int64, actor string) (domain.ExposureSnapshot, error)
	Fund(ctx context.Context, marketID string, amount int64, actor string) (int64, error)
}

// RiskHandler serves exposure inspection and limit administration.
type RiskHandler struct {
	risk   RiskService
	logger *slog.Logger
}

// NewRiskHandler creates a RiskHandler.
func NewRiskHandler(risk RiskService, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{
		risk:   risk,
		logger: logger,
	}
}

// Exposure returns the live exposure ledger for one market.
// GET /api/markets/{id}/exposure
func (h *RiskHandler) Exposure(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	snap, err := h.risk.Exposure(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, "exposure", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// setLimitsRequest covers both limit forms: a single {slot, max}
// assignment, or a batch carrying a limits map and/or global_max.
type setLimitsRequest struct {
	Slot      string           `json:"slot,omitempty"`
	Max       *int64           `json:"max,omitempty"`
	Limits    map[string]int64 `json:"limits,omitempty"`
	GlobalMax *int64           `json:"global_max,omitempty"`
}

// SetLimits assigns exposure ceilings on one market.
// PUT /api/markets/{id}/limits
func (h *RiskHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req setLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	actor := auth.ActorFrom(r.Context())

	var (
		snap domain.ExposureSnapshot
		err  error
	)
	switch {
	case req.Limits != nil || req.GlobalMax != nil:
		maxes := make(map[domain.ExposureSlot]int64, len(req.Limits)+1)
		for slot, max := range req.Limits {
			maxes[domain.ExposureSlot(slot)] = max
		}
		if req.GlobalMax != nil {
			maxes[domain.SlotGlobal] = *req.GlobalMax
		}
		snap, err = h.risk.SetAllLimits(r.Context(), id, maxes, actor)
	case req.Slot != "" && req.Max != nil:
		snap, err = h.risk.SetLimit(r.Context(), id, domain.ExposureSlot(req.Slot), *req.Max, actor)
	default:
		writeError(w, http.StatusBadRequest, "need either {slot, max} or {limits, global_max}")
		return
	}
	if err != nil {
		respondError(w, r, h.logger, "set limits", err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// fundRequest is the body for a bankroll injection. A negative amount
// withdraws headroom.
type fundRequest struct {
	Amount int64 `json:"amount"`
}

type fundResponse struct {
	MarketID  string `json:"market_id"`
	GlobalMax int64  `json:"global_max"`
}

// Fund raises (or lowers) the global exposure cap by amount.
// POST /api/markets/{id}/funding
func (h *RiskHandler) Fund(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req fundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	globalMax, err := h.risk.Fund(r.Context(), id, req.Amount, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "fund market", err)
		return
	}

	writeJSON(w, http.StatusOK, fundResponse{MarketID: id, GlobalMax: globalMax})
}
