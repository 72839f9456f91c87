package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/service"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	CreateMarket(ctx context.Context, params service.CreateMarketParams, actor string) (domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	ListMarkets(ctx context.Context, states []domain.MarketState, opts domain.ListOpts) ([]domain.Market, error)
	Count(ctx context.Context) (int64, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// createMarketRequest is the body for market registration.
type createMarketRequest struct {
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	ExternalID  string    `json:"external_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	PushPolicy  string    `json:"push_policy"`
	GlobalMax   *int64    `json:"global_max"`
	SlotMax     *int64    `json:"slot_max"`
}

// CreateMarket registers a new market in the pending state.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), service.CreateMarketParams{
		HomeTeam:    req.HomeTeam,
		AwayTeam:    req.AwayTeam,
		ExternalID:  req.ExternalID,
		ScheduledAt: req.ScheduledAt,
		PushPolicy:  domain.PushPolicy(req.PushPolicy),
		GlobalMax:   req.GlobalMax,
		SlotMax:     req.SlotMax,
	}, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "create market", err)
		return
	}

	writeJSON(w, http.StatusCreated, market)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int64           `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets with pagination, optionally filtered by a
// comma-separated state list.
// GET /api/markets?state=open,started&limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var states []domain.MarketState
	if v := r.URL.Query().Get("state"); v != "" {
		for _, s := range strings.Split(v, ",") {
			state := domain.MarketState(strings.TrimSpace(s))
			switch state {
			case domain.MarketPending, domain.MarketOpen, domain.MarketStarted,
				domain.MarketSettled, domain.MarketCancelled:
				states = append(states, state)
			default:
				writeError(w, http.StatusBadRequest, "unknown market state "+string(state))
				return
			}
		}
	}

	markets, err := h.markets.ListMarkets(r.Context(), states, opts)
	if err != nil {
		respondError(w, r, h.logger, "list markets", err)
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		respondError(w, r, h.logger, "count markets", err)
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, "get market", err)
		return
	}

	writeJSON(w, http.StatusOK, market)
}
