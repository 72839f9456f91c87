package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/wagerhouse/bookd/internal/auth"
	"github.com/wagerhouse/bookd/internal/domain"
)

// OddsService defines the odds operations the handler needs.
type OddsService interface {
	SetOdds(ctx context.Context, marketID string, sheet domain.OddsSheet, actor string) (domain.Market, bool, error)
	GetOdds(ctx context.Context, marketID string) (domain.OddsSheet, domain.MarketState, error)
}

// OddsHandler serves the price board endpoints.
type OddsHandler struct {
	odds   OddsService
	logger *slog.Logger
}

// NewOddsHandler creates an OddsHandler.
func NewOddsHandler(odds OddsService, logger *slog.Logger) *OddsHandler {
	return &OddsHandler{
		odds:   odds,
		logger: logger,
	}
}

// oddsPayload is the wire form of a price board. Prices travel as decimal
// strings ("1.950", lines "-7.5"); an outcome that is not offered is
// simply absent.
type oddsPayload struct {
	MoneylineHome string `json:"moneyline_home,omitempty"`
	MoneylineAway string `json:"moneyline_away,omitempty"`
	MoneylineDraw string `json:"moneyline_draw,omitempty"`
	SpreadLine    string `json:"spread_line,omitempty"`
	SpreadHome    string `json:"spread_home,omitempty"`
	SpreadAway    string `json:"spread_away,omitempty"`
	TotalLine     string `json:"total_line,omitempty"`
	TotalOver     string `json:"total_over,omitempty"`
	TotalUnder    string `json:"total_under,omitempty"`
}

func renderSheet(s domain.OddsSheet) oddsPayload {
	render := func(o int64) string {
		if o == 0 {
			return ""
		}
		return domain.FormatOdds(o)
	}
	p := oddsPayload{
		MoneylineHome: render(s.MoneylineHome),
		MoneylineAway: render(s.MoneylineAway),
		MoneylineDraw: render(s.MoneylineDraw),
	}
	// Lines render whenever their sides are priced: a 0.0 spread is a
	// legitimate pick'em, not an absent market.
	if s.HasSpread() {
		p.SpreadLine = domain.FormatLine(s.SpreadLine)
		p.SpreadHome = render(s.SpreadHome)
		p.SpreadAway = render(s.SpreadAway)
	}
	if s.HasTotal() {
		p.TotalLine = domain.FormatLine(s.TotalLine)
		p.TotalOver = render(s.TotalOver)
		p.TotalUnder = render(s.TotalUnder)
	}
	return p
}

// parseSheet converts the wire payload back to fixed point. Empty fields
// mean "not offered" and parse to zero.
func (p oddsPayload) parseSheet() (domain.OddsSheet, error) {
	var sheet domain.OddsSheet
	var err error

	parse := func(dst *int64, s string, fn func(string) (int64, error)) {
		if err != nil || s == "" {
			return
		}
		*dst, err = fn(s)
	}

	parse(&sheet.MoneylineHome, p.MoneylineHome, domain.ParseOdds)
	parse(&sheet.MoneylineAway, p.MoneylineAway, domain.ParseOdds)
	parse(&sheet.MoneylineDraw, p.MoneylineDraw, domain.ParseOdds)
	parse(&sheet.SpreadLine, p.SpreadLine, domain.ParseLine)
	parse(&sheet.SpreadHome, p.SpreadHome, domain.ParseOdds)
	parse(&sheet.SpreadAway, p.SpreadAway, domain.ParseOdds)
	parse(&sheet.TotalLine, p.TotalLine, domain.ParseLine)
	parse(&sheet.TotalOver, p.TotalOver, domain.ParseOdds)
	parse(&sheet.TotalUnder, p.TotalUnder, domain.ParseOdds)

	return sheet, err
}

// getOddsResponse pairs the board with the market state so clients can
// tell a frozen board from a live one.
type getOddsResponse struct {
	MarketID string      `json:"market_id"`
	State    string      `json:"state"`
	Odds     oddsPayload `json:"odds"`
}

// GetOdds returns the current price board for a market.
// GET /api/markets/{id}/odds
func (h *OddsHandler) GetOdds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	sheet, state, err := h.odds.GetOdds(r.Context(), id)
	if err != nil {
		respondError(w, r, h.logger, "get odds", err)
		return
	}

	writeJSON(w, http.StatusOK, getOddsResponse{
		MarketID: id,
		State:    string(state),
		Odds:     renderSheet(sheet),
	})
}

// setOddsResponse reports the accepted board and whether this update
// opened the market.
type setOddsResponse struct {
	Market domain.Market `json:"market"`
	Opened bool          `json:"opened"`
}

// SetOdds replaces the full price board for a market. The first board
// carrying both moneyline sides transitions pending -> open.
// PUT /api/markets/{id}/odds
func (h *OddsHandler) SetOdds(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var payload oddsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sheet, err := payload.parseSheet()
	if err != nil {
		respondError(w, r, h.logger, "parse odds", err)
		return
	}

	market, opened, err := h.odds.SetOdds(r.Context(), id, sheet, auth.ActorFrom(r.Context()))
	if err != nil {
		respondError(w, r, h.logger, "set odds", err)
		return
	}

	writeJSON(w, http.StatusOK, setOddsResponse{Market: market, Opened: opened})
}
