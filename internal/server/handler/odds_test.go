package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagerhouse/bookd/internal/domain"
)

func newOddsMux(svc *fakeOddsSvc) *http.ServeMux {
	h := NewOddsHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets/{id}/odds", h.GetOdds)
	mux.HandleFunc("PUT /api/markets/{id}/odds", h.SetOdds)
	return mux
}

func TestGetOddsRendersDecimalStrings(t *testing.T) {
	svc := &fakeOddsSvc{
		sheet: domain.OddsSheet{
			MoneylineHome: 1850,
			MoneylineAway: 1950,
			SpreadLine:    -35,
			SpreadHome:    1909,
			SpreadAway:    1909,
		},
		state: domain.MarketOpen,
	}
	mux := newOddsMux(svc)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/markets/mkt_1/odds", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp getOddsResponse
	decodeJSON(t, rr, &resp)
	require.Equal(t, "mkt_1", resp.MarketID)
	require.Equal(t, "open", resp.State)
	require.Equal(t, "1.850", resp.Odds.MoneylineHome)
	require.Equal(t, "-3.5", resp.Odds.SpreadLine)
	require.Equal(t, "1.909", resp.Odds.SpreadHome)
	// Unoffered outcomes are absent, not "0.000".
	require.Empty(t, resp.Odds.MoneylineDraw)
	require.NotContains(t, rr.Body.String(), "total_line")
}

func TestGetOddsPickEmSpreadRenders(t *testing.T) {
	svc := &fakeOddsSvc{
		sheet: domain.OddsSheet{
			MoneylineHome: 1900, MoneylineAway: 1900,
			SpreadLine: 0, SpreadHome: 1900, SpreadAway: 1900,
		},
		state: domain.MarketOpen,
	}
	mux := newOddsMux(svc)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/markets/mkt_1/odds", nil))

	var resp getOddsResponse
	decodeJSON(t, rr, &resp)
	// A 0.0 line with priced sides is a pick'em, still on the board.
	require.Equal(t, "0.0", resp.Odds.SpreadLine)
	require.Equal(t, "1.900", resp.Odds.SpreadHome)
}

func TestSetOdds(t *testing.T) {
	svc := &fakeOddsSvc{market: sampleMarket("mkt_1", domain.MarketOpen), opened: true}
	mux := newOddsMux(svc)

	body := `{"moneyline_home":"1.850","moneyline_away":"1.950","total_line":"47.5","total_over":"1.900","total_under":"1.900"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	require.Equal(t, int64(1850), svc.gotSheet.MoneylineHome)
	require.Equal(t, int64(475), svc.gotSheet.TotalLine)
	require.Equal(t, int64(1900), svc.gotSheet.TotalOver)
	require.Zero(t, svc.gotSheet.SpreadHome) // not offered

	var resp setOddsResponse
	decodeJSON(t, rr, &resp)
	require.True(t, resp.Opened)
	require.Equal(t, domain.MarketOpen, resp.Market.State)
}

func TestSetOddsRejectsMalformedPrice(t *testing.T) {
	svc := &fakeOddsSvc{}
	mux := newOddsMux(svc)

	for _, body := range []string{
		`{"moneyline_home":"0.950"}`,  // below 1.000
		`{"moneyline_home":"1.9501"}`, // more than 3 decimals
		`{"spread_line":"woof"}`,      // not a number
	} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code, "body %s", body)
	}
	require.Empty(t, svc.gotActor) // the service was never reached
}

func TestSetOddsFrozenBoard(t *testing.T) {
	mux := newOddsMux(&fakeOddsSvc{err: domain.ErrOddsFrozen})
	body := `{"moneyline_home":"1.850","moneyline_away":"1.950"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rr.Code)
}
