package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
)

func newLifecycleMux(svc *fakeLifecycleSvc) *http.ServeMux {
	h := NewLifecycleHandler(svc, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/markets/{id}/start", h.Start)
	mux.HandleFunc("POST /api/markets/{id}/settle", h.Settle)
	mux.HandleFunc("POST /api/markets/{id}/cancel", h.Cancel)
	return mux
}

func TestStart(t *testing.T) {
	svc := &fakeLifecycleSvc{market: sampleMarket("mkt_1", domain.MarketStarted)}
	mux := newLifecycleMux(svc)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/start", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got domain.Market
	decodeJSON(t, rr, &got)
	require.Equal(t, domain.MarketStarted, got.State)
}

func TestStartFromPendingRejected(t *testing.T) {
	mux := newLifecycleMux(&fakeLifecycleSvc{err: domain.ErrNoOpeningLine})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/start", nil))
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestSettle(t *testing.T) {
	svc := &fakeLifecycleSvc{result: engine.SettlementResult{
		Positions: 4, Winners: 1, Pushes: 1, PaidOut: 1_900, Refunded: 500, Residual: 230,
	}}
	mux := newLifecycleMux(svc)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/settle",
		strings.NewReader(`{"home_score":24,"away_score":21}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(24), svc.gotHome)
	require.Equal(t, int64(21), svc.gotAway)

	var resp settlementResponse
	decodeJSON(t, rr, &resp)
	require.Equal(t, "mkt_1", resp.MarketID)
	require.Equal(t, "settled", resp.Outcome)
	require.Equal(t, 4, resp.Positions)
	require.Equal(t, 1, resp.Winners)
	require.Equal(t, int64(230), resp.Residual)
}

func TestSettleWhileLockHeld(t *testing.T) {
	mux := newLifecycleMux(&fakeLifecycleSvc{err: domain.ErrLockHeld})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/settle",
		strings.NewReader(`{"home_score":10,"away_score":10}`)))
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestCancel(t *testing.T) {
	svc := &fakeLifecycleSvc{result: engine.SettlementResult{Positions: 2, Refunded: 1_000}}
	mux := newLifecycleMux(svc)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/cancel", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp settlementResponse
	decodeJSON(t, rr, &resp)
	require.Equal(t, "cancelled", resp.Outcome)
	require.Equal(t, int64(1_000), resp.Refunded)
	require.Zero(t, resp.PaidOut)
}
