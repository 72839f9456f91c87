package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
	"github.com/wagerhouse/bookd/internal/service"
	"github.com/wagerhouse/bookd/internal/treasury"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

var alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func sampleMarket(id string, state domain.MarketState) domain.Market {
	return domain.Market{
		ID:          id,
		HomeTeam:    "Hawks",
		AwayTeam:    "Wolves",
		ScheduledAt: time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC),
		State:       state,
		PushPolicy:  domain.PushLose,
	}
}

type fakeMarketSvc struct {
	market  domain.Market
	markets []domain.Market
	total   int64
	err     error

	gotParams service.CreateMarketParams
	gotActor  string
	gotStates []domain.MarketState
	gotOpts   domain.ListOpts
}

func (f *fakeMarketSvc) CreateMarket(_ context.Context, params service.CreateMarketParams, actor string) (domain.Market, error) {
	f.gotParams, f.gotActor = params, actor
	if f.err != nil {
		return domain.Market{}, f.err
	}
	return f.market, nil
}

func (f *fakeMarketSvc) GetMarket(_ context.Context, _ string) (domain.Market, error) {
	if f.err != nil {
		return domain.Market{}, f.err
	}
	return f.market, nil
}

func (f *fakeMarketSvc) ListMarkets(_ context.Context, states []domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	f.gotStates, f.gotOpts = states, opts
	return f.markets, f.err
}

func (f *fakeMarketSvc) Count(_ context.Context) (int64, error) {
	return f.total, nil
}

type fakeOddsSvc struct {
	market domain.Market
	opened bool
	sheet  domain.OddsSheet
	state  domain.MarketState
	err    error

	gotSheet domain.OddsSheet
	gotActor string
}

func (f *fakeOddsSvc) SetOdds(_ context.Context, _ string, sheet domain.OddsSheet, actor string) (domain.Market, bool, error) {
	f.gotSheet, f.gotActor = sheet, actor
	if f.err != nil {
		return domain.Market{}, false, f.err
	}
	return f.market, f.opened, nil
}

func (f *fakeOddsSvc) GetOdds(_ context.Context, _ string) (domain.OddsSheet, domain.MarketState, error) {
	if f.err != nil {
		return domain.OddsSheet{}, "", f.err
	}
	return f.sheet, f.state, nil
}

type fakeBetSvc struct {
	pos  domain.Position
	list []domain.Position
	err  error

	gotMarketID string
	gotBettor   common.Address
	gotKind     domain.BetKind
	gotSide     domain.Side
	gotStake    int64
	gotBetID    uint64
}

func (f *fakeBetSvc) PlaceBet(_ context.Context, marketID string, bettor common.Address, kind domain.BetKind, side domain.Side, stake int64) (domain.Position, error) {
	f.gotMarketID, f.gotBettor = marketID, bettor
	f.gotKind, f.gotSide, f.gotStake = kind, side, stake
	if f.err != nil {
		return domain.Position{}, f.err
	}
	return f.pos, nil
}

func (f *fakeBetSvc) GetBet(_ context.Context, marketID string, id uint64) (domain.Position, error) {
	f.gotMarketID, f.gotBetID = marketID, id
	if f.err != nil {
		return domain.Position{}, f.err
	}
	return f.pos, nil
}

func (f *fakeBetSvc) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Position, error) {
	f.gotMarketID = marketID
	return f.list, f.err
}

func (f *fakeBetSvc) ListByBettor(_ context.Context, bettor common.Address, _ domain.ListOpts) ([]domain.Position, error) {
	f.gotBettor = bettor
	return f.list, f.err
}

type fakeRiskSvc struct {
	snap      domain.ExposureSnapshot
	globalMax int64
	err       error

	gotSlot   domain.ExposureSlot
	gotMax    int64
	gotMaxes  map[domain.ExposureSlot]int64
	gotAmount int64
	gotActor  string
}

func (f *fakeRiskSvc) Exposure(_ context.Context, _ string) (domain.ExposureSnapshot, error) {
	return f.snap, f.err
}

func (f *fakeRiskSvc) SetLimit(_ context.Context, _ string, slot domain.ExposureSlot, max int64, actor string) (domain.ExposureSnapshot, error) {
	f.gotSlot, f.gotMax, f.gotActor = slot, max, actor
	return f.snap, f.err
}

func (f *fakeRiskSvc) SetAllLimits(_ context.Context, _ string, maxes map[domain.ExposureSlot]int64, actor string) (domain.ExposureSnapshot, error) {
	f.gotMaxes, f.gotActor = maxes, actor
	return f.snap, f.err
}

func (f *fakeRiskSvc) Fund(_ context.Context, _ string, amount int64, actor string) (int64, error) {
	f.gotAmount, f.gotActor = amount, actor
	return f.globalMax, f.err
}

type fakeLifecycleSvc struct {
	market domain.Market
	result engine.SettlementResult
	err    error

	gotHome  int64
	gotAway  int64
	gotActor string
}

func (f *fakeLifecycleSvc) Start(_ context.Context, _ string, actor string) (domain.Market, error) {
	f.gotActor = actor
	if f.err != nil {
		return domain.Market{}, f.err
	}
	return f.market, nil
}

func (f *fakeLifecycleSvc) Settle(_ context.Context, _ string, homeScore, awayScore int64, actor string) (engine.SettlementResult, error) {
	f.gotHome, f.gotAway, f.gotActor = homeScore, awayScore, actor
	return f.result, f.err
}

func (f *fakeLifecycleSvc) Cancel(_ context.Context, _ string, actor string) (engine.SettlementResult, error) {
	f.gotActor = actor
	return f.result, f.err
}

type fakeTreasurySvc struct {
	balance   int64
	escrow    int64
	pool      int64
	transfers []treasury.Transfer
	err       error

	gotBettor common.Address
	gotAmount int64
	gotActor  string
	gotLimit  int
}

func (f *fakeTreasurySvc) Deposit(_ context.Context, bettor common.Address, amount int64, actor string) (int64, error) {
	f.gotBettor, f.gotAmount, f.gotActor = bettor, amount, actor
	return f.balance, f.err
}

func (f *fakeTreasurySvc) Balance(bettor common.Address) int64 {
	f.gotBettor = bettor
	return f.balance
}

func (f *fakeTreasurySvc) Escrow(_ context.Context, _ string) (int64, error) {
	return f.escrow, f.err
}

func (f *fakeTreasurySvc) Pool() int64 { return f.pool }

func (f *fakeTreasurySvc) Transfers(limit int) []treasury.Transfer {
	f.gotLimit = limit
	return f.transfers
}

type fakeReportStore struct {
	blobs   []domain.BlobInfo
	content string
	err     error

	gotPath   string
	gotPrefix string
}

func (f *fakeReportStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	f.gotPath = path
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func (f *fakeReportStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	f.gotPrefix = prefix
	return f.blobs, f.err
}
