package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/metrics"
	"github.com/wagerhouse/bookd/internal/treasury"
)

var errStoreDown = errors.New("store down")

type fakeMarketStore struct {
	mu   sync.Mutex
	rows map[string]domain.Market
	fail bool
}

func newFakeMarketStore() *fakeMarketStore {
	return &fakeMarketStore{rows: make(map[string]domain.Market)}
}

func (f *fakeMarketStore) Create(_ context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	if _, ok := f.rows[m.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.rows[m.ID] = m
	return nil
}

func (f *fakeMarketStore) Update(_ context.Context, m domain.Market) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	if _, ok := f.rows[m.ID]; !ok {
		return domain.ErrNotFound
	}
	f.rows[m.ID] = m
	return nil
}

func (f *fakeMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) List(_ context.Context, states []domain.MarketState, _ domain.ListOpts) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Market
	for _, m := range f.rows {
		if len(states) == 0 {
			out = append(out, m)
			continue
		}
		for _, st := range states {
			if m.State == st {
				out = append(out, m)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeMarketStore) ListFinalBefore(_ context.Context, cutoff time.Time, _ int) ([]domain.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Market
	for _, m := range f.rows {
		if m.State.Final() && m.UpdatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeMarketStore) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

type fakePositionStore struct {
	mu   sync.Mutex
	rows map[string]map[uint64]domain.Position
	fail bool
}

func newFakePositionStore() *fakePositionStore {
	return &fakePositionStore{rows: make(map[string]map[uint64]domain.Position)}
}

func (f *fakePositionStore) Insert(_ context.Context, p domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	if f.rows[p.MarketID] == nil {
		f.rows[p.MarketID] = make(map[uint64]domain.Position)
	}
	f.rows[p.MarketID][p.ID] = p
	return nil
}

func (f *fakePositionStore) SettleBatch(_ context.Context, marketID string, positions []domain.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	for _, p := range positions {
		if _, ok := f.rows[marketID][p.ID]; ok {
			f.rows[marketID][p.ID] = p
		}
	}
	return nil
}

func (f *fakePositionStore) GetByID(_ context.Context, marketID string, id uint64) (domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[marketID][id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePositionStore) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Position, 0, len(f.rows[marketID]))
	for _, p := range f.rows[marketID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakePositionStore) ListByBettor(_ context.Context, bettor common.Address, _ domain.ListOpts) ([]domain.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Position
	for _, byID := range f.rows {
		for _, p := range byID {
			if p.Bettor == bettor {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.After(out[j].PlacedAt) })
	return out, nil
}

func (f *fakePositionStore) DeleteByMarket(_ context.Context, marketID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := int64(len(f.rows[marketID]))
	delete(f.rows, marketID)
	return n, nil
}

type fakeLimitStore struct {
	mu   sync.Mutex
	rows map[string]map[domain.ExposureSlot]domain.LimitRow
	fail bool
}

func newFakeLimitStore() *fakeLimitStore {
	return &fakeLimitStore{rows: make(map[string]map[domain.ExposureSlot]domain.LimitRow)}
}

func (f *fakeLimitStore) UpsertRows(_ context.Context, marketID string, rows map[domain.ExposureSlot]domain.LimitRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errStoreDown
	}
	if f.rows[marketID] == nil {
		f.rows[marketID] = make(map[domain.ExposureSlot]domain.LimitRow)
	}
	for slot, row := range rows {
		f.rows[marketID][slot] = row
	}
	return nil
}

func (f *fakeLimitStore) Get(_ context.Context, marketID string) (domain.ExposureSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows, ok := f.rows[marketID]
	if !ok {
		return domain.ExposureSnapshot{}, domain.ErrNotFound
	}
	snap := domain.ExposureSnapshot{Slots: make(map[domain.ExposureSlot]domain.LimitRow)}
	for slot, row := range rows {
		if slot == domain.SlotGlobal {
			snap.Global = row
			continue
		}
		snap.Slots[slot] = row
	}
	return snap, nil
}

func (f *fakeLimitStore) DeleteByMarket(_ context.Context, marketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, marketID)
	return nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (f *fakeAuditStore) Log(_ context.Context, actor, action, entity string, detail map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, domain.AuditEntry{
		ID:        int64(len(f.entries) + 1),
		Actor:     actor,
		Action:    action,
		Entity:    entity,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (f *fakeAuditStore) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEntry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeAuditStore) ListBefore(_ context.Context, cutoff time.Time, _ int) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEntry
	for _, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuditStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []domain.AuditEntry
	var n int64
	for _, e := range f.entries {
		if e.CreatedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	f.entries = kept
	return n, nil
}

// actions returns the logged action names in order.
func (f *fakeAuditStore) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		published: make(map[string][][]byte),
		streams:   make(map[string][][]byte),
	}
}

func (f *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[channel] = append(f.published[channel], payload)
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streams[stream] = append(f.streams[stream], payload)
	return nil
}

func (f *fakeBus) StreamRead(_ context.Context, stream, _ string, _ int) ([]domain.StreamMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.StreamMessage, 0, len(f.streams[stream]))
	for i, p := range f.streams[stream] {
		out = append(out, domain.StreamMessage{ID: fmt.Sprintf("%d-0", i+1), Payload: p})
	}
	return out, nil
}

func (f *fakeBus) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published[channel])
}

type fakeOddsCache struct {
	mu     sync.Mutex
	sheets map[string]domain.OddsSheet
	states map[string]domain.MarketState
}

func newFakeOddsCache() *fakeOddsCache {
	return &fakeOddsCache{
		sheets: make(map[string]domain.OddsSheet),
		states: make(map[string]domain.MarketState),
	}
}

func (f *fakeOddsCache) Set(_ context.Context, marketID string, sheet domain.OddsSheet, state domain.MarketState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheets[marketID] = sheet
	f.states[marketID] = state
	return nil
}

func (f *fakeOddsCache) Get(_ context.Context, marketID string) (domain.OddsSheet, domain.MarketState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sheet, ok := f.sheets[marketID]
	if !ok {
		return domain.OddsSheet{}, "", domain.ErrNotFound
	}
	return sheet, f.states[marketID], nil
}

func (f *fakeOddsCache) Invalidate(_ context.Context, marketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sheets, marketID)
	delete(f.states, marketID)
	return nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: make(map[string]bool)}
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, domain.ErrLockHeld
	}
	f.held[key] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
	}, nil
}

// deps bundles the whole service stack against in-memory fakes and a
// real vault.
type deps struct {
	registry  *Registry
	markets   *fakeMarketStore
	positions *fakePositionStore
	limits    *fakeLimitStore
	audit     *fakeAuditStore
	bus       *fakeBus
	cache     *fakeOddsCache
	locks     *fakeLocks
	vault     *treasury.Vault

	marketSvc   *MarketService
	oddsSvc     *OddsService
	betSvc      *BetService
	settleSvc   *SettlementService
	riskSvc     *RiskService
	treasurySvc *TreasuryService
}

func newDeps(t *testing.T, openingPool int64) *deps {
	t.Helper()
	d := &deps{
		registry:  NewRegistry(),
		markets:   newFakeMarketStore(),
		positions: newFakePositionStore(),
		limits:    newFakeLimitStore(),
		audit:     &fakeAuditStore{},
		bus:       newFakeBus(),
		cache:     newFakeOddsCache(),
		locks:     newFakeLocks(),
		vault:     treasury.NewVault(openingPool),
	}
	d.wire()
	return d
}

// rebuild recreates the service stack over the same stores and vault
// with an empty registry, as a process restart would.
func rebuild(t *testing.T, old *deps) *deps {
	t.Helper()
	d := &deps{
		registry:  NewRegistry(),
		markets:   old.markets,
		positions: old.positions,
		limits:    old.limits,
		audit:     old.audit,
		bus:       old.bus,
		cache:     old.cache,
		locks:     old.locks,
		vault:     old.vault,
	}
	d.wire()
	return d
}

func (d *deps) wire() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	defaults := EngineDefaults{
		PushPolicy: domain.PushLose,
		MaxStake:   1_000_000,
	}
	d.marketSvc = NewMarketService(d.registry, d.markets, d.limits, d.positions, d.audit, d.bus, d.vault, m, defaults, logger)
	d.oddsSvc = NewOddsService(d.registry, d.markets, d.cache, d.bus, d.audit, m, logger)
	d.betSvc = NewBetService(d.registry, d.positions, d.limits, d.bus, nil, m, 0, logger)
	d.settleSvc = NewSettlementService(d.registry, d.markets, d.positions, d.limits, d.locks, d.cache, d.bus, d.audit, nil, nil, m, logger)
	d.riskSvc = NewRiskService(d.registry, d.limits, d.audit, d.bus, nil, d.vault, m, logger)
	d.treasurySvc = NewTreasuryService(d.vault, d.audit, m, logger)
}

func fullSheet() domain.OddsSheet {
	return domain.OddsSheet{
		MoneylineHome: 1900,
		MoneylineAway: 1900,
		MoneylineDraw: 3200,
		SpreadLine:    -35,
		SpreadHome:    1900,
		SpreadAway:    1900,
		TotalLine:     475,
		TotalOver:     1900,
		TotalUnder:    1900,
	}
}

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

// openMarket creates a funded market and posts the opening line.
func openMarket(t *testing.T, d *deps, globalMax int64) domain.Market {
	t.Helper()
	rec, err := d.marketSvc.CreateMarket(context.Background(), CreateMarketParams{
		HomeTeam:    "Hawks",
		AwayTeam:    "Wolves",
		ScheduledAt: time.Now().Add(2 * time.Hour),
		GlobalMax:   &globalMax,
	}, "test")
	if err != nil {
		t.Fatalf("create market: %v", err)
	}
	if _, _, err := d.oddsSvc.SetOdds(context.Background(), rec.ID, fullSheet(), "feed"); err != nil {
		t.Fatalf("set odds: %v", err)
	}
	return rec
}
