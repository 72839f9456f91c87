package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
	"github.com/wagerhouse/bookd/internal/metrics"
)

// EngineDefaults carries the book parameters applied to every market
// that does not override them at creation.
type EngineDefaults struct {
	PushPolicy domain.PushPolicy
	MaxStake   int64
	GlobalMax  int64
	SlotMax    int64
}

// MarketService creates markets, rehydrates them at boot, and serves
// market reads.
type MarketService struct {
	registry  *Registry
	markets   domain.MarketStore
	limits    domain.LimitStore
	positions domain.PositionStore
	audit     domain.AuditStore
	bus       domain.SignalBus
	vault     domain.TokenVault
	metrics   *metrics.Metrics
	defaults  EngineDefaults
	logger    *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	registry *Registry,
	markets domain.MarketStore,
	limits domain.LimitStore,
	positions domain.PositionStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	vault domain.TokenVault,
	m *metrics.Metrics,
	defaults EngineDefaults,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		registry:  registry,
		markets:   markets,
		limits:    limits,
		positions: positions,
		audit:     audit,
		bus:       bus,
		vault:     vault,
		metrics:   m,
		defaults:  defaults,
		logger:    logger,
	}
}

// CreateMarketParams describes a new fixture. Zero-valued overrides
// fall back to the configured engine defaults.
type CreateMarketParams struct {
	HomeTeam    string
	AwayTeam    string
	ExternalID  string
	ScheduledAt time.Time
	PushPolicy  domain.PushPolicy
	GlobalMax   *int64
	SlotMax     *int64
}

// CreateMarket opens the book for a new fixture: a fresh engine in the
// registry plus the market row and its eight exposure rows in the
// store. Unlike the write-behind paths, creation fails hard if the
// store rejects it, so no market ever runs without a durable row.
func (s *MarketService) CreateMarket(ctx context.Context, params CreateMarketParams, actor string) (domain.Market, error) {
	if strings.TrimSpace(params.HomeTeam) == "" || strings.TrimSpace(params.AwayTeam) == "" {
		return domain.Market{}, fmt.Errorf("market_service: create: %w: both teams are required", domain.ErrValidation)
	}
	if strings.EqualFold(strings.TrimSpace(params.HomeTeam), strings.TrimSpace(params.AwayTeam)) {
		return domain.Market{}, fmt.Errorf("market_service: create: %w: a team cannot play itself", domain.ErrValidation)
	}
	if params.ScheduledAt.IsZero() {
		return domain.Market{}, fmt.Errorf("market_service: create: %w: scheduled time is required", domain.ErrValidation)
	}

	policy := params.PushPolicy
	if policy == "" {
		policy = s.defaults.PushPolicy
	}
	switch policy {
	case domain.PushLose, domain.PushRefund:
	default:
		return domain.Market{}, fmt.Errorf("market_service: create: %w: unknown push policy %q", domain.ErrValidation, policy)
	}

	globalMax := s.defaults.GlobalMax
	if params.GlobalMax != nil {
		globalMax = *params.GlobalMax
	}
	slotMax := s.defaults.SlotMax
	if params.SlotMax != nil {
		slotMax = *params.SlotMax
	}
	if globalMax < 0 || slotMax < 0 {
		return domain.Market{}, fmt.Errorf("market_service: create: %w: negative exposure limit", domain.ErrValidation)
	}

	id := uuid.NewString()
	eng := engine.New(engine.Config{
		ID:         id,
		Vault:      s.vault,
		GlobalMax:  globalMax,
		SlotMax:    slotMax,
		MaxStake:   s.defaults.MaxStake,
		PushPolicy: policy,
	})

	now := time.Now().UTC()
	rec := domain.Market{
		ID:          id,
		HomeTeam:    strings.TrimSpace(params.HomeTeam),
		AwayTeam:    strings.TrimSpace(params.AwayTeam),
		ExternalID:  strings.TrimSpace(params.ExternalID),
		ScheduledAt: params.ScheduledAt.UTC(),
		State:       domain.MarketPending,
		PushPolicy:  policy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.registry.Add(eng, rec); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create: %w", err)
	}
	if err := s.markets.Create(ctx, rec); err != nil {
		s.registry.Remove(id)
		return domain.Market{}, fmt.Errorf("market_service: create %q: %w", id, err)
	}
	snap := eng.Exposure()
	if err := s.limits.UpsertRows(ctx, id, snap.Rows()); err != nil {
		// Roll the market row back too; a market without exposure rows
		// would rehydrate unfunded.
		if delErr := s.markets.Delete(ctx, id); delErr != nil {
			s.logger.ErrorContext(ctx, "market_service: create rollback failed",
				slog.String("market_id", id),
				slog.String("error", delErr.Error()),
			)
		}
		s.registry.Remove(id)
		return domain.Market{}, fmt.Errorf("market_service: create %q: persist exposure: %w", id, err)
	}

	if auditErr := s.audit.Log(ctx, actor, "market.create", id, map[string]any{
		"home_team":   rec.HomeTeam,
		"away_team":   rec.AwayTeam,
		"external_id": rec.ExternalID,
		"scheduled":   rec.ScheduledAt,
		"push_policy": string(policy),
		"global_max":  globalMax,
		"slot_max":    slotMax,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "market_service: audit log failed",
			slog.String("market_id", id),
			slog.String("error", auditErr.Error()),
		)
	}

	s.publishState(ctx, rec)
	s.metrics.UpdateActiveMarkets(s.registry.ActiveCount())
	s.metrics.UpdateExposure(id, snap.Global.Current, slotCurrents(snap))

	s.logger.InfoContext(ctx, "market_service: market created",
		slog.String("market_id", id),
		slog.String("home", rec.HomeTeam),
		slog.String("away", rec.AwayTeam),
		slog.Int64("global_max", globalMax),
	)
	return rec, nil
}

// GetMarket reads a market: resident engines are authoritative,
// finalized markets fall back to the store.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	var rec domain.Market
	err := s.registry.With(id, func(h *handle) error {
		rec = h.snapshot()
		return nil
	})
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	rec, err = s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}
	return rec, nil
}

// ListMarkets returns markets from the store, optionally filtered by
// state. The store is a write-behind read model; it can trail a live
// engine by one failed flush.
func (s *MarketService) ListMarkets(ctx context.Context, states []domain.MarketState, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, states, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the store.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// Rehydrate loads every non-final market from the stores and rebuilds
// its engine in the registry. Called once at boot, before the API
// starts accepting bets. A market that cannot be rebuilt fails the
// boot: a book with stuck escrow must be loud, not skipped.
func (s *MarketService) Rehydrate(ctx context.Context) (int, error) {
	live := []domain.MarketState{domain.MarketPending, domain.MarketOpen, domain.MarketStarted}
	records, err := s.markets.List(ctx, live, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("market_service: rehydrate: list: %w", err)
	}

	restored := 0
	for _, rec := range records {
		snap, err := s.limits.Get(ctx, rec.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// No exposure rows means a half-failed flush; restore the
			// book unfunded so it refuses bets until an operator
			// re-funds it.
			s.logger.WarnContext(ctx, "market_service: rehydrate found no exposure rows",
				slog.String("market_id", rec.ID),
			)
			snap = domain.ExposureSnapshot{}
		} else if err != nil {
			return restored, fmt.Errorf("market_service: rehydrate %q: exposure: %w", rec.ID, err)
		}

		positions, err := s.positions.ListByMarket(ctx, rec.ID, domain.ListOpts{})
		if err != nil {
			return restored, fmt.Errorf("market_service: rehydrate %q: positions: %w", rec.ID, err)
		}

		eng, err := engine.Restore(rec, snap, positions, engine.Config{
			Vault:    s.vault,
			MaxStake: s.defaults.MaxStake,
		})
		if err != nil {
			return restored, fmt.Errorf("market_service: rehydrate: %w", err)
		}
		if err := s.registry.Add(eng, rec); err != nil {
			return restored, fmt.Errorf("market_service: rehydrate: %w", err)
		}
		restored++
	}

	s.metrics.UpdateActiveMarkets(s.registry.ActiveCount())
	s.logger.InfoContext(ctx, "market_service: rehydrated markets",
		slog.Int("count", restored),
	)
	return restored, nil
}

// publishState announces a lifecycle transition on the markets channel.
func (s *MarketService) publishState(ctx context.Context, rec domain.Market) {
	evt, _ := json.Marshal(domain.MarketEvent{
		MarketID: rec.ID,
		State:    rec.State,
		At:       rec.UpdatedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, evt); err != nil {
		s.logger.WarnContext(ctx, "market_service: publish state failed",
			slog.String("market_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

// slotCurrents flattens a snapshot's per-slot reservations for the
// exposure gauges.
func slotCurrents(snap domain.ExposureSnapshot) map[string]int64 {
	out := make(map[string]int64, len(snap.Slots))
	for slot, row := range snap.Slots {
		out[string(slot)] = row.Current
	}
	return out
}
