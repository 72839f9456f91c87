package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/metrics"
)

// OddsService applies feed updates to the board and serves price reads
// through the odds cache.
type OddsService struct {
	registry *Registry
	markets  domain.MarketStore
	cache    domain.OddsCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewOddsService creates an OddsService with all required dependencies.
func NewOddsService(
	registry *Registry,
	markets domain.MarketStore,
	cache domain.OddsCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *OddsService {
	return &OddsService{
		registry: registry,
		markets:  markets,
		cache:    cache,
		bus:      bus,
		audit:    audit,
		metrics:  m,
		logger:   logger,
	}
}

// SetOdds replaces the board and opens the market when this update
// completes the opening line. The board itself refuses updates on a
// frozen or finalized market. Returns the refreshed record and whether
// this update opened the market.
func (s *OddsService) SetOdds(ctx context.Context, marketID string, sheet domain.OddsSheet, actor string) (domain.Market, bool, error) {
	var (
		rec    domain.Market
		opened bool
	)
	err := s.registry.With(marketID, func(h *handle) error {
		if err := h.eng.SetOdds(sheet); err != nil {
			return err
		}
		opened = h.eng.TryOpen()
		rec = h.commit(time.Now().UTC())
		return nil
	})
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("odds_service: set odds %q: %w", marketID, err)
	}

	if err := s.markets.Update(ctx, rec); err != nil {
		s.metrics.RecordPersistFailure("market_update")
		s.logger.ErrorContext(ctx, "odds_service: persist market failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
	if cacheErr := s.cache.Set(ctx, marketID, rec.Odds, rec.State); cacheErr != nil {
		s.logger.WarnContext(ctx, "odds_service: cache set failed",
			slog.String("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}

	evt, _ := json.Marshal(domain.OddsEvent{
		MarketID: marketID,
		Odds:     rec.Odds,
		Opened:   opened,
		At:       rec.UpdatedAt,
	})
	if pubErr := s.bus.Publish(ctx, domain.ChannelOdds, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "odds_service: publish odds failed",
			slog.String("market_id", marketID),
			slog.String("error", pubErr.Error()),
		)
	}

	if opened {
		stateEvt, _ := json.Marshal(domain.MarketEvent{
			MarketID: marketID,
			State:    rec.State,
			At:       rec.UpdatedAt,
		})
		if pubErr := s.bus.Publish(ctx, domain.ChannelMarkets, stateEvt); pubErr != nil {
			s.logger.WarnContext(ctx, "odds_service: publish open failed",
				slog.String("market_id", marketID),
				slog.String("error", pubErr.Error()),
			)
		}
		if auditErr := s.audit.Log(ctx, actor, "market.open", marketID, map[string]any{
			"moneyline_home": rec.Odds.MoneylineHome,
			"moneyline_away": rec.Odds.MoneylineAway,
		}); auditErr != nil {
			s.logger.WarnContext(ctx, "odds_service: audit log failed",
				slog.String("market_id", marketID),
				slog.String("error", auditErr.Error()),
			)
		}
		s.logger.InfoContext(ctx, "odds_service: opening line posted, market open",
			slog.String("market_id", marketID),
		)
	} else {
		s.logger.DebugContext(ctx, "odds_service: odds updated",
			slog.String("market_id", marketID),
		)
	}

	return rec, opened, nil
}

// GetOdds serves the current board, cache first with a registry and
// store fallback, back-filling the cache on a miss.
func (s *OddsService) GetOdds(ctx context.Context, marketID string) (domain.OddsSheet, domain.MarketState, error) {
	sheet, state, err := s.cache.Get(ctx, marketID)
	if err == nil {
		return sheet, state, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "odds_service: cache get failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	regErr := s.registry.With(marketID, func(h *handle) error {
		sheet = h.eng.Odds()
		state = h.eng.State()
		return nil
	})
	if regErr != nil {
		if !errors.Is(regErr, domain.ErrNotFound) {
			return domain.OddsSheet{}, "", fmt.Errorf("odds_service: get odds %q: %w", marketID, regErr)
		}
		rec, storeErr := s.markets.GetByID(ctx, marketID)
		if storeErr != nil {
			return domain.OddsSheet{}, "", fmt.Errorf("odds_service: get odds %q: %w", marketID, storeErr)
		}
		sheet, state = rec.Odds, rec.State
	}

	if cacheErr := s.cache.Set(ctx, marketID, sheet, state); cacheErr != nil {
		s.logger.WarnContext(ctx, "odds_service: cache backfill failed",
			slog.String("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}
	return sheet, state, nil
}
