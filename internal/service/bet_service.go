package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/metrics"
	"github.com/wagerhouse/bookd/internal/notify"
)

// BetService admits bets through the engine and flushes accepted
// positions to the store.
type BetService struct {
	registry  *Registry
	positions domain.PositionStore
	limits    domain.LimitStore
	bus       domain.SignalBus
	notifier  *notify.Notifier
	metrics   *metrics.Metrics
	largeBet  int64 // notify threshold in token units, 0 disables
	logger    *slog.Logger
}

// NewBetService creates a BetService with all required dependencies.
// largeBet is the stake at which a bet is worth waking an operator for;
// zero disables those notifications.
func NewBetService(
	registry *Registry,
	positions domain.PositionStore,
	limits domain.LimitStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	largeBet int64,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		registry:  registry,
		positions: positions,
		limits:    limits,
		bus:       bus,
		notifier:  notifier,
		metrics:   m,
		largeBet:  largeBet,
		logger:    logger,
	}
}

// PlaceBet runs the engine's admission flow under the market's mutex.
// The engine either accepts the bet completely (stake escrowed,
// exposure reserved, position recorded) or leaves no trace; this layer
// then flushes the accepted position write-behind, so a store failure
// is an availability problem, never an accounting one.
func (s *BetService) PlaceBet(ctx context.Context, marketID string, bettor common.Address, kind domain.BetKind, side domain.Side, stake int64) (domain.Position, error) {
	var (
		pos  domain.Position
		snap domain.ExposureSnapshot
	)
	err := s.registry.With(marketID, func(h *handle) error {
		p, err := h.eng.PlaceBet(ctx, bettor, kind, side, stake)
		if err != nil {
			return err
		}
		pos = p
		snap = h.eng.Exposure()
		return nil
	})
	if err != nil {
		s.metrics.RecordBet(string(kind), "rejected", 0)
		return domain.Position{}, fmt.Errorf("bet_service: place %s %s on %q: %w", kind, side, marketID, err)
	}

	if insErr := s.positions.Insert(ctx, pos); insErr != nil {
		s.metrics.RecordPersistFailure("position_insert")
		s.logger.ErrorContext(ctx, "bet_service: persist position failed",
			slog.String("market_id", marketID),
			slog.Uint64("position_id", pos.ID),
			slog.String("error", insErr.Error()),
		)
	}
	if limErr := s.limits.UpsertRows(ctx, marketID, snap.Rows()); limErr != nil {
		s.metrics.RecordPersistFailure("limits_upsert")
		s.logger.ErrorContext(ctx, "bet_service: persist exposure failed",
			slog.String("market_id", marketID),
			slog.String("error", limErr.Error()),
		)
	}

	s.metrics.RecordBet(string(kind), "accepted", stake)
	s.metrics.UpdateExposure(marketID, snap.Global.Current, slotCurrents(snap))

	evt, _ := json.Marshal(domain.BetEvent{MarketID: marketID, Position: pos})
	if pubErr := s.bus.Publish(ctx, domain.ChannelBets, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "bet_service: publish bet failed",
			slog.String("market_id", marketID),
			slog.String("error", pubErr.Error()),
		)
	}

	if s.notifier != nil && s.largeBet > 0 && stake >= s.largeBet {
		msg := fmt.Sprintf("%s %s for %d on market %s (potential winnings %d)",
			kind, side, stake, marketID, pos.Winnings)
		if notifyErr := s.notifier.Notify(ctx, notify.EventLargeBet, "Large bet accepted", msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "bet_service: notify failed",
				slog.String("market_id", marketID),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "bet_service: bet accepted",
		slog.String("market_id", marketID),
		slog.Uint64("position_id", pos.ID),
		slog.String("bettor", bettor.Hex()),
		slog.String("kind", string(kind)),
		slog.String("side", string(side)),
		slog.Int64("stake", stake),
		slog.Int64("odds", pos.Odds),
	)
	return pos, nil
}

// GetBet reads one position. The resident engine's book is
// authoritative; markets evicted after finalization fall back to the
// store.
func (s *BetService) GetBet(ctx context.Context, marketID string, id uint64) (domain.Position, error) {
	var pos domain.Position
	err := s.registry.With(marketID, func(h *handle) error {
		p, err := h.eng.Position(id)
		if err != nil {
			return err
		}
		pos = p
		return nil
	})
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Position{}, fmt.Errorf("bet_service: get %d on %q: %w", id, marketID, err)
	}

	pos, storeErr := s.positions.GetByID(ctx, marketID, id)
	if storeErr != nil {
		return domain.Position{}, fmt.Errorf("bet_service: get %d on %q: %w", id, marketID, storeErr)
	}
	return pos, nil
}

// ListByMarket returns a market's positions from the store in journal
// order.
func (s *BetService) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by market %q: %w", marketID, err)
	}
	return positions, nil
}

// ListByBettor returns a bettor's positions across every market,
// newest first.
func (s *BetService) ListByBettor(ctx context.Context, bettor common.Address, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByBettor(ctx, bettor, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list by bettor %s: %w", bettor.Hex(), err)
	}
	return positions, nil
}
