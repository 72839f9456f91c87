package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
	"github.com/wagerhouse/bookd/internal/metrics"
	"github.com/wagerhouse/bookd/internal/notify"
)

// Settlement and cancellation of the same market contend for one lock,
// held long enough to cover the disbursement plus the store flush.
const settleLockTTL = 30 * time.Second

// ReportSink archives one settlement report to durable storage and
// returns where it landed. Nil-able: a deployment without object
// storage simply skips reports.
type ReportSink interface {
	WriteSettlement(ctx context.Context, rep domain.SettlementReport) (string, error)
}

// SettlementService drives the market lifecycle past its betting
// window: start, settle, cancel.
type SettlementService struct {
	registry  *Registry
	markets   domain.MarketStore
	positions domain.PositionStore
	limits    domain.LimitStore
	locks     domain.LockManager
	cache     domain.OddsCache
	bus       domain.SignalBus
	audit     domain.AuditStore
	notifier  *notify.Notifier
	reports   ReportSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewSettlementService creates a SettlementService with all required
// dependencies. reports may be nil when object storage is disabled.
func NewSettlementService(
	registry *Registry,
	markets domain.MarketStore,
	positions domain.PositionStore,
	limits domain.LimitStore,
	locks domain.LockManager,
	cache domain.OddsCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier *notify.Notifier,
	reports ReportSink,
	m *metrics.Metrics,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		registry:  registry,
		markets:   markets,
		positions: positions,
		limits:    limits,
		locks:     locks,
		cache:     cache,
		bus:       bus,
		audit:     audit,
		notifier:  notifier,
		reports:   reports,
		metrics:   m,
		logger:    logger,
	}
}

// Start freezes the board at kickoff and closes the betting window.
// Idempotent odds freezes are the engine's concern; a second Start is a
// state error.
func (s *SettlementService) Start(ctx context.Context, marketID, actor string) (domain.Market, error) {
	var rec domain.Market
	err := s.registry.With(marketID, func(h *handle) error {
		if err := h.eng.Start(); err != nil {
			return err
		}
		rec = h.commit(time.Now().UTC())
		return nil
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("settlement_service: start %q: %w", marketID, err)
	}

	s.flushMarket(ctx, rec)
	if cacheErr := s.cache.Set(ctx, marketID, rec.Odds, rec.State); cacheErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: cache set failed",
			slog.String("market_id", marketID),
			slog.String("error", cacheErr.Error()),
		)
	}
	s.publishState(ctx, rec)

	if auditErr := s.audit.Log(ctx, actor, "market.start", marketID, map[string]any{
		"home_team": rec.HomeTeam,
		"away_team": rec.AwayTeam,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "settlement_service: market started, board frozen",
		slog.String("market_id", marketID),
	)
	return rec, nil
}

// Settle scores the fixture and resolves every position: one atomic
// vault disbursement, then marks, releases and the ledger reset. The
// distributed lock keeps two operators from racing the same market;
// the engine would refuse the loser anyway, this just makes the race
// boring.
func (s *SettlementService) Settle(ctx context.Context, marketID string, homeScore, awayScore int64, actor string) (engine.SettlementResult, error) {
	unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
	if err != nil {
		return engine.SettlementResult{}, fmt.Errorf("settlement_service: settle %q: %w", marketID, err)
	}
	defer unlock()

	began := time.Now()
	var (
		rec       domain.Market
		res       engine.SettlementResult
		positions []domain.Position
	)
	err = s.registry.With(marketID, func(h *handle) error {
		r, err := h.eng.Settle(ctx, homeScore, awayScore)
		if err != nil {
			return err
		}
		res = r
		positions = h.eng.Positions()
		rec = h.commit(time.Now().UTC())
		return nil
	})
	if err != nil {
		return engine.SettlementResult{}, fmt.Errorf("settlement_service: settle %q: %w", marketID, err)
	}

	s.finalize(ctx, rec, positions, res)

	if auditErr := s.audit.Log(ctx, actor, "market.settle", marketID, map[string]any{
		"home_score": homeScore,
		"away_score": awayScore,
		"positions":  res.Positions,
		"winners":    res.Winners,
		"pushes":     res.Pushes,
		"paid_out":   res.PaidOut,
		"refunded":   res.Refunded,
		"residual":   res.Residual,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("error", auditErr.Error()),
		)
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%s %d - %d %s: %d positions, %d winners paid %d, residual %d to pool",
			rec.HomeTeam, homeScore, awayScore, rec.AwayTeam,
			res.Positions, res.Winners, res.PaidOut, res.Residual)
		if notifyErr := s.notifier.Notify(ctx, notify.EventMarketSettled, "Market settled", msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "settlement_service: notify failed",
				slog.String("market_id", marketID),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	s.metrics.RecordSettlement("settled", time.Since(began).Seconds(), res.PaidOut, res.Refunded, res.Residual)
	s.logger.InfoContext(ctx, "settlement_service: market settled",
		slog.String("market_id", marketID),
		slog.Int64("home_score", homeScore),
		slog.Int64("away_score", awayScore),
		slog.Int("positions", res.Positions),
		slog.Int("winners", res.Winners),
		slog.Int64("paid_out", res.PaidOut),
		slog.Int64("residual", res.Residual),
	)
	return res, nil
}

// Cancel aborts the market and refunds every stake. Takes the same
// lock as Settle so the two cannot interleave on one market.
func (s *SettlementService) Cancel(ctx context.Context, marketID, actor string) (engine.SettlementResult, error) {
	unlock, err := s.locks.Acquire(ctx, "settle:"+marketID, settleLockTTL)
	if err != nil {
		return engine.SettlementResult{}, fmt.Errorf("settlement_service: cancel %q: %w", marketID, err)
	}
	defer unlock()

	began := time.Now()
	var (
		rec       domain.Market
		res       engine.SettlementResult
		positions []domain.Position
	)
	err = s.registry.With(marketID, func(h *handle) error {
		r, err := h.eng.Cancel(ctx)
		if err != nil {
			return err
		}
		res = r
		positions = h.eng.Positions()
		rec = h.commit(time.Now().UTC())
		return nil
	})
	if err != nil {
		return engine.SettlementResult{}, fmt.Errorf("settlement_service: cancel %q: %w", marketID, err)
	}

	s.finalize(ctx, rec, positions, res)

	if auditErr := s.audit.Log(ctx, actor, "market.cancel", marketID, map[string]any{
		"positions": res.Positions,
		"refunded":  res.Refunded,
		"residual":  res.Residual,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("error", auditErr.Error()),
		)
	}

	if s.notifier != nil {
		msg := fmt.Sprintf("%s vs %s cancelled: %d stakes refunded for %d, residual %d to pool",
			rec.HomeTeam, rec.AwayTeam, res.Positions, res.Refunded, res.Residual)
		if notifyErr := s.notifier.Notify(ctx, notify.EventMarketCancelled, "Market cancelled", msg); notifyErr != nil {
			s.logger.WarnContext(ctx, "settlement_service: notify failed",
				slog.String("market_id", marketID),
				slog.String("error", notifyErr.Error()),
			)
		}
	}

	s.metrics.RecordSettlement("cancelled", time.Since(began).Seconds(), res.PaidOut, res.Refunded, res.Residual)
	s.logger.InfoContext(ctx, "settlement_service: market cancelled",
		slog.String("market_id", marketID),
		slog.Int("positions", res.Positions),
		slog.Int64("refunded", res.Refunded),
		slog.Int64("residual", res.Residual),
	)
	return res, nil
}

// finalize is the shared post-transition flush: store writes, cache
// invalidation, events, the durable settlement stream, the archived
// report, and the exposure gauges.
func (s *SettlementService) finalize(ctx context.Context, rec domain.Market, positions []domain.Position, res engine.SettlementResult) {
	s.flushMarket(ctx, rec)
	if len(positions) > 0 {
		if err := s.positions.SettleBatch(ctx, rec.ID, positions); err != nil {
			s.metrics.RecordPersistFailure("positions_settle")
			s.logger.ErrorContext(ctx, "settlement_service: persist settled positions failed",
				slog.String("market_id", rec.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	var zeroed domain.ExposureSnapshot
	err := s.registry.With(rec.ID, func(h *handle) error {
		zeroed = h.eng.Exposure()
		return nil
	})
	if err == nil {
		if limErr := s.limits.UpsertRows(ctx, rec.ID, zeroed.Rows()); limErr != nil {
			s.metrics.RecordPersistFailure("limits_upsert")
			s.logger.ErrorContext(ctx, "settlement_service: persist exposure failed",
				slog.String("market_id", rec.ID),
				slog.String("error", limErr.Error()),
			)
		}
	}

	if cacheErr := s.cache.Invalidate(ctx, rec.ID); cacheErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: cache invalidate failed",
			slog.String("market_id", rec.ID),
			slog.String("error", cacheErr.Error()),
		)
	}

	evt, _ := json.Marshal(domain.SettlementEvent{
		MarketID:  rec.ID,
		State:     rec.State,
		HomeScore: rec.HomeScore,
		AwayScore: rec.AwayScore,
		Positions: res.Positions,
		PaidOut:   res.PaidOut,
		Refunded:  res.Refunded,
		Residual:  res.Residual,
		At:        rec.UpdatedAt,
	})
	if pubErr := s.bus.Publish(ctx, domain.ChannelSettlements, evt); pubErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: publish settlement failed",
			slog.String("market_id", rec.ID),
			slog.String("error", pubErr.Error()),
		)
	}
	if streamErr := s.bus.StreamAppend(ctx, domain.StreamSettlements, evt); streamErr != nil {
		s.logger.WarnContext(ctx, "settlement_service: settlement stream append failed",
			slog.String("market_id", rec.ID),
			slog.String("error", streamErr.Error()),
		)
	}
	s.publishState(ctx, rec)

	if s.reports != nil && rec.SettledAt != nil {
		rep := domain.SettlementReport{
			MarketID:   rec.ID,
			HomeTeam:   rec.HomeTeam,
			AwayTeam:   rec.AwayTeam,
			State:      rec.State,
			HomeScore:  rec.HomeScore,
			AwayScore:  rec.AwayScore,
			PushPolicy: rec.PushPolicy,
			Positions:  positions,
			PaidOut:    res.PaidOut,
			Refunded:   res.Refunded,
			Residual:   res.Residual,
			SettledAt:  *rec.SettledAt,
		}
		path, repErr := s.reports.WriteSettlement(ctx, rep)
		if repErr != nil {
			s.logger.WarnContext(ctx, "settlement_service: settlement report failed",
				slog.String("market_id", rec.ID),
				slog.String("error", repErr.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "settlement_service: settlement report archived",
				slog.String("market_id", rec.ID),
				slog.String("path", path),
			)
		}
	}

	s.metrics.ClearExposure(rec.ID)
	s.metrics.UpdateActiveMarkets(s.registry.ActiveCount())
}

func (s *SettlementService) flushMarket(ctx context.Context, rec domain.Market) {
	if err := s.markets.Update(ctx, rec); err != nil {
		s.metrics.RecordPersistFailure("market_update")
		s.logger.ErrorContext(ctx, "settlement_service: persist market failed",
			slog.String("market_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) publishState(ctx context.Context, rec domain.Market) {
	evt, _ := json.Marshal(domain.MarketEvent{
		MarketID: rec.ID,
		State:    rec.State,
		At:       rec.UpdatedAt,
	})
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, evt); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: publish state failed",
			slog.String("market_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}
