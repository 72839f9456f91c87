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
	"github.com/wagerhouse/bookd/internal/notify"
)

// PoolReader reports the free liquidity backing the books.
type PoolReader interface {
	Pool() int64
}

// RiskService manages the exposure ceilings and the capital behind
// them: per-slot limits, batch reconfiguration, and funding moves
// between the pool and a market's escrow.
type RiskService struct {
	registry *Registry
	limits   domain.LimitStore
	audit    domain.AuditStore
	bus      domain.SignalBus
	notifier *notify.Notifier
	pool     PoolReader
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRiskService creates a RiskService with all required dependencies.
func NewRiskService(
	registry *Registry,
	limits domain.LimitStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	pool PoolReader,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RiskService {
	return &RiskService{
		registry: registry,
		limits:   limits,
		audit:    audit,
		bus:      bus,
		notifier: notifier,
		pool:     pool,
		metrics:  m,
		logger:   logger,
	}
}

// Exposure reads the market's full ledger: resident engines are
// authoritative, finalized markets fall back to the stored rows.
func (s *RiskService) Exposure(ctx context.Context, marketID string) (domain.ExposureSnapshot, error) {
	var snap domain.ExposureSnapshot
	err := s.registry.With(marketID, func(h *handle) error {
		snap = h.eng.Exposure()
		return nil
	})
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ExposureSnapshot{}, fmt.Errorf("risk_service: exposure %q: %w", marketID, err)
	}

	snap, storeErr := s.limits.Get(ctx, marketID)
	if storeErr != nil {
		return domain.ExposureSnapshot{}, fmt.Errorf("risk_service: exposure %q: %w", marketID, storeErr)
	}
	return snap, nil
}

// SetLimit replaces one slot ceiling. The ledger refuses a ceiling
// below the slot's live reservation; lift the exposure first or use
// SetAllLimits for a bulk rework.
func (s *RiskService) SetLimit(ctx context.Context, marketID string, slot domain.ExposureSlot, max int64, actor string) (domain.ExposureSnapshot, error) {
	var snap domain.ExposureSnapshot
	err := s.registry.With(marketID, func(h *handle) error {
		if err := h.eng.SetLimit(slot, max); err != nil {
			return err
		}
		snap = h.eng.Exposure()
		return nil
	})
	if err != nil {
		return domain.ExposureSnapshot{}, fmt.Errorf("risk_service: set limit %s on %q: %w", slot, marketID, err)
	}

	s.flushLimits(ctx, marketID, snap)
	s.auditLog(ctx, actor, "limits.set", marketID, map[string]any{
		"slot": string(slot),
		"max":  max,
	})
	s.publishLimit(ctx, domain.LimitEvent{
		MarketID: marketID,
		Slot:     slot,
		Max:      max,
		At:       time.Now().UTC(),
	})
	s.notifyLimits(ctx, fmt.Sprintf("Market %s: %s ceiling set to %d", marketID, slot, max))
	s.metrics.UpdateExposure(marketID, snap.Global.Current, slotCurrents(snap))

	s.logger.InfoContext(ctx, "risk_service: slot limit set",
		slog.String("market_id", marketID),
		slog.String("slot", string(slot)),
		slog.Int64("max", max),
	)
	return snap, nil
}

// SetAllLimits batch-assigns slot ceilings without the per-slot floor
// check, so a bulk rework cannot depend on assignment order. The full
// change lands in the audit log instead.
func (s *RiskService) SetAllLimits(ctx context.Context, marketID string, maxes map[domain.ExposureSlot]int64, actor string) (domain.ExposureSnapshot, error) {
	if len(maxes) == 0 {
		return domain.ExposureSnapshot{}, fmt.Errorf("risk_service: set limits on %q: %w: no slots named", marketID, domain.ErrValidation)
	}
	var snap domain.ExposureSnapshot
	err := s.registry.With(marketID, func(h *handle) error {
		if err := h.eng.SetAllLimits(maxes); err != nil {
			return err
		}
		snap = h.eng.Exposure()
		return nil
	})
	if err != nil {
		return domain.ExposureSnapshot{}, fmt.Errorf("risk_service: set limits on %q: %w", marketID, err)
	}

	detail := make(map[string]any, len(maxes))
	for slot, max := range maxes {
		detail[string(slot)] = max
	}
	s.flushLimits(ctx, marketID, snap)
	s.auditLog(ctx, actor, "limits.set_all", marketID, detail)
	for slot, max := range maxes {
		s.publishLimit(ctx, domain.LimitEvent{
			MarketID: marketID,
			Slot:     slot,
			Max:      max,
			Batch:    true,
			At:       time.Now().UTC(),
		})
	}
	s.notifyLimits(ctx, fmt.Sprintf("Market %s: %d slot ceilings reassigned", marketID, len(maxes)))
	s.metrics.UpdateExposure(marketID, snap.Global.Current, slotCurrents(snap))

	s.logger.InfoContext(ctx, "risk_service: slot limits batch set",
		slog.String("market_id", marketID),
		slog.Int("slots", len(maxes)),
	)
	return snap, nil
}

// Fund moves capital between the pool and the market's escrow and
// re-levels the book-wide cap by the same amount. Positive amounts
// deepen the book, negative amounts withdraw idle capacity. Returns
// the new book-wide cap.
func (s *RiskService) Fund(ctx context.Context, marketID string, amount int64, actor string) (int64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("risk_service: fund %q: %w: zero amount", marketID, domain.ErrValidation)
	}
	var (
		next int64
		snap domain.ExposureSnapshot
	)
	err := s.registry.With(marketID, func(h *handle) error {
		n, err := h.eng.Fund(ctx, amount)
		if err != nil {
			return err
		}
		next = n
		snap = h.eng.Exposure()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("risk_service: fund %q: %w", marketID, err)
	}

	s.flushLimits(ctx, marketID, snap)
	s.auditLog(ctx, actor, "market.fund", marketID, map[string]any{
		"amount":     amount,
		"global_max": next,
	})
	s.publishLimit(ctx, domain.LimitEvent{
		MarketID: marketID,
		Slot:     domain.SlotGlobal,
		Max:      next,
		At:       time.Now().UTC(),
	})
	s.notifyLimits(ctx, fmt.Sprintf("Market %s funded by %d, book-wide cap now %d", marketID, amount, next))
	s.metrics.UpdateExposure(marketID, snap.Global.Current, slotCurrents(snap))
	if s.pool != nil {
		s.metrics.UpdatePoolBalance(s.pool.Pool())
	}

	s.logger.InfoContext(ctx, "risk_service: market funded",
		slog.String("market_id", marketID),
		slog.Int64("amount", amount),
		slog.Int64("global_max", next),
	)
	return next, nil
}

func (s *RiskService) flushLimits(ctx context.Context, marketID string, snap domain.ExposureSnapshot) {
	if err := s.limits.UpsertRows(ctx, marketID, snap.Rows()); err != nil {
		s.metrics.RecordPersistFailure("limits_upsert")
		s.logger.ErrorContext(ctx, "risk_service: persist exposure failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RiskService) auditLog(ctx context.Context, actor, action, marketID string, detail map[string]any) {
	if err := s.audit.Log(ctx, actor, action, marketID, detail); err != nil {
		s.logger.WarnContext(ctx, "risk_service: audit log failed",
			slog.String("market_id", marketID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RiskService) publishLimit(ctx context.Context, evt domain.LimitEvent) {
	payload, _ := json.Marshal(evt)
	if err := s.bus.Publish(ctx, domain.ChannelMarkets, payload); err != nil {
		s.logger.WarnContext(ctx, "risk_service: publish limit failed",
			slog.String("market_id", evt.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *RiskService) notifyLimits(ctx context.Context, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, notify.EventLimitsChanged, "Exposure limits changed", message); err != nil {
		s.logger.WarnContext(ctx, "risk_service: notify failed",
			slog.String("error", err.Error()),
		)
	}
}
