// Package metrics provides Prometheus metrics for the accounting core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects and exposes Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Bet metrics
	BetsTotal *prometheus.CounterVec
	BetStake  *prometheus.HistogramVec
	StakeHeld *prometheus.CounterVec

	// Exposure metrics
	SlotExposure   *prometheus.GaugeVec
	GlobalExposure *prometheus.GaugeVec

	// Settlement metrics
	SettlementsTotal   *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec
	PayoutVolume       *prometheus.CounterVec

	// Market metrics
	ActiveMarkets *prometheus.GaugeVec

	// Treasury metrics
	PoolBalance *prometheus.GaugeVec

	// Persistence metrics
	PersistFailures *prometheus.CounterVec
}

// New creates a metrics collector with all series registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Bet metrics
		BetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookd_bets_total",
				Help: "Total number of bet submissions",
			},
			[]string{"kind", "status"},
		),
		BetStake: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookd_bet_stake_tokens",
				Help:    "Accepted bet stakes in minor token units",
				Buckets: prometheus.ExponentialBuckets(1, 10, 10), // 1 to ~1e9
			},
			[]string{"kind"},
		),
		StakeHeld: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookd_stake_collected_tokens",
				Help: "Total stake collected into escrow",
			},
			[]string{"kind"},
		),

		// Exposure metrics
		SlotExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookd_slot_exposure_tokens",
				Help: "Reserved potential winnings per outcome slot",
			},
			[]string{"market", "slot"},
		),
		GlobalExposure: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookd_global_exposure_tokens",
				Help: "Total reserved potential winnings per market",
			},
			[]string{"market"},
		),

		// Settlement metrics
		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookd_settlements_total",
				Help: "Total markets resolved",
			},
			[]string{"outcome"},
		),
		SettlementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bookd_settlement_duration_seconds",
				Help:    "Wall time to resolve a market, disbursement included",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			},
			[]string{},
		),
		PayoutVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookd_payout_volume_tokens",
				Help: "Tokens moved out of escrow at resolution",
			},
			[]string{"kind"}, // payout, refund, residual
		),

		// Market metrics
		ActiveMarkets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookd_active_markets",
				Help: "Number of markets not yet settled or cancelled",
			},
			[]string{},
		),

		// Treasury metrics
		PoolBalance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bookd_pool_balance_tokens",
				Help: "Unallocated house pool balance",
			},
			[]string{},
		),

		// Persistence metrics
		PersistFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookd_persist_failures_total",
				Help: "Write-behind persistence failures by operation",
			},
			[]string{"op"},
		),
	}

	m.registerAll()

	return m
}

func (m *Metrics) registerAll() {
	m.registry.MustRegister(
		m.BetsTotal,
		m.BetStake,
		m.StakeHeld,
		m.SlotExposure,
		m.GlobalExposure,
		m.SettlementsTotal,
		m.SettlementDuration,
		m.PayoutVolume,
		m.ActiveMarkets,
		m.PoolBalance,
		m.PersistFailures,
	)
}

// Registry returns the prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// --- Helper methods for recording metrics ---

// RecordBet records a bet submission outcome.
func (m *Metrics) RecordBet(kind, status string, stake int64) {
	m.BetsTotal.WithLabelValues(kind, status).Inc()
	if status == "accepted" && stake > 0 {
		m.BetStake.WithLabelValues(kind).Observe(float64(stake))
		m.StakeHeld.WithLabelValues(kind).Add(float64(stake))
	}
}

// UpdateExposure updates the per-slot and global exposure gauges for a market.
func (m *Metrics) UpdateExposure(market string, global int64, slots map[string]int64) {
	m.GlobalExposure.WithLabelValues(market).Set(float64(global))
	for slot, current := range slots {
		m.SlotExposure.WithLabelValues(market, slot).Set(float64(current))
	}
}

// ClearExposure drops a market's exposure series after resolution.
func (m *Metrics) ClearExposure(market string) {
	m.GlobalExposure.DeleteLabelValues(market)
	m.SlotExposure.DeletePartialMatch(prometheus.Labels{"market": market})
}

// RecordSettlement records a resolved market.
func (m *Metrics) RecordSettlement(outcome string, durationSec float64, paidOut, refunded, residual int64) {
	m.SettlementsTotal.WithLabelValues(outcome).Inc()
	if durationSec > 0 {
		m.SettlementDuration.WithLabelValues().Observe(durationSec)
	}
	m.PayoutVolume.WithLabelValues("payout").Add(float64(paidOut))
	m.PayoutVolume.WithLabelValues("refund").Add(float64(refunded))
	m.PayoutVolume.WithLabelValues("residual").Add(float64(residual))
}

// UpdateActiveMarkets updates the live market count.
func (m *Metrics) UpdateActiveMarkets(count int) {
	m.ActiveMarkets.WithLabelValues().Set(float64(count))
}

// UpdatePoolBalance updates the house pool gauge.
func (m *Metrics) UpdatePoolBalance(balance int64) {
	m.PoolBalance.WithLabelValues().Set(float64(balance))
}

// RecordPersistFailure records a failed write-behind store operation.
func (m *Metrics) RecordPersistFailure(op string) {
	m.PersistFailures.WithLabelValues(op).Inc()
}
