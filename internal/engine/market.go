package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
)

// Market is the accounting aggregate for one fixture: lifecycle state,
// odds board, exposure ledger, position book, and the flows that tie
// them to the token vault. Every operation either completes fully or
// leaves no trace; trust-boundary (vault) failures abort the operation
// and are never swallowed.
type Market struct {
	id     string
	state  domain.MarketState
	board  *Board
	ledger *Ledger
	book   *Book
	vault  domain.TokenVault

	pushPolicy domain.PushPolicy
	maxStake   int64

	homeScore *int64
	awayScore *int64
	settledAt *time.Time
	now       func() time.Time
}

// Config seeds a new market's book.
type Config struct {
	ID         string
	Vault      domain.TokenVault
	GlobalMax  int64 // opening book-wide cap; funding re-levels it later
	SlotMax    int64 // opening per-outcome ceiling, 0 = uncapped
	MaxStake   int64 // largest single stake accepted, 0 = uncapped
	PushPolicy domain.PushPolicy
	Now        func() time.Time
}

// New returns a pending market with an empty board and book.
func New(cfg Config) *Market {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	policy := cfg.PushPolicy
	if policy == "" {
		policy = domain.PushLose
	}
	return &Market{
		id:         cfg.ID,
		state:      domain.MarketPending,
		board:      NewBoard(),
		ledger:     NewLedger(cfg.GlobalMax, cfg.SlotMax),
		book:       NewBook(),
		vault:      cfg.Vault,
		pushPolicy: policy,
		maxStake:   cfg.MaxStake,
		now:        now,
	}
}

// Restore rebuilds a market from its persisted record, exposure rows and
// position journal.
func Restore(rec domain.Market, snap domain.ExposureSnapshot, positions []domain.Position, cfg Config) (*Market, error) {
	cfg.ID = rec.ID
	if rec.PushPolicy != "" {
		cfg.PushPolicy = rec.PushPolicy
	}
	m := New(cfg)
	m.state = rec.State
	if err := m.ledger.Restore(snap); err != nil {
		return nil, fmt.Errorf("restore market %s: %w", rec.ID, err)
	}
	if err := m.book.Restore(positions); err != nil {
		return nil, fmt.Errorf("restore market %s: %w", rec.ID, err)
	}
	m.board.Restore(rec.Odds, rec.OddsFrozen, rec.OpeningLine)
	if rec.HomeScore != nil {
		hs := *rec.HomeScore
		m.homeScore = &hs
	}
	if rec.AwayScore != nil {
		as := *rec.AwayScore
		m.awayScore = &as
	}
	if rec.SettledAt != nil {
		at := *rec.SettledAt
		m.settledAt = &at
	}
	return m, nil
}

// SetOdds is the odds-feed entry point. The board refuses updates once
// frozen, which happens exactly at start; terminal states refuse too.
func (m *Market) SetOdds(sheet domain.OddsSheet) error {
	if m.state.Final() {
		return fmt.Errorf("%w: set odds on %s", domain.ErrMarketFinal, m.id)
	}
	return m.board.SetOdds(sheet)
}

// TryOpen moves pending to open once the opening line is on the board.
// Safe to call after every odds update; reports whether it transitioned.
func (m *Market) TryOpen() bool {
	if m.state == domain.MarketPending && m.board.HasOpeningLine() {
		m.state = domain.MarketOpen
		return true
	}
	return false
}

// Start freezes the board and moves the market to started. It requires
// an opening line and tolerates a market still pending.
func (m *Market) Start() error {
	switch m.state {
	case domain.MarketPending, domain.MarketOpen:
	default:
		return fmt.Errorf("%w: start from %s", domain.ErrState, m.state)
	}
	if !m.board.HasOpeningLine() {
		return domain.ErrNoOpeningLine
	}
	m.board.Freeze()
	m.state = domain.MarketStarted
	return nil
}

// PlaceBet runs the full admission flow: lifecycle gate, validation,
// price capture, exposure reservation, stake collection, book append. A
// failure at any step leaves the market exactly as it was, including
// releasing the reservation when stake collection fails.
func (m *Market) PlaceBet(ctx context.Context, bettor common.Address, kind domain.BetKind, side domain.Side, stake int64) (domain.Position, error) {
	if m.state != domain.MarketOpen {
		return domain.Position{}, fmt.Errorf("%w (state %s)", domain.ErrMarketNotOpen, m.state)
	}
	if stake <= 0 {
		return domain.Position{}, fmt.Errorf("%w: stake must be positive", domain.ErrValidation)
	}
	if m.maxStake > 0 && stake > m.maxStake {
		return domain.Position{}, fmt.Errorf("%w: stake %d above maximum %d", domain.ErrValidation, stake, m.maxStake)
	}
	slot, err := domain.SlotFor(kind, side)
	if err != nil {
		return domain.Position{}, err
	}
	odds, line := m.board.Odds().PriceFor(kind, side)
	if odds == 0 {
		return domain.Position{}, fmt.Errorf("%w: %s %s is not priced", domain.ErrValidation, kind, side)
	}
	pw := domain.Winnings(stake, odds)
	if !m.ledger.CheckAndReserve(slot, pw) {
		return domain.Position{}, fmt.Errorf("%w: %s cannot absorb %d potential winnings", domain.ErrCapacity, slot, pw)
	}
	if err := m.vault.CollectStake(ctx, m.id, bettor, stake); err != nil {
		m.ledger.Release(slot, pw)
		return domain.Position{}, fmt.Errorf("collect stake: %w", err)
	}
	id := m.book.Record(domain.Position{
		MarketID: m.id,
		Bettor:   bettor,
		Kind:     kind,
		Side:     side,
		Stake:    stake,
		Odds:     odds,
		Line:     line,
		Winnings: pw,
		PlacedAt: m.now().UTC(),
	})
	return m.book.positions[id], nil
}

// SettlementResult reports the token totals of a settlement or
// cancellation.
type SettlementResult struct {
	Positions int
	Winners   int
	Pushes    int
	PaidOut   int64 // winner payouts, stake plus winnings
	Refunded  int64 // push or cancellation refunds, stake only
	Residual  int64 // escrow swept back to the liquidity pool
}

// Settle scores the fixture: winners are paid stake plus winnings (their
// reservation is consumed, not released), losing reservations are
// released, the ledger is reset, and leftover escrow sweeps to the pool.
// Outcomes and the payout list are computed before anything moves; the
// single vault disbursement either lands whole or the operation aborts
// with every ledger untouched.
func (m *Market) Settle(ctx context.Context, homeScore, awayScore int64) (SettlementResult, error) {
	if m.state != domain.MarketStarted {
		return SettlementResult{}, fmt.Errorf("%w: settle from %s", domain.ErrState, m.state)
	}
	if homeScore < 0 || awayScore < 0 {
		return SettlementResult{}, fmt.Errorf("%w: negative score", domain.ErrValidation)
	}

	type verdict struct {
		won    bool
		refund bool
	}
	res := SettlementResult{Positions: m.book.Len()}
	verdicts := make([]verdict, m.book.Len())
	var payouts []domain.PayoutOrder
	for i, p := range m.book.positions {
		won, refund := resolve(judge(p, homeScore, awayScore), m.pushPolicy)
		verdicts[i] = verdict{won: won, refund: refund}
		switch {
		case won:
			res.Winners++
			res.PaidOut += p.Payout()
			payouts = append(payouts, domain.PayoutOrder{Bettor: p.Bettor, Amount: p.Payout()})
		case refund:
			res.Pushes++
			res.Refunded += p.Stake
			payouts = append(payouts, domain.PayoutOrder{Bettor: p.Bettor, Amount: p.Stake})
		}
	}

	residual, err := m.vault.Disburse(ctx, m.id, payouts)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("settle %s: %w", m.id, err)
	}
	res.Residual = residual

	at := m.now().UTC()
	for i := range m.book.positions {
		p := &m.book.positions[i]
		m.book.MarkSettled(p.ID, verdicts[i].won, at)
		if !verdicts[i].won {
			m.ledger.Release(mustSlot(p.Kind, p.Side), p.Winnings)
		}
	}
	// The releases above already zeroed the running totals; the reset is
	// the final sweep that keeps that true regardless.
	m.ledger.ResetAll()

	hs, as := homeScore, awayScore
	m.homeScore, m.awayScore = &hs, &as
	m.settledAt = &at
	m.state = domain.MarketSettled
	return res, nil
}

// Cancel aborts the market from any non-terminal state. Every position
// gets exactly its stake back, never its potential winnings. The
// ledger resets and leftover escrow sweeps to the pool.
func (m *Market) Cancel(ctx context.Context) (SettlementResult, error) {
	if m.state.Final() {
		return SettlementResult{}, fmt.Errorf("%w: cancel from %s", domain.ErrState, m.state)
	}

	res := SettlementResult{Positions: m.book.Len()}
	payouts := make([]domain.PayoutOrder, 0, m.book.Len())
	for _, p := range m.book.positions {
		payouts = append(payouts, domain.PayoutOrder{Bettor: p.Bettor, Amount: p.Stake})
		res.Refunded += p.Stake
	}

	residual, err := m.vault.Disburse(ctx, m.id, payouts)
	if err != nil {
		return SettlementResult{}, fmt.Errorf("cancel %s: %w", m.id, err)
	}
	res.Residual = residual

	at := m.now().UTC()
	for i := range m.book.positions {
		p := &m.book.positions[i]
		m.book.MarkSettled(p.ID, false, at)
		m.ledger.Release(mustSlot(p.Kind, p.Side), p.Winnings)
	}
	m.ledger.ResetAll()

	m.settledAt = &at
	m.state = domain.MarketCancelled
	return res, nil
}

func mustSlot(kind domain.BetKind, side domain.Side) domain.ExposureSlot {
	slot, err := domain.SlotFor(kind, side)
	if err != nil {
		panic(fmt.Errorf("%w: recorded position has no exposure slot (%s %s)", domain.ErrInvariant, kind, side))
	}
	return slot
}

// Fund moves capital between the liquidity pool and this market's escrow
// and re-levels the book-wide cap by the same amount. Withdrawals are
// checked against current exposure before any tokens move; a failed
// vault move restores the cap.
func (m *Market) Fund(ctx context.Context, amount int64) (int64, error) {
	if m.state.Final() {
		return 0, fmt.Errorf("%w: fund %s", domain.ErrMarketFinal, m.id)
	}
	prev := m.ledger.GlobalMax()
	next := prev + amount
	if next < 0 {
		return 0, fmt.Errorf("%w: withdrawal %d exceeds funded cap %d", domain.ErrValidation, -amount, prev)
	}
	if amount >= 0 {
		if err := m.vault.Fund(ctx, m.id, amount); err != nil {
			return 0, fmt.Errorf("fund %s: %w", m.id, err)
		}
		m.ledger.global.max = next
		return next, nil
	}
	if err := m.ledger.SetGlobalMax(next); err != nil {
		return 0, err
	}
	if err := m.vault.Fund(ctx, m.id, amount); err != nil {
		m.ledger.global.max = prev
		return 0, fmt.Errorf("fund %s: %w", m.id, err)
	}
	return next, nil
}

// SetLimit replaces one slot ceiling; refused on a finalized market.
func (m *Market) SetLimit(slot domain.ExposureSlot, max int64) error {
	if m.state.Final() {
		return fmt.Errorf("%w: set limit on %s", domain.ErrMarketFinal, m.id)
	}
	return m.ledger.SetLimit(slot, max)
}

// SetAllLimits batch-assigns slot ceilings; refused on a finalized
// market.
func (m *Market) SetAllLimits(maxes map[domain.ExposureSlot]int64) error {
	if m.state.Final() {
		return fmt.Errorf("%w: set limits on %s", domain.ErrMarketFinal, m.id)
	}
	return m.ledger.SetAllLimits(maxes)
}

func (m *Market) ID() string                 { return m.id }
func (m *Market) State() domain.MarketState  { return m.state }
func (m *Market) Odds() domain.OddsSheet     { return m.board.Odds() }
func (m *Market) OddsFrozen() bool           { return m.board.Frozen() }
func (m *Market) HasOpeningLine() bool       { return m.board.HasOpeningLine() }
func (m *Market) PushPolicy() domain.PushPolicy { return m.pushPolicy }
func (m *Market) PositionCount() int         { return m.book.Len() }

// Exposure copies the full ledger state.
func (m *Market) Exposure() domain.ExposureSnapshot { return m.ledger.Snapshot() }

// Position returns a copy of one position by ID.
func (m *Market) Position(id uint64) (domain.Position, error) { return m.book.Get(id) }

// Positions returns a copy of the whole book in ID order.
func (m *Market) Positions() []domain.Position { return m.book.All() }

// PositionsByBettor returns the bettor's positions in placement order.
func (m *Market) PositionsByBettor(bettor common.Address) []domain.Position {
	ids := m.book.ListByBettor(bettor)
	out := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		p, err := m.book.Get(id)
		if err != nil {
			panic(fmt.Errorf("%w: indexed position %d missing", domain.ErrInvariant, id))
		}
		out = append(out, p)
	}
	return out
}

// Scores returns copies of the final scores, nil before settlement.
func (m *Market) Scores() (home, away *int64) {
	if m.homeScore == nil || m.awayScore == nil {
		return nil, nil
	}
	hs, as := *m.homeScore, *m.awayScore
	return &hs, &as
}

// SettledAt returns a copy of the finalization time, nil while live.
func (m *Market) SettledAt() *time.Time {
	if m.settledAt == nil {
		return nil
	}
	at := *m.settledAt
	return &at
}

// Record renders the engine-owned persistable fields; the service layer
// merges them into the stored market row.
func (m *Market) Record() domain.Market {
	rec := domain.Market{
		ID:          m.id,
		State:       m.state,
		Odds:        m.board.Odds(),
		OddsFrozen:  m.board.Frozen(),
		OpeningLine: m.board.HasOpeningLine(),
		PushPolicy:  m.pushPolicy,
		SettledAt:   m.SettledAt(),
	}
	rec.HomeScore, rec.AwayScore = m.Scores()
	return rec
}
