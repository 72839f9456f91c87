package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Position is one accepted bet. IDs are sequential per market starting at
// zero; records are append-only and settle exactly once.
type Position struct {
	ID        uint64         `json:"id"`
	MarketID  string         `json:"market_id"`
	Bettor    common.Address `json:"bettor"`
	Kind      BetKind        `json:"kind"`
	Side      Side           `json:"side,omitempty"`
	Stake     int64          `json:"stake"`    // token minor units
	Odds      int64          `json:"odds"`     // milli-odds captured at placement
	Line      int64          `json:"line"`     // deci-points: home spread line or total line, 0 otherwise
	Winnings  int64          `json:"winnings"` // potential winnings above stake, truncated
	Settled   bool           `json:"settled"`
	Won       bool           `json:"won"`
	PlacedAt  time.Time      `json:"placed_at"`
	SettledAt *time.Time     `json:"settled_at,omitempty"`
}

// Payout is what the position pays if it wins: stake plus winnings.
func (p Position) Payout() int64 { return p.Stake + p.Winnings }
