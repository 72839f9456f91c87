package domain

import "time"

// MarketState is the lifecycle state of a market.
type MarketState string

const (
	MarketPending   MarketState = "pending"
	MarketOpen      MarketState = "open"
	MarketStarted   MarketState = "started"
	MarketSettled   MarketState = "settled"
	MarketCancelled MarketState = "cancelled"
)

// Final reports whether the state is terminal.
func (s MarketState) Final() bool {
	return s == MarketSettled || s == MarketCancelled
}

// PushPolicy decides spread/total bets that land exactly on the line.
// Moneyline ties lose under both policies: the draw outcome is separately
// bettable, so refunding a tied moneyline would pay the same result twice.
type PushPolicy string

const (
	PushLose   PushPolicy = "lose"   // a push loses its stake
	PushRefund PushPolicy = "refund" // a push returns exactly its stake
)

// Market is the persisted record of one fixture and its book.
type Market struct {
	ID          string      `json:"id"`
	HomeTeam    string      `json:"home_team"`
	AwayTeam    string      `json:"away_team"`
	ExternalID  string      `json:"external_id,omitempty"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	State       MarketState `json:"state"`
	Odds        OddsSheet   `json:"odds"`
	OddsFrozen  bool        `json:"odds_frozen"`
	OpeningLine bool        `json:"opening_line"`
	PushPolicy  PushPolicy  `json:"push_policy"`
	HomeScore   *int64      `json:"home_score,omitempty"`
	AwayScore   *int64      `json:"away_score,omitempty"`
	SettledAt   *time.Time  `json:"settled_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
