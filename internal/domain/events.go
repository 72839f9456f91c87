package domain

import "time"

// Bus channels carried by the signal bus and re-broadcast by the
// websocket hub.
const (
	ChannelOdds        = "odds"
	ChannelMarkets     = "markets"
	ChannelBets        = "bets"
	ChannelSettlements = "settlements"
)

// StreamSettlements is the durable settlement journal stream.
const StreamSettlements = "stream:settlements"

// OddsEvent announces an accepted odds update.
type OddsEvent struct {
	MarketID string    `json:"market_id"`
	Odds     OddsSheet `json:"odds"`
	Opened   bool      `json:"opened,omitempty"` // this update opened the market
	At       time.Time `json:"at"`
}

// MarketEvent announces a lifecycle transition.
type MarketEvent struct {
	MarketID string      `json:"market_id"`
	State    MarketState `json:"state"`
	At       time.Time   `json:"at"`
}

// BetEvent announces an accepted bet.
type BetEvent struct {
	MarketID string   `json:"market_id"`
	Position Position `json:"position"`
}

// SettlementEvent announces a settlement or cancellation with its token
// totals.
type SettlementEvent struct {
	MarketID  string      `json:"market_id"`
	State     MarketState `json:"state"`
	HomeScore *int64      `json:"home_score,omitempty"`
	AwayScore *int64      `json:"away_score,omitempty"`
	Positions int         `json:"positions"`
	PaidOut   int64       `json:"paid_out"`
	Refunded  int64       `json:"refunded,omitempty"`
	Residual  int64       `json:"residual"`
	At        time.Time   `json:"at"`
}

// LimitEvent announces an exposure ceiling or funding change.
type LimitEvent struct {
	MarketID string       `json:"market_id"`
	Slot     ExposureSlot `json:"slot,omitempty"`
	Max      int64        `json:"max"`
	Batch    bool         `json:"batch,omitempty"`
	At       time.Time    `json:"at"`
}
