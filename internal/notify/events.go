package notify

// Event names that operators can allow or filter via the notify.events
// configuration list.
const (
	EventMarketSettled   = "market_settled"
	EventMarketCancelled = "market_cancelled"
	EventLargeBet        = "large_bet"
	EventLimitsChanged   = "limits_changed"
)
