package domain

// OddsSheet is the full price board for one market. Odds are milli-odds
// (1000 = 1.000x); zero odds mean the outcome is not offered. Lines are
// deci-points. SpreadLine is always the home team's line, negative when
// home is favored; the away side takes the mirrored line implicitly.
type OddsSheet struct {
	MoneylineHome int64 `json:"moneyline_home"`
	MoneylineAway int64 `json:"moneyline_away"`
	MoneylineDraw int64 `json:"moneyline_draw,omitempty"`
	SpreadLine    int64 `json:"spread_line"`
	SpreadHome    int64 `json:"spread_home,omitempty"`
	SpreadAway    int64 `json:"spread_away,omitempty"`
	TotalLine     int64 `json:"total_line"`
	TotalOver     int64 `json:"total_over,omitempty"`
	TotalUnder    int64 `json:"total_under,omitempty"`
}

// HasMoneyline reports whether both moneyline sides are priced. This is
// the opening-line condition: a market cannot open without it.
func (s OddsSheet) HasMoneyline() bool {
	return s.MoneylineHome >= OddsUnit && s.MoneylineAway >= OddsUnit
}

// HasDraw reports whether the draw outcome is priced.
func (s OddsSheet) HasDraw() bool { return s.MoneylineDraw >= OddsUnit }

// HasSpread reports whether both spread sides are priced.
func (s OddsSheet) HasSpread() bool {
	return s.SpreadHome >= OddsUnit && s.SpreadAway >= OddsUnit
}

// HasTotal reports whether both total sides are priced.
func (s OddsSheet) HasTotal() bool {
	return s.TotalOver >= OddsUnit && s.TotalUnder >= OddsUnit
}

// PriceFor returns the captured odds and line for one bettable outcome.
// Odds of zero mean the outcome is not currently offered. The line is the
// home spread line for spread bets, the total line for totals, zero
// otherwise.
func (s OddsSheet) PriceFor(kind BetKind, side Side) (odds, line int64) {
	switch kind {
	case BetMoneyline:
		switch side {
		case SideHome:
			return s.MoneylineHome, 0
		case SideAway:
			return s.MoneylineAway, 0
		}
	case BetDraw:
		return s.MoneylineDraw, 0
	case BetSpread:
		switch side {
		case SideHome:
			return s.SpreadHome, s.SpreadLine
		case SideAway:
			return s.SpreadAway, s.SpreadLine
		}
	case BetTotal:
		switch side {
		case SideOver:
			return s.TotalOver, s.TotalLine
		case SideUnder:
			return s.TotalUnder, s.TotalLine
		}
	}
	return 0, 0
}
