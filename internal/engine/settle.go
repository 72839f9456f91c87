package engine

import (
	"fmt"

	"github.com/wagerhouse/bookd/internal/domain"
)

// outcome of one position at the final score.
type outcome int

const (
	outcomeLost outcome = iota
	outcomeWon
	outcomePush // landed exactly on the line
)

// judge scores a position against the final result. Scores are whole
// points; lines are deci-points, so differentials scale by LineUnit
// before comparison.
func judge(p domain.Position, home, away int64) outcome {
	switch p.Kind {
	case domain.BetMoneyline:
		// A tie loses for both sides: the draw is its own outcome.
		switch {
		case home == away:
			return outcomeLost
		case p.Side == domain.SideHome:
			return wonIf(home > away)
		default:
			return wonIf(away > home)
		}
	case domain.BetDraw:
		return wonIf(home == away)
	case domain.BetSpread:
		// The captured line is the home team's; away covers the mirror.
		diff := (home - away) * domain.LineUnit
		target := -p.Line
		switch {
		case diff == target:
			return outcomePush
		case p.Side == domain.SideHome:
			return wonIf(diff > target)
		default:
			return wonIf(diff < target)
		}
	case domain.BetTotal:
		total := (home + away) * domain.LineUnit
		switch {
		case total == p.Line:
			return outcomePush
		case p.Side == domain.SideOver:
			return wonIf(total > p.Line)
		default:
			return wonIf(total < p.Line)
		}
	}
	panic(fmt.Errorf("%w: judge unknown bet kind %q", domain.ErrInvariant, p.Kind))
}

func wonIf(b bool) outcome {
	if b {
		return outcomeWon
	}
	return outcomeLost
}

// resolve maps an outcome to its money consequence under the push
// policy: won pays stake plus winnings, refund returns exactly the
// stake, anything else loses the stake.
func resolve(o outcome, policy domain.PushPolicy) (won, refund bool) {
	switch o {
	case outcomeWon:
		return true, false
	case outcomePush:
		return false, policy == domain.PushRefund
	default:
		return false, false
	}
}
