package domain

import "fmt"

// BetKind is the closed set of bet types the book offers.
type BetKind string

const (
	BetMoneyline BetKind = "moneyline"
	BetSpread    BetKind = "spread"
	BetTotal     BetKind = "total"
	BetDraw      BetKind = "draw"
)

// Side picks one outcome of a bet kind: home/away for moneyline and
// spread, over/under for totals. Draw bets take no side.
type Side string

const (
	SideHome  Side = "home"
	SideAway  Side = "away"
	SideOver  Side = "over"
	SideUnder Side = "under"
	SideNone  Side = ""
)

// ExposureSlot keys the per-outcome exposure ceilings. Seven slots cover
// every bettable outcome; the book-wide cap is tracked separately and
// persisted under SlotGlobal.
type ExposureSlot string

const (
	SlotMoneylineHome ExposureSlot = "moneyline_home"
	SlotMoneylineAway ExposureSlot = "moneyline_away"
	SlotDraw          ExposureSlot = "draw"
	SlotSpreadHome    ExposureSlot = "spread_home"
	SlotSpreadAway    ExposureSlot = "spread_away"
	SlotTotalOver     ExposureSlot = "total_over"
	SlotTotalUnder    ExposureSlot = "total_under"

	SlotGlobal ExposureSlot = "global"
)

// Slots lists the seven per-outcome slots in canonical order.
var Slots = [7]ExposureSlot{
	SlotMoneylineHome,
	SlotMoneylineAway,
	SlotDraw,
	SlotSpreadHome,
	SlotSpreadAway,
	SlotTotalOver,
	SlotTotalUnder,
}

// SlotFor resolves a (kind, side) pair to its exposure slot. Unknown
// combinations are ErrValidation.
func SlotFor(kind BetKind, side Side) (ExposureSlot, error) {
	switch kind {
	case BetMoneyline:
		switch side {
		case SideHome:
			return SlotMoneylineHome, nil
		case SideAway:
			return SlotMoneylineAway, nil
		}
	case BetDraw:
		if side == SideNone {
			return SlotDraw, nil
		}
	case BetSpread:
		switch side {
		case SideHome:
			return SlotSpreadHome, nil
		case SideAway:
			return SlotSpreadAway, nil
		}
	case BetTotal:
		switch side {
		case SideOver:
			return SlotTotalOver, nil
		case SideUnder:
			return SlotTotalUnder, nil
		}
	}
	return "", fmt.Errorf("%w: no outcome for kind %q side %q", ErrValidation, kind, side)
}
