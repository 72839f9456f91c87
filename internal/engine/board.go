package engine

import (
	"fmt"

	"github.com/wagerhouse/bookd/internal/domain"
)

// Board holds the market's odds sheet. Prices move freely until the
// fixture starts; Freeze is one-way and idempotent, and a frozen board
// rejects every update.
type Board struct {
	sheet       domain.OddsSheet
	frozen      bool
	openingLine bool
}

// NewBoard returns an empty, unfrozen board.
func NewBoard() *Board { return &Board{} }

// SetOdds replaces the whole sheet after validation. The opening-line
// flag latches the first time both moneyline sides are priced and never
// clears, even if a later sheet would not qualify on its own.
func (b *Board) SetOdds(sheet domain.OddsSheet) error {
	if b.frozen {
		return domain.ErrOddsFrozen
	}
	if err := validateSheet(sheet); err != nil {
		return err
	}
	b.sheet = sheet
	if sheet.HasMoneyline() {
		b.openingLine = true
	}
	return nil
}

func validateSheet(s domain.OddsSheet) error {
	prices := []struct {
		name string
		v    int64
	}{
		{"moneyline_home", s.MoneylineHome},
		{"moneyline_away", s.MoneylineAway},
		{"moneyline_draw", s.MoneylineDraw},
		{"spread_home", s.SpreadHome},
		{"spread_away", s.SpreadAway},
		{"total_over", s.TotalOver},
		{"total_under", s.TotalUnder},
	}
	for _, p := range prices {
		switch {
		case p.v < 0:
			return fmt.Errorf("%w: negative odds on %s", domain.ErrValidation, p.name)
		case p.v > 0 && p.v < domain.OddsUnit:
			return fmt.Errorf("%w: %s", domain.ErrOddsBelowMinimum, p.name)
		case p.v > domain.MaxOdds:
			return fmt.Errorf("%w: %s above 99.000", domain.ErrValidation, p.name)
		}
	}
	if (s.SpreadHome == 0) != (s.SpreadAway == 0) {
		return fmt.Errorf("%w: spread must price both sides", domain.ErrValidation)
	}
	if (s.TotalOver == 0) != (s.TotalUnder == 0) {
		return fmt.Errorf("%w: total must price both sides", domain.ErrValidation)
	}
	if s.TotalLine < 0 {
		return fmt.Errorf("%w: negative total line", domain.ErrValidation)
	}
	return nil
}

// Odds is a pure read of the current sheet, valid in any state.
func (b *Board) Odds() domain.OddsSheet { return b.sheet }

// Freeze locks the board. Calling it again is a no-op, never an error.
func (b *Board) Freeze() { b.frozen = true }

// Frozen reports whether updates are locked out.
func (b *Board) Frozen() bool { return b.frozen }

// HasOpeningLine reports whether the board has ever priced both
// moneyline sides.
func (b *Board) HasOpeningLine() bool { return b.openingLine }

// Restore loads persisted board state without validation; the sheet was
// validated when it was accepted.
func (b *Board) Restore(sheet domain.OddsSheet, frozen, openingLine bool) {
	b.sheet = sheet
	b.frozen = frozen
	b.openingLine = openingLine
}
