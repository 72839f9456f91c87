package engine

import (
	"errors"
	"testing"

	"github.com/wagerhouse/bookd/internal/domain"
)

func TestSetOddsValidation(t *testing.T) {
	tests := []struct {
		name    string
		sheet   domain.OddsSheet
		wantErr error // nil means accepted
	}{
		{
			name:  "full sheet",
			sheet: domain.OddsSheet{MoneylineHome: 1900, MoneylineAway: 1900, MoneylineDraw: 3500, SpreadLine: -75, SpreadHome: 1950, SpreadAway: 1850, TotalLine: 2105, TotalOver: 1800, TotalUnder: 1900},
		},
		{
			name:  "moneyline only",
			sheet: domain.OddsSheet{MoneylineHome: 1500, MoneylineAway: 2500},
		},
		{
			name:  "empty sheet is legal",
			sheet: domain.OddsSheet{},
		},
		{
			name:    "odds below minimum",
			sheet:   domain.OddsSheet{MoneylineHome: 999, MoneylineAway: 1900},
			wantErr: domain.ErrOddsBelowMinimum,
		},
		{
			name:    "negative odds",
			sheet:   domain.OddsSheet{MoneylineHome: -1900, MoneylineAway: 1900},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "odds above ceiling",
			sheet:   domain.OddsSheet{MoneylineHome: 99001, MoneylineAway: 1900},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "one-sided spread",
			sheet:   domain.OddsSheet{SpreadLine: -75, SpreadHome: 1950},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "one-sided total",
			sheet:   domain.OddsSheet{TotalLine: 2105, TotalUnder: 1900},
			wantErr: domain.ErrValidation,
		},
		{
			name:    "negative total line",
			sheet:   domain.OddsSheet{TotalLine: -5, TotalOver: 1900, TotalUnder: 1900},
			wantErr: domain.ErrValidation,
		},
		{
			name:  "spread line may be negative",
			sheet: domain.OddsSheet{SpreadLine: -135, SpreadHome: 1910, SpreadAway: 1910},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBoard()
			err := b.SetOdds(tt.sheet)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("SetOdds: %v", err)
				}
				if got := b.Odds(); got != tt.sheet {
					t.Fatalf("Odds() = %+v, want %+v", got, tt.sheet)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SetOdds err = %v, want %v", err, tt.wantErr)
			}
			if got := b.Odds(); got != (domain.OddsSheet{}) {
				t.Fatalf("rejected sheet leaked onto the board: %+v", got)
			}
		})
	}
}

func TestOpeningLineLatches(t *testing.T) {
	b := NewBoard()
	if b.HasOpeningLine() {
		t.Fatal("fresh board claims an opening line")
	}
	if err := b.SetOdds(domain.OddsSheet{TotalLine: 2105, TotalOver: 1900, TotalUnder: 1900}); err != nil {
		t.Fatal(err)
	}
	if b.HasOpeningLine() {
		t.Fatal("totals alone set the opening line")
	}
	if err := b.SetOdds(domain.OddsSheet{MoneylineHome: 1900, MoneylineAway: 1900}); err != nil {
		t.Fatal(err)
	}
	if !b.HasOpeningLine() {
		t.Fatal("priced moneyline did not set the opening line")
	}
	// The latch survives a sheet that would not qualify on its own.
	if err := b.SetOdds(domain.OddsSheet{TotalLine: 2105, TotalOver: 1900, TotalUnder: 1900}); err != nil {
		t.Fatal(err)
	}
	if !b.HasOpeningLine() {
		t.Fatal("opening line flag cleared by a later update")
	}
}

func TestFreezeIsIdempotentAndFinal(t *testing.T) {
	b := NewBoard()
	sheet := domain.OddsSheet{MoneylineHome: 1900, MoneylineAway: 1900}
	if err := b.SetOdds(sheet); err != nil {
		t.Fatal(err)
	}
	b.Freeze()
	b.Freeze() // second call is a no-op
	if !b.Frozen() {
		t.Fatal("board not frozen")
	}
	err := b.SetOdds(domain.OddsSheet{MoneylineHome: 2000, MoneylineAway: 1800})
	if !errors.Is(err, domain.ErrOddsFrozen) {
		t.Fatalf("update on frozen board: err = %v, want ErrOddsFrozen", err)
	}
	if got := b.Odds(); got != sheet {
		t.Fatalf("frozen sheet changed: %+v", got)
	}
}
