package domain

import (
	"errors"
	"testing"
)

func TestParseOdds(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1.950", 1950, false},
		{"1", 1000, false},
		{"1.000", 1000, false},
		{"2.105", 2105, false},
		{"99.000", 99000, false},
		{"0", 0, false},
		{"0.999", 0, true},
		{"1.9505", 0, true},
		{"99.001", 0, true},
		{"-1.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseOdds(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOdds(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseOdds(%q) error %v not classified as ErrValidation", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOdds(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"-7.5", -75, false},
		{"7.5", 75, false},
		{"210.5", 2105, false},
		{"0", 0, false},
		{"21", 210, false},
		{"7.55", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLine(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLine(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseLine(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestWinningsTruncates(t *testing.T) {
	tests := []struct {
		stake, odds, want int64
	}{
		{100, 1900, 90},
		{55, 1900, 49}, // 55*1.9 = 104.5, truncated to 104, minus stake
		{50, 1950, 47},
		{20, 1900, 18},
		{100, 1000, 0},
		{1, 1001, 0},
	}
	for _, tt := range tests {
		if got := Winnings(tt.stake, tt.odds); got != tt.want {
			t.Errorf("Winnings(%d, %d) = %d, want %d", tt.stake, tt.odds, got, tt.want)
		}
	}
}

func TestSlotFor(t *testing.T) {
	tests := []struct {
		kind    BetKind
		side    Side
		want    ExposureSlot
		wantErr bool
	}{
		{BetMoneyline, SideHome, SlotMoneylineHome, false},
		{BetMoneyline, SideAway, SlotMoneylineAway, false},
		{BetDraw, SideNone, SlotDraw, false},
		{BetSpread, SideHome, SlotSpreadHome, false},
		{BetSpread, SideAway, SlotSpreadAway, false},
		{BetTotal, SideOver, SlotTotalOver, false},
		{BetTotal, SideUnder, SlotTotalUnder, false},
		{BetMoneyline, SideOver, "", true},
		{BetDraw, SideHome, "", true},
		{BetTotal, SideHome, "", true},
		{BetKind("parlay"), SideHome, "", true},
	}
	for _, tt := range tests {
		got, err := SlotFor(tt.kind, tt.side)
		if (err != nil) != tt.wantErr {
			t.Errorf("SlotFor(%q, %q) error = %v, wantErr %v", tt.kind, tt.side, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrValidation) {
			t.Errorf("SlotFor(%q, %q) error %v not classified as ErrValidation", tt.kind, tt.side, err)
		}
		if got != tt.want {
			t.Errorf("SlotFor(%q, %q) = %q, want %q", tt.kind, tt.side, got, tt.want)
		}
	}
}

func TestFormatRoundTrip(t *testing.T) {
	if got := FormatOdds(1950); got != "1.950" {
		t.Errorf("FormatOdds(1950) = %q, want %q", got, "1.950")
	}
	if got := FormatOdds(1000); got != "1.000" {
		t.Errorf("FormatOdds(1000) = %q, want %q", got, "1.000")
	}
	if got := FormatLine(-75); got != "-7.5" {
		t.Errorf("FormatLine(-75) = %q, want %q", got, "-7.5")
	}
	if got := FormatLine(2105); got != "210.5" {
		t.Errorf("FormatLine(2105) = %q, want %q", got, "210.5")
	}
}
