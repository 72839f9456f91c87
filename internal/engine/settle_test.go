package engine

import (
	"testing"

	"github.com/wagerhouse/bookd/internal/domain"
)

func TestJudge(t *testing.T) {
	pos := func(kind domain.BetKind, side domain.Side, line int64) domain.Position {
		return domain.Position{Kind: kind, Side: side, Line: line}
	}
	tests := []struct {
		name       string
		p          domain.Position
		home, away int64
		want       outcome
	}{
		{"moneyline home wins", pos(domain.BetMoneyline, domain.SideHome, 0), 3, 1, outcomeWon},
		{"moneyline home loses", pos(domain.BetMoneyline, domain.SideHome, 0), 1, 3, outcomeLost},
		{"moneyline away wins", pos(domain.BetMoneyline, domain.SideAway, 0), 1, 3, outcomeWon},
		{"moneyline tie loses home", pos(domain.BetMoneyline, domain.SideHome, 0), 2, 2, outcomeLost},
		{"moneyline tie loses away", pos(domain.BetMoneyline, domain.SideAway, 0), 2, 2, outcomeLost},

		{"draw wins on tie", pos(domain.BetDraw, domain.SideNone, 0), 2, 2, outcomeWon},
		{"draw loses otherwise", pos(domain.BetDraw, domain.SideNone, 0), 2, 1, outcomeLost},

		// Home favored by 7.5: home must win by 8+.
		{"spread home covers", pos(domain.BetSpread, domain.SideHome, -75), 110, 100, outcomeWon},
		{"spread home misses", pos(domain.BetSpread, domain.SideHome, -75), 107, 100, outcomeLost},
		{"spread away takes the points", pos(domain.BetSpread, domain.SideAway, -75), 107, 100, outcomeWon},
		// Whole-number line: landing exactly on it is a push.
		{"spread push home", pos(domain.BetSpread, domain.SideHome, -70), 107, 100, outcomePush},
		{"spread push away", pos(domain.BetSpread, domain.SideAway, -70), 107, 100, outcomePush},
		// Home underdog: positive home line.
		{"spread underdog covers by losing small", pos(domain.BetSpread, domain.SideHome, 35), 100, 103, outcomeWon},
		{"spread underdog blown out", pos(domain.BetSpread, domain.SideHome, 35), 100, 104, outcomeLost},

		{"total over wins", pos(domain.BetTotal, domain.SideOver, 2105), 110, 101, outcomeWon},
		{"total under wins", pos(domain.BetTotal, domain.SideUnder, 2105), 100, 100, outcomeWon},
		{"total over misses", pos(domain.BetTotal, domain.SideOver, 2105), 100, 100, outcomeLost},
		{"total push", pos(domain.BetTotal, domain.SideOver, 2100), 110, 100, outcomePush},
		{"total push under", pos(domain.BetTotal, domain.SideUnder, 2100), 110, 100, outcomePush},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := judge(tt.p, tt.home, tt.away); got != tt.want {
				t.Fatalf("judge(%s %s line %d, %d-%d) = %v, want %v",
					tt.p.Kind, tt.p.Side, tt.p.Line, tt.home, tt.away, got, tt.want)
			}
		})
	}
}

func TestJudgeUnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("unknown kind did not panic")
		}
	}()
	judge(domain.Position{Kind: "parlay"}, 1, 0)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		o          outcome
		policy     domain.PushPolicy
		wantWon    bool
		wantRefund bool
	}{
		{outcomeWon, domain.PushLose, true, false},
		{outcomeWon, domain.PushRefund, true, false},
		{outcomeLost, domain.PushLose, false, false},
		{outcomeLost, domain.PushRefund, false, false},
		{outcomePush, domain.PushLose, false, false},
		{outcomePush, domain.PushRefund, false, true},
	}
	for _, tt := range tests {
		won, refund := resolve(tt.o, tt.policy)
		if won != tt.wantWon || refund != tt.wantRefund {
			t.Errorf("resolve(%v, %s) = (%v, %v), want (%v, %v)",
				tt.o, tt.policy, won, refund, tt.wantWon, tt.wantRefund)
		}
	}
}
