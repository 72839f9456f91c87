package engine

import (
	"errors"
	"testing"

	"github.com/wagerhouse/bookd/internal/domain"
)

func TestCheckAndReserve(t *testing.T) {
	tests := []struct {
		name      string
		globalMax int64
		slotMax   int64
		reserved  int64 // pre-reserved on the same slot
		amount    int64
		want      bool
	}{
		{"fits both levels", 1000, 500, 0, 400, true},
		{"exactly at slot ceiling", 1000, 500, 100, 400, true},
		{"breaks slot ceiling", 1000, 500, 200, 400, false},
		{"breaks global cap", 300, 500, 0, 400, false},
		{"zero slot max is uncapped", 1000, 0, 0, 900, true},
		{"global still caps uncapped slot", 300, 0, 0, 400, false},
		{"unfunded book admits nothing", 0, 0, 0, 1, false},
		{"zero amount always fits", 0, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLedger(tt.globalMax, tt.slotMax)
			if tt.reserved > 0 {
				if !l.CheckAndReserve(domain.SlotTotalOver, tt.reserved) {
					t.Fatalf("setup reservation of %d rejected", tt.reserved)
				}
			}
			got := l.CheckAndReserve(domain.SlotTotalOver, tt.amount)
			if got != tt.want {
				t.Fatalf("CheckAndReserve(%d) = %v, want %v", tt.amount, got, tt.want)
			}
			wantCurrent := tt.reserved
			if tt.want {
				wantCurrent += tt.amount
			}
			if l.GlobalCurrent() != wantCurrent {
				t.Errorf("global current = %d, want %d", l.GlobalCurrent(), wantCurrent)
			}
		})
	}
}

func TestReserveMovesBothLevelsTogether(t *testing.T) {
	l := NewLedger(1000, 0)
	l.CheckAndReserve(domain.SlotMoneylineHome, 90)
	l.CheckAndReserve(domain.SlotSpreadAway, 47)
	l.CheckAndReserve(domain.SlotTotalUnder, 18)

	snap := l.Snapshot()
	var sum int64
	for _, row := range snap.Slots {
		sum += row.Current
	}
	if sum != snap.Global.Current {
		t.Fatalf("slot currents sum to %d, global is %d", sum, snap.Global.Current)
	}
	if snap.Global.Current != 155 {
		t.Fatalf("global current = %d, want 155", snap.Global.Current)
	}
}

func TestReleaseRestoresHeadroom(t *testing.T) {
	l := NewLedger(100, 100)
	if !l.CheckAndReserve(domain.SlotDraw, 100) {
		t.Fatal("initial reservation rejected")
	}
	if l.CheckAndReserve(domain.SlotDraw, 1) {
		t.Fatal("over-reservation admitted")
	}
	l.Release(domain.SlotDraw, 60)
	if !l.CheckAndReserve(domain.SlotDraw, 60) {
		t.Fatal("reservation rejected after release freed headroom")
	}
}

func TestResetAllZeroesEveryCurrent(t *testing.T) {
	l := NewLedger(1000, 0)
	for _, slot := range domain.Slots {
		l.CheckAndReserve(slot, 10)
	}
	l.ResetAll()
	snap := l.Snapshot()
	if snap.Global.Current != 0 {
		t.Errorf("global current = %d after reset", snap.Global.Current)
	}
	for slot, row := range snap.Slots {
		if row.Current != 0 {
			t.Errorf("slot %s current = %d after reset", slot, row.Current)
		}
	}
	if snap.Global.Max != 1000 {
		t.Errorf("reset touched global max: %d", snap.Global.Max)
	}
}

func TestSetLimitRefusesFloorBreach(t *testing.T) {
	l := NewLedger(1000, 200)
	l.CheckAndReserve(domain.SlotTotalOver, 150)

	err := l.SetLimit(domain.SlotTotalOver, 100)
	if !errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("lowering below current exposure: err = %v, want ErrCapacity", err)
	}
	if err := l.SetLimit(domain.SlotTotalOver, 150); err != nil {
		t.Fatalf("lowering to exactly current exposure: %v", err)
	}
	if err := l.SetLimit(domain.SlotTotalOver, 0); err != nil {
		t.Fatalf("lifting the ceiling entirely: %v", err)
	}
	if err := l.SetLimit("bogus", 10); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown slot: err = %v, want ErrValidation", err)
	}
	if err := l.SetLimit(domain.SlotDraw, -1); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative limit: err = %v, want ErrValidation", err)
	}
}

func TestSetAllLimitsSkipsFloorCheck(t *testing.T) {
	l := NewLedger(1000, 200)
	l.CheckAndReserve(domain.SlotSpreadHome, 150)

	// The batch path deliberately allows ceilings below current exposure.
	err := l.SetAllLimits(map[domain.ExposureSlot]int64{
		domain.SlotSpreadHome: 10,
		domain.SlotSpreadAway: 300,
	})
	if err != nil {
		t.Fatalf("SetAllLimits: %v", err)
	}
	if l.CheckAndReserve(domain.SlotSpreadHome, 1) {
		t.Fatal("slot over its new ceiling admitted more")
	}
	if !l.CheckAndReserve(domain.SlotSpreadAway, 250) {
		t.Fatal("raised slot rejected a fitting reservation")
	}
	// Releasing past-ceiling exposure still works.
	l.Release(domain.SlotSpreadHome, 150)

	err = l.SetAllLimits(map[domain.ExposureSlot]int64{"bogus": 5})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown slot in batch: err = %v, want ErrValidation", err)
	}
}

func TestSetGlobalMax(t *testing.T) {
	l := NewLedger(100, 0)
	l.CheckAndReserve(domain.SlotMoneylineAway, 80)

	if err := l.SetGlobalMax(500); err != nil {
		t.Fatalf("raise: %v", err)
	}
	if err := l.SetGlobalMax(80); err != nil {
		t.Fatalf("lower to exactly current: %v", err)
	}
	if err := l.SetGlobalMax(79); !errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("lower below current: err = %v, want ErrCapacity", err)
	}
	if got := l.GlobalMax(); got != 80 {
		t.Fatalf("global max = %d after rejected lower, want 80", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	l := NewLedger(1000, 300)
	l.CheckAndReserve(domain.SlotMoneylineHome, 90)
	l.CheckAndReserve(domain.SlotTotalUnder, 18)
	l.SetLimit(domain.SlotDraw, 50)

	restored := NewLedger(0, 0)
	if err := restored.Restore(l.Snapshot()); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got, want := restored.Snapshot(), l.Snapshot(); got.Global != want.Global {
		t.Fatalf("global after restore = %+v, want %+v", got.Global, want.Global)
	}
	for _, slot := range domain.Slots {
		if restored.Snapshot().Slots[slot] != l.Snapshot().Slots[slot] {
			t.Errorf("slot %s differs after restore", slot)
		}
	}
}

func TestRestoreRefusesImbalancedSnapshot(t *testing.T) {
	snap := domain.ExposureSnapshot{
		Global: domain.LimitRow{Max: 100, Current: 50},
		Slots: map[domain.ExposureSlot]domain.LimitRow{
			domain.SlotMoneylineHome: {Max: 100, Current: 10},
		},
	}
	l := NewLedger(0, 0)
	if err := l.Restore(snap); !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("imbalanced restore: err = %v, want ErrInvariant", err)
	}
}

func TestReleaseUnderflowPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("release underflow did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, domain.ErrInvariant) {
			t.Fatalf("panic value %v, want ErrInvariant", r)
		}
	}()
	l := NewLedger(100, 0)
	l.CheckAndReserve(domain.SlotDraw, 10)
	l.Release(domain.SlotDraw, 11)
}
