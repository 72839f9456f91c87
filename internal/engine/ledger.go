// Package engine implements the accounting core of the book: per-market
// exposure ceilings, the odds board, the append-only position book, and
// the bet admission, settlement and cancellation flows that tie them to
// the token vault.
//
// Engine types are single-writer. Nothing in this package locks; the
// service layer serializes every mutation per market.
package engine

import (
	"fmt"

	"github.com/wagerhouse/bookd/internal/domain"
)

// counter pairs a ceiling with its running reservation, both in token
// minor units.
type counter struct {
	max     int64
	current int64
}

// Ledger tracks reserved exposure (potential winnings of unsettled bets)
// at two levels: one book-wide cap and seven per-outcome ceilings. A
// reservation moves both levels together or not at all, so the slot
// currents always sum to the global current. A zero per-slot max means
// that outcome is uncapped (the global cap still applies); a zero global
// max means the book is unfunded and admits nothing.
type Ledger struct {
	global counter
	slots  [len(domain.Slots)]counter
}

// NewLedger starts every slot at slotMax and the book-wide cap at
// globalMax, with nothing reserved.
func NewLedger(globalMax, slotMax int64) *Ledger {
	l := &Ledger{global: counter{max: globalMax}}
	for i := range l.slots {
		l.slots[i].max = slotMax
	}
	return l
}

func slotIndex(slot domain.ExposureSlot) (int, bool) {
	for i, s := range domain.Slots {
		if s == slot {
			return i, true
		}
	}
	return 0, false
}

func mustSlotIndex(slot domain.ExposureSlot) int {
	i, ok := slotIndex(slot)
	if !ok {
		panic(fmt.Errorf("%w: unknown exposure slot %q", domain.ErrInvariant, slot))
	}
	return i
}

// CheckAndReserve admits amount iff it fits under the global cap and the
// slot ceiling. On admit both counters grow together; a rejection
// changes nothing.
func (l *Ledger) CheckAndReserve(slot domain.ExposureSlot, amount int64) bool {
	i := mustSlotIndex(slot)
	if amount < 0 {
		panic(fmt.Errorf("%w: negative reservation %d", domain.ErrInvariant, amount))
	}
	if l.global.current+amount > l.global.max {
		return false
	}
	if s := l.slots[i]; s.max != 0 && s.current+amount > s.max {
		return false
	}
	l.global.current += amount
	l.slots[i].current += amount
	l.assertBalanced()
	return true
}

// Release returns a reservation at both levels. Releasing more than was
// reserved is a bug, not a caller error.
func (l *Ledger) Release(slot domain.ExposureSlot, amount int64) {
	i := mustSlotIndex(slot)
	if amount < 0 || amount > l.slots[i].current || amount > l.global.current {
		panic(fmt.Errorf("%w: release %d exceeds reservation on %s", domain.ErrInvariant, amount, slot))
	}
	l.global.current -= amount
	l.slots[i].current -= amount
	l.assertBalanced()
}

// ResetAll zeroes every running reservation. Settlement calls it after
// the per-position releases as the final sweep.
func (l *Ledger) ResetAll() {
	l.global.current = 0
	for i := range l.slots {
		l.slots[i].current = 0
	}
}

// SetLimit replaces one slot ceiling. Lowering it below the slot's
// current reservation is refused; setting zero lifts the ceiling.
func (l *Ledger) SetLimit(slot domain.ExposureSlot, max int64) error {
	i, ok := slotIndex(slot)
	if !ok {
		return fmt.Errorf("%w: unknown exposure slot %q", domain.ErrValidation, slot)
	}
	if max < 0 {
		return fmt.Errorf("%w: negative limit on %s", domain.ErrValidation, slot)
	}
	if max != 0 && max < l.slots[i].current {
		return fmt.Errorf("%w: limit %d below current exposure %d on %s",
			domain.ErrCapacity, max, l.slots[i].current, slot)
	}
	l.slots[i].max = max
	return nil
}

// SetAllLimits batch-assigns the named slot ceilings without the
// per-slot floor check: bulk reconfiguration must not depend on
// assignment order. Callers audit-log the full change.
func (l *Ledger) SetAllLimits(maxes map[domain.ExposureSlot]int64) error {
	staged := make(map[int]int64, len(maxes))
	for slot, max := range maxes {
		i, ok := slotIndex(slot)
		if !ok {
			return fmt.Errorf("%w: unknown exposure slot %q", domain.ErrValidation, slot)
		}
		if max < 0 {
			return fmt.Errorf("%w: negative limit on %s", domain.ErrValidation, slot)
		}
		staged[i] = max
	}
	for i, max := range staged {
		l.slots[i].max = max
	}
	return nil
}

// SetGlobalMax replaces the book-wide cap. Raises always land; lowering
// below the current global exposure is refused.
func (l *Ledger) SetGlobalMax(max int64) error {
	if max < 0 {
		return fmt.Errorf("%w: negative global limit", domain.ErrValidation)
	}
	if max < l.global.current {
		return fmt.Errorf("%w: global limit %d below current exposure %d",
			domain.ErrCapacity, max, l.global.current)
	}
	l.global.max = max
	return nil
}

// GlobalMax is the current book-wide cap.
func (l *Ledger) GlobalMax() int64 { return l.global.max }

// GlobalCurrent is the total reserved exposure.
func (l *Ledger) GlobalCurrent() int64 { return l.global.current }

// Snapshot copies the full ledger state.
func (l *Ledger) Snapshot() domain.ExposureSnapshot {
	snap := domain.ExposureSnapshot{
		Global: domain.LimitRow{Max: l.global.max, Current: l.global.current},
		Slots:  make(map[domain.ExposureSlot]domain.LimitRow, len(domain.Slots)),
	}
	for i, slot := range domain.Slots {
		snap.Slots[slot] = domain.LimitRow{Max: l.slots[i].max, Current: l.slots[i].current}
	}
	return snap
}

// Restore replaces the ledger with a persisted snapshot, refusing one
// whose slot currents do not sum to its global current.
func (l *Ledger) Restore(snap domain.ExposureSnapshot) error {
	next := Ledger{global: counter{max: snap.Global.Max, current: snap.Global.Current}}
	var sum int64
	for i, slot := range domain.Slots {
		row := snap.Slots[slot]
		next.slots[i] = counter{max: row.Max, current: row.Current}
		sum += row.Current
	}
	if sum != next.global.current {
		return fmt.Errorf("%w: slot exposure %d does not sum to global %d",
			domain.ErrInvariant, sum, next.global.current)
	}
	*l = next
	return nil
}

func (l *Ledger) assertBalanced() {
	var sum int64
	for _, s := range l.slots {
		sum += s.current
	}
	if sum != l.global.current {
		panic(fmt.Errorf("%w: slot exposure %d does not sum to global %d",
			domain.ErrInvariant, sum, l.global.current))
	}
}
