package engine

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
)

// Book is the append-only record of every accepted bet on one market,
// with a bettor index for lookups. Position IDs are dense from zero;
// nothing is ever removed.
type Book struct {
	positions []domain.Position
	byBettor  map[common.Address][]uint64
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{byBettor: make(map[common.Address][]uint64)}
}

// Record appends the position under the next sequential ID and returns
// that ID. Settlement fields are forced clear: a freshly recorded
// position is always live.
func (b *Book) Record(p domain.Position) uint64 {
	id := uint64(len(b.positions))
	p.ID = id
	p.Settled = false
	p.Won = false
	p.SettledAt = nil
	b.positions = append(b.positions, p)
	b.byBettor[p.Bettor] = append(b.byBettor[p.Bettor], id)
	return id
}

// Get returns a copy of one position.
func (b *Book) Get(id uint64) (domain.Position, error) {
	if id >= uint64(len(b.positions)) {
		return domain.Position{}, fmt.Errorf("%w: position %d", domain.ErrNotFound, id)
	}
	return b.positions[id], nil
}

// ListByBettor returns the bettor's position IDs in placement order.
func (b *Book) ListByBettor(bettor common.Address) []uint64 {
	ids := b.byBettor[bettor]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// MarkSettled finalizes one position exactly once. Settling twice, or an
// ID that was never recorded, is a bug rather than a caller error.
func (b *Book) MarkSettled(id uint64, won bool, at time.Time) {
	if id >= uint64(len(b.positions)) {
		panic(fmt.Errorf("%w: settle unknown position %d", domain.ErrInvariant, id))
	}
	p := &b.positions[id]
	if p.Settled {
		panic(fmt.Errorf("%w: position %d settled twice", domain.ErrInvariant, id))
	}
	p.Settled = true
	p.Won = won
	p.SettledAt = &at
}

// Len is the number of recorded positions.
func (b *Book) Len() int { return len(b.positions) }

// All returns a copy of every position in ID order.
func (b *Book) All() []domain.Position {
	out := make([]domain.Position, len(b.positions))
	copy(out, b.positions)
	return out
}

// Restore loads a journaled position list, refusing one whose IDs are
// not dense from zero.
func (b *Book) Restore(positions []domain.Position) error {
	next := NewBook()
	for i, p := range positions {
		if p.ID != uint64(i) {
			return fmt.Errorf("%w: position journal gap at %d (id %d)", domain.ErrInvariant, i, p.ID)
		}
		next.positions = append(next.positions, p)
		next.byBettor[p.Bettor] = append(next.byBettor[p.Bettor], p.ID)
	}
	*b = *next
	return nil
}
