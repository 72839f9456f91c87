package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wagerhouse/bookd/internal/domain"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestRecordAssignsDenseIDs(t *testing.T) {
	b := NewBook()
	for i := 0; i < 3; i++ {
		id := b.Record(domain.Position{Bettor: alice, Stake: 10, Settled: true, Won: true})
		if id != uint64(i) {
			t.Fatalf("Record #%d returned id %d", i, id)
		}
	}
	p, err := b.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	// Settlement fields on input are ignored: a new position is live.
	if p.Settled || p.Won || p.SettledAt != nil {
		t.Fatalf("recorded position carries settlement state: %+v", p)
	}
}

func TestGetUnknownPosition(t *testing.T) {
	b := NewBook()
	b.Record(domain.Position{Bettor: alice})
	if _, err := b.Get(1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get(1) err = %v, want ErrNotFound", err)
	}
}

func TestListByBettorKeepsPlacementOrder(t *testing.T) {
	b := NewBook()
	b.Record(domain.Position{Bettor: alice})
	b.Record(domain.Position{Bettor: bob})
	b.Record(domain.Position{Bettor: alice})

	ids := b.ListByBettor(alice)
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 2 {
		t.Fatalf("ListByBettor(alice) = %v, want [0 2]", ids)
	}
	if got := b.ListByBettor(bob); len(got) != 1 || got[0] != 1 {
		t.Fatalf("ListByBettor(bob) = %v, want [1]", got)
	}
	if got := b.ListByBettor(common.Address{}); len(got) != 0 {
		t.Fatalf("unknown bettor returned %v", got)
	}

	// The returned slice is a copy.
	ids[0] = 99
	if again := b.ListByBettor(alice); again[0] != 0 {
		t.Fatal("ListByBettor exposes internal index")
	}
}

func TestMarkSettledTwicePanics(t *testing.T) {
	b := NewBook()
	b.Record(domain.Position{Bettor: alice})
	b.MarkSettled(0, true, time.Now())

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("double settle did not panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, domain.ErrInvariant) {
			t.Fatalf("panic value %v, want ErrInvariant", r)
		}
	}()
	b.MarkSettled(0, false, time.Now())
}

func TestRestoreRefusesJournalGaps(t *testing.T) {
	b := NewBook()
	err := b.Restore([]domain.Position{
		{ID: 0, Bettor: alice},
		{ID: 2, Bettor: bob},
	})
	if !errors.Is(err, domain.ErrInvariant) {
		t.Fatalf("gapped journal: err = %v, want ErrInvariant", err)
	}

	if err := b.Restore([]domain.Position{
		{ID: 0, Bettor: alice},
		{ID: 1, Bettor: bob},
	}); err != nil {
		t.Fatalf("dense journal: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("Len() = %d after restore", b.Len())
	}
	if ids := b.ListByBettor(bob); len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("index not rebuilt: %v", ids)
	}
}
