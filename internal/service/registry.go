// Package service orchestrates the accounting engine against the
// stores, caches, signal bus and treasury: it owns the live market
// registry, persists engine state write-behind, and emits the events
// the API and websocket layers fan out.
package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/wagerhouse/bookd/internal/domain"
	"github.com/wagerhouse/bookd/internal/engine"
)

// handle pairs one live engine with the metadata the engine does not
// own (teams, schedule, timestamps) and the mutex that serializes every
// operation against it. Engine types are single-writer; this mutex is
// the writer.
type handle struct {
	mu  sync.Mutex
	eng *engine.Market
	rec domain.Market
}

// snapshot merges the engine-owned fields into the stored record.
// Callers must hold h.mu.
func (h *handle) snapshot() domain.Market {
	eng := h.eng.Record()
	rec := h.rec
	rec.State = eng.State
	rec.Odds = eng.Odds
	rec.OddsFrozen = eng.OddsFrozen
	rec.OpeningLine = eng.OpeningLine
	rec.PushPolicy = eng.PushPolicy
	rec.HomeScore = eng.HomeScore
	rec.AwayScore = eng.AwayScore
	rec.SettledAt = eng.SettledAt
	return rec
}

// commit refreshes the cached record after a successful engine mutation
// and stamps the update time. Callers must hold h.mu.
func (h *handle) commit(at time.Time) domain.Market {
	rec := h.snapshot()
	rec.UpdatedAt = at
	h.rec = rec
	return rec
}

// Registry holds every market currently resident in memory. Lookups
// take the registry lock briefly; the per-market work inside With runs
// under the handle's own mutex so markets never serialize each other.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{markets: make(map[string]*handle)}
}

// Add registers a live engine under its market ID.
func (r *Registry) Add(eng *engine.Market, rec domain.Market) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markets[eng.ID()]; ok {
		return fmt.Errorf("%w: market %s already registered", domain.ErrAlreadyExists, eng.ID())
	}
	r.markets[eng.ID()] = &handle{eng: eng, rec: rec}
	return nil
}

// With runs fn against the named market under its serialization mutex.
// Reads go through here too: the engine is not safe for concurrent
// access.
func (r *Registry) With(id string, fn func(h *handle) error) error {
	r.mu.RLock()
	h, ok := r.markets[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: market %s not registered", domain.ErrNotFound, id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h)
}

// Remove drops a market from the registry. The caller is responsible
// for having persisted its final state.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markets, id)
}

// IDs lists the registered market IDs in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	return ids
}

// Len reports how many markets are resident.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// ActiveCount reports how many resident markets are not yet finalized.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	handles := make([]*handle, 0, len(r.markets))
	for _, h := range r.markets {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	n := 0
	for _, h := range handles {
		h.mu.Lock()
		if !h.eng.State().Final() {
			n++
		}
		h.mu.Unlock()
	}
	return n
}
