// Package dedup filters out-of-order and replayed market-data ticks.
// Multiple sockets and channels can deliver the same symbol; within one
// symbol only strictly increasing timestamps pass the gate.
package dedup

import "sync"

type entry struct {
	mu     sync.Mutex
	lastTS int64
	seen   bool
}

// Gate is a per-symbol monotonic-timestamp filter. Entries are created when
// a subscription is acknowledged and destroyed when it is removed, so
// different symbols proceed fully in parallel.
type Gate struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func NewGate() *Gate {
	return &Gate{entries: make(map[string]*entry)}
}

// Track creates the symbol's entry. No-op when already tracked.
func (g *Gate) Track(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entries[symbol]; !ok {
		g.entries[symbol] = &entry{}
	}
}

// Forget drops the symbol's entry and its last-seen state.
func (g *Gate) Forget(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, symbol)
}

// Tracked reports whether the symbol has an entry.
func (g *Gate) Tracked(symbol string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.entries[symbol]
	return ok
}

// Admit reports whether a tick with the given timestamp should be delivered
// and, if so, advances the symbol's last-seen timestamp. Ties and
// regressions are dropped. Untracked symbols are always dropped.
func (g *Gate) Admit(symbol string, timestamp int64) bool {
	g.mu.RLock()
	e, ok := g.entries[symbol]
	g.mu.RUnlock()
	if !ok {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.seen && timestamp <= e.lastTS {
		return false
	}
	e.lastTS = timestamp
	e.seen = true
	return true
}
