// internal/trading/registry.go
package trading

import (
	"sync"
	"time"
)

// Registry is the canonical in-memory store of positions. Open positions are
// keyed by symbol (one live position per symbol, enforced upstream by the
// Guard); closed positions move to an append-only history and are never
// deleted.
type Registry struct {
	mu     sync.RWMutex
	open   map[string]*Position
	closed []*Position
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{open: make(map[string]*Position)}
}

// Add records a freshly opened position.
func (r *Registry) Add(p *Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.open[p.Symbol] = p
}

// Open returns the live position for symbol, if any.
func (r *Registry) Open(symbol string) (*Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.open[symbol]
	return p, ok
}

// Close transitions the symbol's open position to CLOSED, stamps the close
// result onto it, and moves it to history. Returns false if there was no open
// position for the symbol.
func (r *Registry) Close(symbol string, res CloseResult, closedAt time.Time) (*Position, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.open[symbol]
	if !ok {
		return nil, false
	}

	p.Status = StatusClosed
	p.ClosedAt = &closedAt
	p.ExitPrice = res.ExitPrice
	p.PnL = res.PnL
	p.CloseKind = res.CloseKind

	delete(r.open, symbol)
	r.closed = append(r.closed, p)
	return p, true
}

// OpenCount returns the number of live positions.
func (r *Registry) OpenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.open)
}

// OpenPositions returns value copies of all live positions, taken under the
// lock. Callers may read or encode them while Close mutates the originals.
func (r *Registry) OpenPositions() []Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Position, 0, len(r.open))
	for _, p := range r.open {
		out = append(out, *p)
	}
	return out
}

// ClosedPositions returns value copies of the audit history.
func (r *Registry) ClosedPositions() []Position {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Position, 0, len(r.closed))
	for _, p := range r.closed {
		out = append(out, *p)
	}
	return out
}
