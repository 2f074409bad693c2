// internal/trading/guard.go
package trading

import "sync"

// Guard enforces single-flight-per-symbol admission: at most one in-flight
// open or close operation per symbol at any time. Acquisition is try-once and
// never blocks; a losing caller treats the signal as skipped, not queued.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewGuard creates an independent guard instance, one per orchestrator.
func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks symbol as in-flight. Returns false without blocking if an
// operation already holds the symbol.
func (g *Guard) TryAcquire(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.inFlight[symbol]; held {
		return false
	}
	g.inFlight[symbol] = struct{}{}
	return true
}

// Release frees the symbol. Must run on every exit path of the holder;
// a leaked acquisition blocks the symbol permanently.
func (g *Guard) Release(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, symbol)
}

// InFlight reports how many symbols currently hold an operation.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
