// internal/venue/simulated.go
package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// Fractional price moves applied on simulated exits. Take-profit exits use
// the neutral ladder magnitudes, a stop costs 2% and a manual close lands
// somewhere in a bounded band.
const (
	simMoveTP1 = 0.02
	simMoveTP2 = 0.045
	simMoveTP3 = 0.08
	simMoveSL  = -0.02

	simManualBand = 0.03
)

// Simulated is an in-process venue with its own balance ledger. Exits are
// deterministic per close kind except MANUAL, which draws from a seeded
// generator so runs are reproducible.
type Simulated struct {
	logger *zap.Logger

	mu      sync.Mutex
	balance float64
	rng     *rand.Rand
}

// NewSimulated creates a simulator funded with initialBalance.
func NewSimulated(initialBalance float64, seed int64, logger *zap.Logger) *Simulated {
	return &Simulated{
		logger:  logger.Named("venue.sim"),
		balance: initialBalance,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Balance returns the free (unlocked) simulated balance.
func (s *Simulated) Balance(_ context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balance, nil
}

// OpenPosition locks the collateral and acknowledges the fill at the
// requested entry price.
func (s *Simulated) OpenPosition(_ context.Context, spec trading.PositionSpec) (trading.OpenReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec.CollateralAmount > s.balance {
		return trading.OpenReceipt{}, fmt.Errorf(
			"insufficient simulated balance: need %.2f, have %.2f",
			spec.CollateralAmount, s.balance)
	}
	s.balance -= spec.CollateralAmount

	ref := "SIM-" + uuid.New().String()[:8]
	s.logger.Debug("Simulated open",
		zap.String("symbol", spec.Symbol),
		zap.String("tx_ref", ref),
		zap.Float64("collateral", spec.CollateralAmount),
		zap.Float64("balance", s.balance))

	return trading.OpenReceipt{
		TxRef:      ref,
		EntryPrice: spec.EntryPrice,
		Mode:       trading.VenueSimulated,
	}, nil
}

// ClosePosition settles the position with a price move determined by the
// close kind, releasing the collateral plus realized P&L back to the balance.
func (s *Simulated) ClosePosition(_ context.Context, pos *trading.Position, kind trading.CloseKind) (trading.CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	move := s.moveFor(kind)
	spec := pos.Spec

	exitPrice := spec.EntryPrice * (1 + move)
	if spec.Direction == trading.DirectionShort {
		exitPrice = spec.EntryPrice * (1 - move)
	}

	pnl := spec.PositionSizeUSD * move
	pnlPct := 0.0
	if spec.CollateralAmount > 0 {
		pnlPct = pnl / spec.CollateralAmount * 100
	}

	s.balance += spec.CollateralAmount + pnl

	s.logger.Debug("Simulated close",
		zap.String("symbol", spec.Symbol),
		zap.String("kind", string(kind)),
		zap.Float64("pnl", pnl),
		zap.Float64("balance", s.balance))

	return trading.CloseResult{
		ExitPrice:     exitPrice,
		PnL:           pnl,
		PnLPercentage: pnlPct,
		CloseKind:     kind,
	}, nil
}

// moveFor returns the favorable-direction price move fraction for an exit.
// Callers hold s.mu for the MANUAL draw.
func (s *Simulated) moveFor(kind trading.CloseKind) float64 {
	switch kind {
	case trading.CloseTP1:
		return simMoveTP1
	case trading.CloseTP2:
		return simMoveTP2
	case trading.CloseTP3:
		return simMoveTP3
	case trading.CloseSL:
		return simMoveSL
	default:
		return (s.rng.Float64()*2 - 1) * simManualBand
	}
}
