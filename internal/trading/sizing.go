// internal/trading/sizing.go
package trading

import "strings"

// Sizing policy constants. Tier 1 is the highest-conviction signal class.
const (
	tier1Fraction = 0.25
	tier2Fraction = 0.18

	bearMultiplier = 0.8
	bullMultiplier = 1.1

	// MinCollateralUSD is a hard floor independent of balance. Anything
	// below it is skipped, never executed.
	MinCollateralUSD = 10.0
)

// Sizing is the output of ComputeSize. PositionSizeUSD is always
// Collateral * Leverage.
type Sizing struct {
	Collateral      float64
	Leverage        int
	PositionSizeUSD float64
}

// ComputeSize maps (balance, tier, regime, symbol) to collateral and
// leverage. It is pure and total: malformed tiers fall back to the tier-2
// fraction and unknown regimes count as neutral, so it never fails a request.
// A false second return means the computed collateral is below the floor and
// the signal must be skipped.
func ComputeSize(balance float64, tier int, regime, symbol string) (Sizing, bool) {
	fraction := tier2Fraction
	if tier == 1 {
		fraction = tier1Fraction
	}

	switch strings.ToUpper(strings.TrimSpace(regime)) {
	case "BEAR":
		fraction *= bearMultiplier
	case "BULL":
		fraction *= bullMultiplier
	}

	collateral := balance * fraction
	if collateral < MinCollateralUSD {
		return Sizing{}, false
	}

	leverage := selectLeverage(symbol, tier)
	return Sizing{
		Collateral:      collateral,
		Leverage:        leverage,
		PositionSizeUSD: collateral * float64(leverage),
	}, true
}

// selectLeverage picks leverage by symbol class: major crypto pairs run the
// lowest leverage, 6-character forex-style symbols the highest.
func selectLeverage(symbol string, tier int) int {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	tier1 := tier == 1

	if strings.Contains(s, "BTC") || strings.Contains(s, "ETH") {
		if tier1 {
			return 5
		}
		return 7
	}
	if len(s) == 6 && strings.HasSuffix(s, "USD") {
		if tier1 {
			return 10
		}
		return 15
	}
	if tier1 {
		return 5
	}
	return 10
}

// TPLadder holds the three take-profit levels as fractional price moves
// from entry.
type TPLadder struct {
	TP1 float64
	TP2 float64
	TP3 float64
}

// Regime-dependent take-profit ladders. Bear markets take profit earlier.
var tpLadders = map[string]TPLadder{
	"BULL":    {TP1: 0.025, TP2: 0.055, TP3: 0.12},
	"BEAR":    {TP1: 0.015, TP2: 0.035, TP3: 0.05},
	"NEUTRAL": {TP1: 0.02, TP2: 0.045, TP3: 0.08},
}

// LadderFor returns the take-profit ladder for a regime, defaulting to the
// neutral ladder for anything unrecognized.
func LadderFor(regime string) TPLadder {
	if l, ok := tpLadders[strings.ToUpper(strings.TrimSpace(regime))]; ok {
		return l
	}
	return tpLadders["NEUTRAL"]
}

// TPPrices converts a ladder into absolute price targets for a direction.
func TPPrices(entryPrice float64, direction Direction, regime string) (tp1, tp2, tp3 float64) {
	l := LadderFor(regime)
	if direction == DirectionShort {
		return entryPrice * (1 - l.TP1), entryPrice * (1 - l.TP2), entryPrice * (1 - l.TP3)
	}
	return entryPrice * (1 + l.TP1), entryPrice * (1 + l.TP2), entryPrice * (1 + l.TP3)
}
