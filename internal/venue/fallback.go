// internal/venue/fallback.go
package venue

import (
	"context"

	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// Fallback degrades from a primary venue to a secondary one when the primary
// fails. Receipts from the secondary path keep its venue mode, so a trade
// filled by the simulator is always reported as simulated.
type Fallback struct {
	logger    *zap.Logger
	primary   trading.VenueClient
	secondary trading.VenueClient
}

// NewFallback wraps primary with secondary as the fallback path.
func NewFallback(primary, secondary trading.VenueClient, logger *zap.Logger) *Fallback {
	return &Fallback{
		logger:    logger.Named("venue.fallback"),
		primary:   primary,
		secondary: secondary,
	}
}

func (f *Fallback) Balance(ctx context.Context) (float64, error) {
	balance, err := f.primary.Balance(ctx)
	if err == nil {
		return balance, nil
	}
	f.logger.Warn("Primary venue balance failed, using fallback", zap.Error(err))
	return f.secondary.Balance(ctx)
}

func (f *Fallback) OpenPosition(ctx context.Context, spec trading.PositionSpec) (trading.OpenReceipt, error) {
	receipt, err := f.primary.OpenPosition(ctx, spec)
	if err == nil {
		return receipt, nil
	}
	f.logger.Warn("Primary venue open failed, using fallback",
		zap.String("symbol", spec.Symbol),
		zap.Error(err))
	return f.secondary.OpenPosition(ctx, spec)
}

func (f *Fallback) ClosePosition(ctx context.Context, pos *trading.Position, kind trading.CloseKind) (trading.CloseResult, error) {
	// A position is closed where it was opened. Simulated fills never
	// existed on the live venue.
	if pos.VenueMode == trading.VenueSimulated {
		return f.secondary.ClosePosition(ctx, pos, kind)
	}
	res, err := f.primary.ClosePosition(ctx, pos, kind)
	if err == nil {
		return res, nil
	}
	f.logger.Warn("Primary venue close failed, using fallback",
		zap.String("symbol", pos.Symbol),
		zap.Error(err))
	return f.secondary.ClosePosition(ctx, pos, kind)
}
