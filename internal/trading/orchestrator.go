// internal/trading/orchestrator.go
package trading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/profit"
)

// OpenReceipt is what a venue reports back after opening a position.
type OpenReceipt struct {
	TxRef      string
	EntryPrice float64
	Mode       VenueMode
}

// VenueClient is the capability set the orchestrator needs from a venue
// adapter. Implementations surface failures as errors, never panic.
type VenueClient interface {
	Balance(ctx context.Context) (float64, error)
	OpenPosition(ctx context.Context, spec PositionSpec) (OpenReceipt, error)
	ClosePosition(ctx context.Context, pos *Position, kind CloseKind) (CloseResult, error)
}

// Notifier receives final trade outcomes. Implementations must be
// non-blocking and must never fail the trade path.
type Notifier interface {
	TradeOpened(pos *Position)
	TradeClosed(pos *Position, rec profit.Record)
}

// Ledger persists trade lifecycle events.
type Ledger interface {
	RecordOpen(pos *Position) error
	RecordClose(pos *Position, rec profit.Record) error
}

// Skip reasons reported in the result body.
const (
	ReasonDuplicateInFlight    = "duplicate in-flight request for symbol"
	ReasonAlreadyOpen          = "position already open for symbol"
	ReasonMaxOpenPositions     = "max open positions reached"
	ReasonInsufficientBalance  = "insufficient balance for collateral"
	ReasonCollateralBelowFloor = "computed collateral below minimum"
	ReasonNoOpenPosition       = "no open position for symbol"
)

// Orchestrator drives the open/close state machine: per-symbol concurrency
// guard, sizing, venue execution, position registry and profit processing.
type Orchestrator struct {
	logger   *zap.Logger
	venue    VenueClient
	guard    *Guard
	registry *Registry
	profits  *profit.Manager
	notifier Notifier
	ledger   Ledger
	maxOpen  int
}

// NewOrchestrator wires the trade pipeline. notifier and ledger may be nil.
func NewOrchestrator(
	venue VenueClient,
	profits *profit.Manager,
	notifier Notifier,
	ledger Ledger,
	maxOpen int,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		logger:   logger.Named("orchestrator"),
		venue:    venue,
		guard:    NewGuard(),
		registry: NewRegistry(),
		profits:  profits,
		notifier: notifier,
		ledger:   ledger,
		maxOpen:  maxOpen,
	}
}

// Registry exposes the position book for reporting.
func (o *Orchestrator) Registry() *Registry { return o.registry }

// HandleOpen runs the full open pipeline for a validated signal. Every
// outcome is expressed in the returned Result; it never panics.
func (o *Orchestrator) HandleOpen(ctx context.Context, sig Signal) Result {
	if err := sig.Validate(); err != nil {
		return failed(err.Error())
	}

	if !o.guard.TryAcquire(sig.Symbol) {
		o.logger.Warn("Duplicate signal dropped", zap.String("symbol", sig.Symbol))
		return skipped(ReasonDuplicateInFlight)
	}
	defer o.guard.Release(sig.Symbol)

	if _, exists := o.registry.Open(sig.Symbol); exists {
		return skipped(ReasonAlreadyOpen)
	}
	if o.maxOpen > 0 && o.registry.OpenCount() >= o.maxOpen {
		o.logger.Warn("Open position cap reached",
			zap.Int("open", o.registry.OpenCount()),
			zap.Int("max", o.maxOpen))
		return skipped(ReasonMaxOpenPositions)
	}

	balance, err := o.venue.Balance(ctx)
	if err != nil {
		o.logger.Error("Balance query failed", zap.Error(err))
		return failed("balance query failed: " + err.Error())
	}

	sizing, ok := ComputeSize(balance, sig.Tier, sig.Regime, sig.Symbol)
	if !ok {
		o.logger.Info("Signal skipped, collateral below floor",
			zap.String("symbol", sig.Symbol),
			zap.Float64("balance", balance))
		return skipped(ReasonCollateralBelowFloor)
	}
	if sizing.Collateral > balance {
		return skipped(ReasonInsufficientBalance)
	}

	tp1, tp2, tp3 := TPPrices(sig.EntryPrice, sig.Direction, sig.Regime)
	spec := PositionSpec{
		Symbol:           sig.Symbol,
		Direction:        sig.Direction,
		CollateralAmount: sizing.Collateral,
		Leverage:         sizing.Leverage,
		PositionSizeUSD:  sizing.PositionSizeUSD,
		EntryPrice:       sig.EntryPrice,
		StopLoss:         sig.StopLoss,
		TakeProfit1:      tp1,
		TakeProfit2:      tp2,
		TakeProfit3:      tp3,
	}
	if sig.TP1 > 0 {
		spec.TakeProfit1 = sig.TP1
	}
	if sig.TP2 > 0 {
		spec.TakeProfit2 = sig.TP2
	}
	if sig.TP3 > 0 {
		spec.TakeProfit3 = sig.TP3
	}

	receipt, err := o.venue.OpenPosition(ctx, spec)
	if err != nil {
		o.logger.Error("Venue open failed",
			zap.String("symbol", sig.Symbol),
			zap.Error(err))
		return failed("venue open failed: " + err.Error())
	}
	if receipt.EntryPrice > 0 {
		spec.EntryPrice = receipt.EntryPrice
	}

	pos := &Position{
		ID:        uuid.New().String(),
		Symbol:    sig.Symbol,
		Spec:      spec,
		Status:    StatusOpen,
		OpenedAt:  time.Now(),
		TxRef:     receipt.TxRef,
		VenueMode: receipt.Mode,
	}
	o.registry.Add(pos)

	o.logger.Info("Position opened",
		zap.String("id", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("direction", string(spec.Direction)),
		zap.Float64("collateral", spec.CollateralAmount),
		zap.Int("leverage", spec.Leverage),
		zap.Float64("size_usd", spec.PositionSizeUSD),
		zap.String("venue_mode", string(pos.VenueMode)))

	go o.dispatchOpen(pos)

	return Result{
		Status:          OutcomeSuccess,
		PositionID:      pos.ID,
		Symbol:          pos.Symbol,
		Collateral:      spec.CollateralAmount,
		Leverage:        spec.Leverage,
		PositionSizeUSD: spec.PositionSizeUSD,
		TxRef:           pos.TxRef,
		VenueMode:       string(pos.VenueMode),
	}
}

// HandleClose closes the open position for a symbol, routes the realized
// P&L through the profit engine and reports the post-allocation balance.
func (o *Orchestrator) HandleClose(ctx context.Context, symbol, reason string) Result {
	kind := ParseCloseKind(reason)

	if !o.guard.TryAcquire(symbol) {
		o.logger.Warn("Duplicate close dropped", zap.String("symbol", symbol))
		return skipped(ReasonDuplicateInFlight)
	}
	defer o.guard.Release(symbol)

	pos, exists := o.registry.Open(symbol)
	if !exists {
		return skipped(ReasonNoOpenPosition)
	}

	res, err := o.venue.ClosePosition(ctx, pos, kind)
	if err != nil {
		o.logger.Error("Venue close failed",
			zap.String("symbol", symbol),
			zap.Error(err))
		return failed("venue close failed: " + err.Error())
	}

	closed, ok := o.registry.Close(symbol, res, time.Now())
	if !ok {
		// Registry raced empty between lookup and close. Guard makes this
		// unreachable; report it rather than drop the venue fill.
		o.logger.Error("Closed position missing from registry", zap.String("symbol", symbol))
		return failed("position vanished during close")
	}

	balance, err := o.venue.Balance(ctx)
	if err != nil {
		o.logger.Warn("Balance query failed after close, allocating against zero",
			zap.Error(err))
		balance = 0
	}
	rec := o.profits.Process(res.PnL, balance)

	o.logger.Info("Position closed",
		zap.String("id", closed.ID),
		zap.String("symbol", symbol),
		zap.String("close_kind", string(res.CloseKind)),
		zap.Float64("exit_price", res.ExitPrice),
		zap.Float64("pnl", res.PnL),
		zap.Float64("pnl_pct", res.PnLPercentage),
		zap.Float64("new_balance", rec.NewBalance))

	go o.dispatchClose(closed, rec)

	return Result{
		Status:     OutcomeSuccess,
		PositionID: closed.ID,
		Symbol:     symbol,
		PnL:        res.PnL,
		ExitPrice:  res.ExitPrice,
		CloseKind:  string(res.CloseKind),
		NewBalance: rec.NewBalance,
		VenueMode:  string(closed.VenueMode),
	}
}

func (o *Orchestrator) dispatchOpen(pos *Position) {
	if o.ledger != nil {
		if err := o.ledger.RecordOpen(pos); err != nil {
			o.logger.Warn("Ledger write failed", zap.Error(err))
		}
	}
	if o.notifier != nil {
		o.notifier.TradeOpened(pos)
	}
}

func (o *Orchestrator) dispatchClose(pos *Position, rec profit.Record) {
	if o.ledger != nil {
		if err := o.ledger.RecordClose(pos, rec); err != nil {
			o.logger.Warn("Ledger write failed", zap.Error(err))
		}
	}
	if o.notifier != nil {
		o.notifier.TradeClosed(pos, rec)
	}
}
