// internal/trading/types.go
package trading

import (
	"fmt"
	"strings"
	"time"
)

// Direction of a position relative to the underlying asset.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// ParseDirection normalizes a raw direction string.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG":
		return DirectionLong, nil
	case "SHORT":
		return DirectionShort, nil
	default:
		return "", fmt.Errorf("invalid direction %q: must be LONG or SHORT", raw)
	}
}

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// VenueMode records which execution path actually filled an order.
type VenueMode string

const (
	VenueLive      VenueMode = "LIVE"
	VenueSimulated VenueMode = "SIMULATED"
)

// CloseKind is the reason a position was exited.
type CloseKind string

const (
	CloseTP1    CloseKind = "TP1"
	CloseTP2    CloseKind = "TP2"
	CloseTP3    CloseKind = "TP3"
	CloseSL     CloseKind = "SL"
	CloseManual CloseKind = "MANUAL"
)

// ParseCloseKind maps a free-form close reason onto a CloseKind.
// Unrecognized reasons are treated as a manual close.
func ParseCloseKind(raw string) CloseKind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TP1":
		return CloseTP1
	case "TP2":
		return CloseTP2
	case "TP3":
		return CloseTP3
	case "SL", "STOP_LOSS", "STOPLOSS":
		return CloseSL
	default:
		return CloseManual
	}
}

// Signal is an upstream trade instruction. Immutable once received.
type Signal struct {
	Symbol     string    `json:"symbol"`
	Direction  Direction `json:"direction"`
	Tier       int       `json:"tier"`
	Regime     string    `json:"regime"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TP1        float64   `json:"tp1"`
	TP2        float64   `json:"tp2"`
	TP3        float64   `json:"tp3"`
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the fields the orchestrator cannot degrade gracefully on.
// Tier and regime are intentionally not validated here: the sizing engine
// treats unknown values as its default branch.
func (s *Signal) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("signal missing symbol")
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return fmt.Errorf("signal %s has invalid direction %q", s.Symbol, s.Direction)
	}
	if s.EntryPrice < 0 {
		return fmt.Errorf("signal %s has negative entry price", s.Symbol)
	}
	return nil
}

// PositionSpec is the sized, leveraged order derived from a signal.
// PositionSizeUSD is always CollateralAmount * Leverage.
type PositionSpec struct {
	Symbol           string    `json:"symbol"`
	Direction        Direction `json:"direction"`
	CollateralAmount float64   `json:"collateral_amount"`
	Leverage         int       `json:"leverage"`
	PositionSizeUSD  float64   `json:"position_size_usd"`
	EntryPrice       float64   `json:"entry_price"`
	StopLoss         float64   `json:"stop_loss,omitempty"`
	TakeProfit1      float64   `json:"take_profit_1,omitempty"`
	TakeProfit2      float64   `json:"take_profit_2,omitempty"`
	TakeProfit3      float64   `json:"take_profit_3,omitempty"`
}

// Position is a venue-acknowledged trade owned by the Registry.
type Position struct {
	ID        string         `json:"id"`
	Symbol    string         `json:"symbol"`
	Spec      PositionSpec   `json:"spec"`
	Status    PositionStatus `json:"status"`
	OpenedAt  time.Time      `json:"opened_at"`
	ClosedAt  *time.Time     `json:"closed_at,omitempty"`
	TxRef     string         `json:"tx_ref"`
	VenueMode VenueMode      `json:"venue_mode"`

	// Filled in on close.
	ExitPrice float64   `json:"exit_price,omitempty"`
	PnL       float64   `json:"pnl,omitempty"`
	CloseKind CloseKind `json:"close_kind,omitempty"`
}

// CloseResult is the venue's account of a completed exit.
type CloseResult struct {
	ExitPrice     float64   `json:"exit_price"`
	PnL           float64   `json:"pnl"`
	PnLPercentage float64   `json:"pnl_percentage"`
	CloseKind     CloseKind `json:"close_kind"`
}
