// internal/trading/result.go
package trading

// Outcome discriminates the three result classes every operation resolves to.
// Skipped is admission control (duplicate in-flight, nothing to close, below
// the collateral floor) and is not an error; callers must read Status from
// the body, never infer it from transport codes.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Result is the tagged outcome of an open or close invocation.
type Result struct {
	Status Outcome `json:"status"`
	Reason string  `json:"reason,omitempty"`

	// Open success payload.
	PositionID      string  `json:"position_id,omitempty"`
	Symbol          string  `json:"symbol,omitempty"`
	Collateral      float64 `json:"collateral,omitempty"`
	Leverage        int     `json:"leverage,omitempty"`
	PositionSizeUSD float64 `json:"position_size_usd,omitempty"`
	TxRef           string  `json:"tx_ref,omitempty"`
	VenueMode       string  `json:"venue_mode,omitempty"`

	// Close success payload.
	PnL        float64 `json:"pnl,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
	CloseKind  string  `json:"close_kind,omitempty"`
	NewBalance float64 `json:"new_balance,omitempty"`
}

func skipped(reason string) Result {
	return Result{Status: OutcomeSkipped, Reason: reason}
}

func failed(reason string) Result {
	return Result{Status: OutcomeError, Reason: reason}
}
