// internal/profit/manager.go
package profit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase is an allocation policy stage. The three ratios always sum to 1.
type Phase struct {
	Name      string  `json:"name"`
	Reinvest  float64 `json:"reinvest"`
	HardAsset float64 `json:"hard_asset"`
	Reserve   float64 `json:"reserve"`
}

// Named allocation phases by system operating age.
var (
	phaseGrowth    = Phase{Name: "Growth Focus", Reinvest: 0.80, HardAsset: 0.15, Reserve: 0.05}
	phaseBalanced  = Phase{Name: "Balanced Growth", Reinvest: 0.70, HardAsset: 0.20, Reserve: 0.10}
	phaseProtector = Phase{Name: "Wealth Protection", Reinvest: 0.60, HardAsset: 0.20, Reserve: 0.20}
)

// largeAccountThreshold shifts allocation toward reserve once the trading
// balance grows beyond it.
const largeAccountThreshold = 50000.0

// rebateThresholdUSD is the minimum absolute loss that qualifies for the
// venue's loss-rebate program.
const rebateThresholdUSD = 10.0

// DeterminePhase maps operating age in days onto an allocation phase.
func DeterminePhase(operatingDays int) Phase {
	switch {
	case operatingDays <= 180:
		return phaseGrowth
	case operatingDays <= 365:
		return phaseBalanced
	default:
		return phaseProtector
	}
}

// Adjust returns the phase with 5 percentage points moved from reinvest to
// reserve for large accounts. Ratios still sum to 1.
func Adjust(p Phase, balance float64) Phase {
	if balance > largeAccountThreshold {
		p.Reinvest -= 0.05
		p.Reserve += 0.05
	}
	return p
}

// RecordKind tags a processed P&L event.
type RecordKind string

const (
	KindProfit RecordKind = "profit"
	KindLoss   RecordKind = "loss"
)

// Record is one processed realized-P&L event. Profit records carry the
// allocation split; loss records carry the untouched protected totals and
// rebate eligibility. Appended to an immutable history used for reporting.
type Record struct {
	Kind            RecordKind `json:"kind"`
	PnL             float64    `json:"pnl"`
	ReinvestAmount  float64    `json:"reinvest_amount"`
	HardAssetAmount float64    `json:"hard_asset_amount"`
	ReserveAmount   float64    `json:"reserve_amount"`
	Phase           string     `json:"phase"`
	NewBalance      float64    `json:"new_balance"`

	// Loss-only fields. Protected totals are never drawn down by a loss.
	RebateEligible     bool    `json:"rebate_eligible,omitempty"`
	ProtectedHardAsset float64 `json:"protected_hard_asset"`
	ProtectedReserve   float64 `json:"protected_reserve"`

	Timestamp time.Time `json:"timestamp"`
}

// Manager routes realized P&L through the phase-based allocation policy and
// tracks cumulative protected wealth. Phase is recomputed on every call so it
// tracks wall-clock time, never cached.
type Manager struct {
	logger    *zap.Logger
	startDate time.Time
	now       func() time.Time

	mu                  sync.Mutex
	cumulativeHardAsset float64
	cumulativeReserve   float64
	history             []Record
}

// NewManager creates a Manager anchored at the system start date.
func NewManager(startDate time.Time, logger *zap.Logger) *Manager {
	return &Manager{
		logger:    logger.Named("profit"),
		startDate: startDate,
		now:       time.Now,
	}
}

// OperatingDays returns whole days elapsed since the system start date.
func (m *Manager) OperatingDays() int {
	return int(m.now().Sub(m.startDate).Hours() / 24)
}

// CurrentPhase returns the balance-adjusted phase for this moment.
func (m *Manager) CurrentPhase(balance float64) Phase {
	return Adjust(DeterminePhase(m.OperatingDays()), balance)
}

// Process splits a realized P&L event by the current phase's ratios. Losses
// produce a loss record: the protected stacks are reported unchanged and the
// event is checked for rebate eligibility.
func (m *Manager) Process(pnl, balance float64) Record {
	phase := m.CurrentPhase(balance)

	m.mu.Lock()
	defer m.mu.Unlock()

	var rec Record
	if pnl <= 0 {
		rec = Record{
			Kind:               KindLoss,
			PnL:                pnl,
			Phase:              phase.Name,
			NewBalance:         balance,
			RebateEligible:     -pnl >= rebateThresholdUSD,
			ProtectedHardAsset: m.cumulativeHardAsset,
			ProtectedReserve:   m.cumulativeReserve,
			Timestamp:          m.now(),
		}
		m.logger.Info("Loss processed",
			zap.Float64("loss", -pnl),
			zap.String("phase", phase.Name),
			zap.Bool("rebate_eligible", rec.RebateEligible),
			zap.Float64("protected_total", rec.ProtectedHardAsset+rec.ProtectedReserve))
	} else {
		m.cumulativeHardAsset += pnl * phase.HardAsset
		m.cumulativeReserve += pnl * phase.Reserve
		rec = Record{
			Kind:               KindProfit,
			PnL:                pnl,
			ReinvestAmount:     pnl * phase.Reinvest,
			HardAssetAmount:    pnl * phase.HardAsset,
			ReserveAmount:      pnl * phase.Reserve,
			Phase:              phase.Name,
			NewBalance:         balance + pnl*phase.Reinvest,
			ProtectedHardAsset: m.cumulativeHardAsset,
			ProtectedReserve:   m.cumulativeReserve,
			Timestamp:          m.now(),
		}
		m.logger.Info("Profit allocated",
			zap.Float64("profit", pnl),
			zap.String("phase", phase.Name),
			zap.Float64("reinvest", rec.ReinvestAmount),
			zap.Float64("hard_asset", rec.HardAssetAmount),
			zap.Float64("reserve", rec.ReserveAmount),
			zap.Float64("new_balance", rec.NewBalance))
	}

	m.history = append(m.history, rec)
	return rec
}

// Totals returns the cumulative protected hard-asset and reserve stacks.
func (m *Manager) Totals() (hardAsset, reserve float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cumulativeHardAsset, m.cumulativeReserve
}

// History returns a snapshot of all processed records.
func (m *Manager) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}

// Summary is the reporting view exposed on the status endpoint.
type Summary struct {
	OperatingDays   int     `json:"operating_days"`
	Phase           string  `json:"phase"`
	EventsProcessed int     `json:"events_processed"`
	HardAssetStack  float64 `json:"hard_asset_stack"`
	ReserveFund     float64 `json:"reserve_fund"`
	TotalProtected  float64 `json:"total_protected"`
}

// Summarize builds the current performance summary for a balance.
func (m *Manager) Summarize(balance float64) Summary {
	phase := m.CurrentPhase(balance)
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summary{
		OperatingDays:   m.OperatingDays(),
		Phase:           phase.Name,
		EventsProcessed: len(m.history),
		HardAssetStack:  m.cumulativeHardAsset,
		ReserveFund:     m.cumulativeReserve,
		TotalProtected:  m.cumulativeHardAsset + m.cumulativeReserve,
	}
}
