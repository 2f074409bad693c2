// internal/trading/orchestrator_test.go
package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dkovalev/perps-bot/internal/profit"
)

type mockVenue struct {
	mu         sync.Mutex
	balance    float64
	balanceErr error
	openErr    error
	closeErr   error
	closeRes   CloseResult

	openCalls  int
	closeCalls int

	// When set, OpenPosition blocks until the channel is closed.
	openGate chan struct{}
}

func (m *mockVenue) Balance(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance, m.balanceErr
}

func (m *mockVenue) OpenPosition(_ context.Context, spec PositionSpec) (OpenReceipt, error) {
	m.mu.Lock()
	gate := m.openGate
	m.openCalls++
	err := m.openErr
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return OpenReceipt{}, err
	}
	return OpenReceipt{
		TxRef:      fmt.Sprintf("sim-%s", spec.Symbol),
		EntryPrice: spec.EntryPrice,
		Mode:       VenueSimulated,
	}, nil
}

func (m *mockVenue) ClosePosition(_ context.Context, _ *Position, kind CloseKind) (CloseResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	if m.closeErr != nil {
		return CloseResult{}, m.closeErr
	}
	res := m.closeRes
	if res.CloseKind == "" {
		res.CloseKind = kind
	}
	return res, nil
}

func newTestOrchestrator(t *testing.T, venue VenueClient, maxOpen int) *Orchestrator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	// 100 days of operation puts the profit engine in the growth phase.
	profits := profit.NewManager(time.Now().AddDate(0, 0, -100), logger)
	return NewOrchestrator(venue, profits, nil, nil, maxOpen, logger)
}

func testSignal() Signal {
	return Signal{
		Symbol:     "BTCUSD",
		Direction:  DirectionLong,
		Tier:       1,
		Regime:     "bull",
		EntryPrice: 50000,
		ReceivedAt: time.Now(),
	}
}

func TestHandleOpenSuccess(t *testing.T) {
	venue := &mockVenue{balance: 1000}
	o := newTestOrchestrator(t, venue, 4)

	res := o.HandleOpen(context.Background(), testSignal())

	require.Equal(t, OutcomeSuccess, res.Status)
	assert.InDelta(t, 275.0, res.Collateral, 1e-9)
	assert.Equal(t, 5, res.Leverage)
	assert.InDelta(t, 1375.0, res.PositionSizeUSD, 1e-9)
	assert.NotEmpty(t, res.PositionID)
	assert.Equal(t, "sim-BTCUSD", res.TxRef)
	assert.Equal(t, string(VenueSimulated), res.VenueMode)

	pos, ok := o.Registry().Open("BTCUSD")
	require.True(t, ok)
	assert.Equal(t, res.PositionID, pos.ID)
	assert.Equal(t, 0, o.guard.InFlight(), "guard must be released after success")
}

func TestHandleOpenInvalidSignal(t *testing.T) {
	o := newTestOrchestrator(t, &mockVenue{balance: 1000}, 4)

	res := o.HandleOpen(context.Background(), Signal{Symbol: "BTCUSD", Direction: "SIDEWAYS"})
	assert.Equal(t, OutcomeError, res.Status)
	assert.Contains(t, res.Reason, "direction")
}

func TestHandleOpenDuplicateInFlight(t *testing.T) {
	gate := make(chan struct{})
	venue := &mockVenue{balance: 1000, openGate: gate}
	o := newTestOrchestrator(t, venue, 4)

	first := make(chan Result, 1)
	go func() { first <- o.HandleOpen(context.Background(), testSignal()) }()

	// Wait until the first request is inside the venue call.
	require.Eventually(t, func() bool {
		venue.mu.Lock()
		defer venue.mu.Unlock()
		return venue.openCalls == 1
	}, time.Second, time.Millisecond)

	dup := o.HandleOpen(context.Background(), testSignal())
	assert.Equal(t, OutcomeSkipped, dup.Status)
	assert.Equal(t, ReasonDuplicateInFlight, dup.Reason)

	close(gate)
	res := <-first
	assert.Equal(t, OutcomeSuccess, res.Status)
	assert.Equal(t, 1, venue.openCalls, "losing request must not reach the venue")
}

func TestHandleOpenAlreadyOpen(t *testing.T) {
	venue := &mockVenue{balance: 1000}
	o := newTestOrchestrator(t, venue, 4)

	require.Equal(t, OutcomeSuccess, o.HandleOpen(context.Background(), testSignal()).Status)

	res := o.HandleOpen(context.Background(), testSignal())
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, ReasonAlreadyOpen, res.Reason)
	assert.Equal(t, 1, venue.openCalls)
}

func TestHandleOpenMaxPositionsCap(t *testing.T) {
	venue := &mockVenue{balance: 100000}
	o := newTestOrchestrator(t, venue, 2)

	for _, sym := range []string{"BTCUSD", "ETHUSDT"} {
		sig := testSignal()
		sig.Symbol = sym
		require.Equal(t, OutcomeSuccess, o.HandleOpen(context.Background(), sig).Status)
	}

	sig := testSignal()
	sig.Symbol = "SOLUSDT"
	res := o.HandleOpen(context.Background(), sig)
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, ReasonMaxOpenPositions, res.Reason)
}

func TestHandleOpenCollateralBelowFloor(t *testing.T) {
	venue := &mockVenue{balance: 30}
	o := newTestOrchestrator(t, venue, 4)

	sig := testSignal()
	sig.Regime = "neutral" // 30 * 0.25 = 7.50 < 10
	res := o.HandleOpen(context.Background(), sig)
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, ReasonCollateralBelowFloor, res.Reason)
	assert.Equal(t, 0, venue.openCalls)
}

func TestHandleOpenVenueFailure(t *testing.T) {
	venue := &mockVenue{balance: 1000, openErr: errors.New("gateway timeout")}
	o := newTestOrchestrator(t, venue, 4)

	res := o.HandleOpen(context.Background(), testSignal())
	assert.Equal(t, OutcomeError, res.Status)
	assert.Contains(t, res.Reason, "gateway timeout")
	assert.Equal(t, 0, o.Registry().OpenCount(), "failed open must not register a position")
	assert.Equal(t, 0, o.guard.InFlight(), "guard must be released on error")
}

func TestHandleOpenBalanceFailure(t *testing.T) {
	venue := &mockVenue{balanceErr: errors.New("venue unreachable")}
	o := newTestOrchestrator(t, venue, 4)

	res := o.HandleOpen(context.Background(), testSignal())
	assert.Equal(t, OutcomeError, res.Status)
	assert.Contains(t, res.Reason, "venue unreachable")
}

func TestHandleCloseSuccess(t *testing.T) {
	venue := &mockVenue{
		balance: 2000,
		closeRes: CloseResult{
			ExitPrice:     51000,
			PnL:           100,
			PnLPercentage: 36.4,
			CloseKind:     CloseTP1,
		},
	}
	o := newTestOrchestrator(t, venue, 4)
	require.Equal(t, OutcomeSuccess, o.HandleOpen(context.Background(), testSignal()).Status)

	res := o.HandleClose(context.Background(), "BTCUSD", "TP1")
	require.Equal(t, OutcomeSuccess, res.Status)
	assert.Equal(t, 100.0, res.PnL)
	assert.Equal(t, 51000.0, res.ExitPrice)
	assert.Equal(t, "TP1", res.CloseKind)
	// Growth phase: 80% of 100 reinvested on top of the 2000 balance.
	assert.InDelta(t, 2080.0, res.NewBalance, 1e-9)

	assert.Equal(t, 0, o.Registry().OpenCount())
	require.Len(t, o.Registry().ClosedPositions(), 1)
	assert.Equal(t, 0, o.guard.InFlight())
}

func TestHandleCloseNoOpenPosition(t *testing.T) {
	venue := &mockVenue{balance: 1000}
	o := newTestOrchestrator(t, venue, 4)

	res := o.HandleClose(context.Background(), "BTCUSD", "manual")
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, ReasonNoOpenPosition, res.Reason)
	assert.Equal(t, 0, venue.closeCalls)
}

func TestHandleCloseDoubleCloseSkipped(t *testing.T) {
	venue := &mockVenue{
		balance:  1000,
		closeRes: CloseResult{ExitPrice: 49000, PnL: -27.5, CloseKind: CloseSL},
	}
	o := newTestOrchestrator(t, venue, 4)
	require.Equal(t, OutcomeSuccess, o.HandleOpen(context.Background(), testSignal()).Status)
	require.Equal(t, OutcomeSuccess, o.HandleClose(context.Background(), "BTCUSD", "SL").Status)

	res := o.HandleClose(context.Background(), "BTCUSD", "SL")
	assert.Equal(t, OutcomeSkipped, res.Status)
	assert.Equal(t, ReasonNoOpenPosition, res.Reason)
	assert.Equal(t, 1, venue.closeCalls)
}

func TestHandleCloseVenueFailureKeepsPosition(t *testing.T) {
	venue := &mockVenue{balance: 1000, closeErr: errors.New("fill rejected")}
	o := newTestOrchestrator(t, venue, 4)
	require.Equal(t, OutcomeSuccess, o.HandleOpen(context.Background(), testSignal()).Status)

	res := o.HandleClose(context.Background(), "BTCUSD", "TP2")
	assert.Equal(t, OutcomeError, res.Status)
	assert.Equal(t, 1, o.Registry().OpenCount(), "position stays open when the venue close fails")
}
