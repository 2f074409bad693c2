// internal/venue/fallback_test.go
package venue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dkovalev/perps-bot/internal/trading"
)

type stubVenue struct {
	balance    float64
	err        error
	mode       trading.VenueMode
	openCalls  int
	closeCalls int
}

func (s *stubVenue) Balance(context.Context) (float64, error) {
	return s.balance, s.err
}

func (s *stubVenue) OpenPosition(_ context.Context, spec trading.PositionSpec) (trading.OpenReceipt, error) {
	s.openCalls++
	if s.err != nil {
		return trading.OpenReceipt{}, s.err
	}
	return trading.OpenReceipt{TxRef: "stub", EntryPrice: spec.EntryPrice, Mode: s.mode}, nil
}

func (s *stubVenue) ClosePosition(_ context.Context, _ *trading.Position, kind trading.CloseKind) (trading.CloseResult, error) {
	s.closeCalls++
	if s.err != nil {
		return trading.CloseResult{}, s.err
	}
	return trading.CloseResult{CloseKind: kind}, nil
}

func TestFallbackPrefersPrimary(t *testing.T) {
	primary := &stubVenue{balance: 500, mode: trading.VenueLive}
	secondary := &stubVenue{balance: 1000, mode: trading.VenueSimulated}
	f := NewFallback(primary, secondary, zaptest.NewLogger(t))

	balance, err := f.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 500.0, balance)

	receipt, err := f.OpenPosition(context.Background(), trading.PositionSpec{Symbol: "BTCUSD"})
	require.NoError(t, err)
	assert.Equal(t, trading.VenueLive, receipt.Mode)
	assert.Equal(t, 0, secondary.openCalls)
}

func TestFallbackDegradesOnPrimaryFailure(t *testing.T) {
	primary := &stubVenue{err: errors.New("gateway down"), mode: trading.VenueLive}
	secondary := &stubVenue{balance: 1000, mode: trading.VenueSimulated}
	f := NewFallback(primary, secondary, zaptest.NewLogger(t))

	balance, err := f.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, balance)

	receipt, err := f.OpenPosition(context.Background(), trading.PositionSpec{Symbol: "BTCUSD"})
	require.NoError(t, err)
	assert.Equal(t, trading.VenueSimulated, receipt.Mode, "fallback fills report the simulated mode")
	assert.Equal(t, 1, primary.openCalls)
	assert.Equal(t, 1, secondary.openCalls)
}

func TestFallbackClosesSimulatedPositionsOnSecondary(t *testing.T) {
	primary := &stubVenue{mode: trading.VenueLive}
	secondary := &stubVenue{mode: trading.VenueSimulated}
	f := NewFallback(primary, secondary, zaptest.NewLogger(t))

	pos := &trading.Position{Symbol: "BTCUSD", VenueMode: trading.VenueSimulated}
	_, err := f.ClosePosition(context.Background(), pos, trading.CloseManual)
	require.NoError(t, err)
	assert.Equal(t, 0, primary.closeCalls, "simulated positions never hit the live venue")
	assert.Equal(t, 1, secondary.closeCalls)
}

func TestFactoryModes(t *testing.T) {
	logger := zaptest.NewLogger(t)

	sim, err := New("simulated", Options{InitialBalance: 1000}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, sim)

	live, err := New("LIVE", Options{GatewayURL: "http://localhost:9999"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Live{}, live)

	fb, err := New("live-fallback", Options{GatewayURL: "http://localhost:9999", InitialBalance: 1000}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Fallback{}, fb)

	_, err = New("paper", Options{}, logger)
	assert.Error(t, err)
}
