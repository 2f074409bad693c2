// internal/server/metrics_test.go
package server

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// The counters are package globals, so assertions work on deltas rather
// than absolute values.
func TestInstrumentTracksPipeline(t *testing.T) {
	h := &stubHandler{
		registry: trading.NewRegistry(),
		openRes: trading.Result{
			Status: trading.OutcomeSuccess,
			Symbol: "BTCUSD",
		},
		closeRes: trading.Result{
			Status:    trading.OutcomeSuccess,
			Symbol:    "BTCUSD",
			PnL:       27.5,
			CloseKind: string(trading.CloseTP1),
		},
	}
	pipeline := Instrument(h)

	openBefore := testutil.ToFloat64(mtxRequests.WithLabelValues("open", "success"))
	closeBefore := testutil.ToFloat64(mtxRequests.WithLabelValues("close", "success"))
	tp1Before := testutil.ToFloat64(mtxExitReasons.WithLabelValues("TP1"))
	pnlBefore := testutil.ToFloat64(mtxPnL)

	h.registry.Add(&trading.Position{ID: "pos-1", Symbol: "BTCUSD", Status: trading.StatusOpen})

	res := pipeline.HandleOpen(context.Background(), trading.Signal{Symbol: "BTCUSD"})
	assert.Equal(t, trading.OutcomeSuccess, res.Status)
	assert.Equal(t, openBefore+1, testutil.ToFloat64(mtxRequests.WithLabelValues("open", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mtxOpenPositions), "gauge tracks registry after open")

	h.registry.Close("BTCUSD", trading.CloseResult{CloseKind: trading.CloseTP1, PnL: 27.5}, time.Now())
	res = pipeline.HandleClose(context.Background(), "BTCUSD", "TP1")
	assert.Equal(t, trading.OutcomeSuccess, res.Status)
	assert.Equal(t, closeBefore+1, testutil.ToFloat64(mtxRequests.WithLabelValues("close", "success")))
	assert.Equal(t, tp1Before+1, testutil.ToFloat64(mtxExitReasons.WithLabelValues("TP1")))
	assert.Equal(t, pnlBefore+27.5, testutil.ToFloat64(mtxPnL))
	assert.Equal(t, 0.0, testutil.ToFloat64(mtxOpenPositions), "gauge tracks registry after close")
}

func TestInstrumentIgnoresLossForPnLCounter(t *testing.T) {
	h := &stubHandler{
		registry: trading.NewRegistry(),
		closeRes: trading.Result{
			Status:    trading.OutcomeSuccess,
			Symbol:    "ETHUSD",
			PnL:       -12.0,
			CloseKind: string(trading.CloseSL),
		},
	}
	pipeline := Instrument(h)

	pnlBefore := testutil.ToFloat64(mtxPnL)
	slBefore := testutil.ToFloat64(mtxExitReasons.WithLabelValues("SL"))

	pipeline.HandleClose(context.Background(), "ETHUSD", "SL")
	assert.Equal(t, pnlBefore, testutil.ToFloat64(mtxPnL), "losses never decrement realized profit")
	assert.Equal(t, slBefore+1, testutil.ToFloat64(mtxExitReasons.WithLabelValues("SL")))
}
