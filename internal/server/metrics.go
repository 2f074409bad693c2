// internal/server/metrics.go
package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// Webhook and trade flow metrics, served at /metrics in the Prometheus text
// exposition format.
var (
	mtxRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_webhook_requests_total",
			Help: "Webhook requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	mtxOpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_open_positions",
			Help: "Currently open positions",
		},
	)

	mtxPnL = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_realized_profit_usd_total",
			Help: "Cumulative realized profit in USD (profitable closes only)",
		},
	)

	mtxExitReasons = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exit_reasons_total",
			Help: "Position exits split by close kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(mtxRequests, mtxOpenPositions, mtxPnL, mtxExitReasons)
}

func observeResult(action string, res trading.Result) {
	mtxRequests.WithLabelValues(action, string(res.Status)).Inc()
	if res.Status != trading.OutcomeSuccess {
		return
	}
	if action == "close" {
		mtxExitReasons.WithLabelValues(res.CloseKind).Inc()
		if res.PnL > 0 {
			mtxPnL.Add(res.PnL)
		}
	}
}

// Instrument wraps a trade pipeline so every signal source, webhook and
// inbox alike, feeds the same metrics.
func Instrument(next Handler) Handler {
	return &instrumentedHandler{next: next}
}

type instrumentedHandler struct {
	next Handler
}

func (h *instrumentedHandler) HandleOpen(ctx context.Context, sig trading.Signal) trading.Result {
	res := h.next.HandleOpen(ctx, sig)
	observeResult("open", res)
	mtxOpenPositions.Set(float64(h.next.Registry().OpenCount()))
	return res
}

func (h *instrumentedHandler) HandleClose(ctx context.Context, symbol, reason string) trading.Result {
	res := h.next.HandleClose(ctx, symbol, reason)
	observeResult("close", res)
	mtxOpenPositions.Set(float64(h.next.Registry().OpenCount()))
	return res
}

func (h *instrumentedHandler) Registry() *trading.Registry {
	return h.next.Registry()
}
