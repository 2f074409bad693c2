// internal/server/server.go
// Package server exposes the HTTP surface: the signal webhook, a status
// report, health and Prometheus metrics.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/profit"
	"github.com/dkovalev/perps-bot/internal/trading"
)

const secretHeader = "X-Webhook-Secret"

// Handler is the downstream trade pipeline.
type Handler interface {
	HandleOpen(ctx context.Context, sig trading.Signal) trading.Result
	HandleClose(ctx context.Context, symbol, reason string) trading.Result
	Registry() *trading.Registry
}

// Server terminates webhook requests and reports system state.
type Server struct {
	logger  *zap.Logger
	handler Handler
	profits *profit.Manager
	venue   trading.VenueClient
	secret  string
	httpSrv *http.Server
}

// New wires the HTTP surface.
func New(addr, secret string, handler Handler, profits *profit.Manager, venue trading.VenueClient, logger *zap.Logger) *Server {
	s := &Server{
		logger:  logger.Named("server"),
		handler: handler,
		profits: profits,
		venue:   venue,
		secret:  secret,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpSrv.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

type webhookRequest struct {
	Action     string  `json:"action"`
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Tier       int     `json:"tier"`
	Regime     string  `json:"regime"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss"`
	TP1        float64 `json:"tp1"`
	TP2        float64 `json:"tp2"`
	TP3        float64 `json:"tp3"`
	Reason     string  `json:"reason"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(secretHeader)), []byte(s.secret)) != 1 {
		s.logger.Warn("Webhook auth failed", zap.String("remote", r.RemoteAddr))
		writeJSON(w, http.StatusUnauthorized, trading.Result{
			Status: trading.OutcomeError,
			Reason: "invalid webhook secret",
		})
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, trading.Result{
			Status: trading.OutcomeError,
			Reason: "malformed request body",
		})
		return
	}

	res, err := s.dispatch(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, trading.Result{
			Status: trading.OutcomeError,
			Reason: err.Error(),
		})
		return
	}

	status := http.StatusOK
	if res.Status == trading.OutcomeError {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// dispatch validates the request shape and routes it. A returned error means
// the request itself was invalid, not that the trade failed.
func (s *Server) dispatch(ctx context.Context, req webhookRequest) (trading.Result, error) {
	if req.Symbol == "" {
		return trading.Result{}, errors.New("missing symbol")
	}

	switch req.Action {
	case "open":
		direction, err := trading.ParseDirection(req.Direction)
		if err != nil {
			return trading.Result{}, err
		}
		sig := trading.Signal{
			Symbol:     req.Symbol,
			Direction:  direction,
			Tier:       req.Tier,
			Regime:     req.Regime,
			EntryPrice: req.EntryPrice,
			StopLoss:   req.StopLoss,
			TP1:        req.TP1,
			TP2:        req.TP2,
			TP3:        req.TP3,
			ReceivedAt: time.Now(),
		}
		if err := sig.Validate(); err != nil {
			return trading.Result{}, err
		}
		return s.handler.HandleOpen(ctx, sig), nil
	case "close":
		return s.handler.HandleClose(ctx, req.Symbol, req.Reason), nil
	default:
		return trading.Result{}, errors.New("unknown action: must be open or close")
	}
}

// Feature set reported on /status so upstream signal sources can verify
// what this deployment supports.
var features = []string{
	"tier_sizing",
	"regime_adjustment",
	"tp_ladder",
	"phase_profit_allocation",
	"loss_rebate_tracking",
	"simulated_fallback",
}

type statusResponse struct {
	Balance         float64            `json:"balance"`
	OpenPositions   []trading.Position `json:"open_positions"`
	ClosedPositions int                `json:"closed_positions"`
	Performance     profit.Summary     `json:"performance"`
	Features        []string           `json:"features"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	balance, err := s.venue.Balance(r.Context())
	if err != nil {
		s.logger.Warn("Balance query failed for status", zap.Error(err))
	}

	reg := s.handler.Registry()
	writeJSON(w, http.StatusOK, statusResponse{
		Balance:         balance,
		OpenPositions:   reg.OpenPositions(),
		ClosedPositions: len(reg.ClosedPositions()),
		Performance:     s.profits.Summarize(balance),
		Features:        features,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
