// internal/venue/live.go
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/trading"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
)

// Live talks to an execution gateway over HTTP. Transient failures (network
// errors, 5xx) are retried with exponential backoff; 4xx responses are
// permanent and surface immediately.
type Live struct {
	logger     *zap.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint
}

// NewLive validates the gateway settings and builds the client.
func NewLive(opts Options, logger *zap.Logger) (*Live, error) {
	if opts.GatewayURL == "" {
		return nil, fmt.Errorf("live venue requires a gateway URL")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Live{
		logger:     logger.Named("venue.live"),
		baseURL:    opts.GatewayURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: uint(retries),
	}, nil
}

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

type openRequest struct {
	Symbol     string  `json:"symbol"`
	Direction  string  `json:"direction"`
	Collateral float64 `json:"collateral"`
	Leverage   int     `json:"leverage"`
	SizeUSD    float64 `json:"size_usd"`
	EntryPrice float64 `json:"entry_price"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TP1        float64 `json:"tp1,omitempty"`
	TP2        float64 `json:"tp2,omitempty"`
	TP3        float64 `json:"tp3,omitempty"`
}

type openResponse struct {
	TxRef      string  `json:"tx_ref"`
	EntryPrice float64 `json:"entry_price"`
}

type closeRequest struct {
	TxRef  string `json:"tx_ref"`
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
}

type closeResponse struct {
	ExitPrice     float64 `json:"exit_price"`
	PnL           float64 `json:"pnl"`
	PnLPercentage float64 `json:"pnl_percentage"`
}

// Balance queries the gateway for the free collateral balance.
func (l *Live) Balance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := l.call(ctx, http.MethodGet, "/api/v1/account/balance", nil, &resp); err != nil {
		return 0, fmt.Errorf("balance query: %w", err)
	}
	return resp.Balance, nil
}

// OpenPosition submits the order and waits for the gateway acknowledgment.
func (l *Live) OpenPosition(ctx context.Context, spec trading.PositionSpec) (trading.OpenReceipt, error) {
	req := openRequest{
		Symbol:     spec.Symbol,
		Direction:  string(spec.Direction),
		Collateral: spec.CollateralAmount,
		Leverage:   spec.Leverage,
		SizeUSD:    spec.PositionSizeUSD,
		EntryPrice: spec.EntryPrice,
		StopLoss:   spec.StopLoss,
		TP1:        spec.TakeProfit1,
		TP2:        spec.TakeProfit2,
		TP3:        spec.TakeProfit3,
	}
	var resp openResponse
	if err := l.call(ctx, http.MethodPost, "/api/v1/positions/open", req, &resp); err != nil {
		return trading.OpenReceipt{}, fmt.Errorf("open position: %w", err)
	}
	return trading.OpenReceipt{
		TxRef:      resp.TxRef,
		EntryPrice: resp.EntryPrice,
		Mode:       trading.VenueLive,
	}, nil
}

// ClosePosition asks the gateway to flatten the position.
func (l *Live) ClosePosition(ctx context.Context, pos *trading.Position, kind trading.CloseKind) (trading.CloseResult, error) {
	req := closeRequest{TxRef: pos.TxRef, Symbol: pos.Symbol, Kind: string(kind)}
	var resp closeResponse
	if err := l.call(ctx, http.MethodPost, "/api/v1/positions/close", req, &resp); err != nil {
		return trading.CloseResult{}, fmt.Errorf("close position: %w", err)
	}
	return trading.CloseResult{
		ExitPrice:     resp.ExitPrice,
		PnL:           resp.PnL,
		PnLPercentage: resp.PnLPercentage,
		CloseKind:     kind,
	}, nil
}

// call performs one gateway request with retries and decodes the JSON body
// into out.
func (l *Live) call(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	operation := func() ([]byte, error) {
		return l.doOnce(ctx, method, path, payload)
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("Gateway request retry",
			zap.String("path", path),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(l.maxRetries),
		backoff.WithNotify(notify))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (l *Live) doOnce(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if l.apiKey != "" {
		req.Header.Set("X-API-Key", l.apiKey)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("gateway rejected request (%d): %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}
	return raw, nil
}
