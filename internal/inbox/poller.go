// internal/inbox/poller.go
// Package inbox tails a CSV drop file of trade instructions, feeding rows
// into the same pipeline the webhook uses. Operators append rows; the poller
// picks up anything new on each tick.
package inbox

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// Handler is the downstream trade pipeline.
type Handler interface {
	HandleOpen(ctx context.Context, sig trading.Signal) trading.Result
	HandleClose(ctx context.Context, symbol, reason string) trading.Result
}

// Expected columns:
//
//	action,symbol,direction,tier,regime,entry_price,stop_loss,reason
//
// Open rows fill the signal columns; close rows need only symbol and reason.
const expectedColumns = 8

// Poller re-reads the drop file on an interval and dispatches rows that were
// appended since the last pass. Row position is the cursor, so the file must
// only ever grow.
type Poller struct {
	logger   *zap.Logger
	path     string
	interval time.Duration
	handler  Handler

	consumed int
}

// NewPoller creates a poller for the given drop file.
func NewPoller(path string, interval time.Duration, handler Handler, logger *zap.Logger) *Poller {
	return &Poller{
		logger:   logger.Named("inbox"),
		path:     path,
		interval: interval,
		handler:  handler,
	}
}

// Run polls until the context is canceled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Signal inbox started",
		zap.String("path", p.path),
		zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				p.logger.Warn("Inbox poll failed", zap.Error(err))
			}
		}
	}
}

// Poll processes any rows appended since the previous call. A missing file
// is not an error; the drop file may not exist yet.
func (p *Poller) Poll(ctx context.Context) error {
	f, err := os.Open(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open inbox: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read inbox row: %w", err)
		}
		row++
		if row <= p.consumed {
			continue
		}
		p.consumed = row

		if isHeader(record) {
			continue
		}
		p.dispatch(ctx, record)
	}
}

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "action")
}

func (p *Poller) dispatch(ctx context.Context, record []string) {
	if len(record) < expectedColumns {
		p.logger.Warn("Malformed inbox row skipped", zap.Strings("row", record))
		return
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	action := strings.ToLower(record[0])
	symbol := record[1]

	switch action {
	case "open":
		sig, err := parseSignal(record)
		if err != nil {
			p.logger.Warn("Invalid inbox signal skipped",
				zap.String("symbol", symbol),
				zap.Error(err))
			return
		}
		res := p.handler.HandleOpen(ctx, sig)
		p.logResult("open", symbol, res)
	case "close":
		res := p.handler.HandleClose(ctx, symbol, record[7])
		p.logResult("close", symbol, res)
	default:
		p.logger.Warn("Unknown inbox action skipped",
			zap.String("action", action),
			zap.String("symbol", symbol))
	}
}

func parseSignal(record []string) (trading.Signal, error) {
	direction, err := trading.ParseDirection(record[2])
	if err != nil {
		return trading.Signal{}, err
	}

	tier, err := strconv.Atoi(record[3])
	if err != nil {
		return trading.Signal{}, fmt.Errorf("invalid tier %q", record[3])
	}

	entryPrice, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return trading.Signal{}, fmt.Errorf("invalid entry_price %q", record[5])
	}

	stopLoss := 0.0
	if record[6] != "" {
		stopLoss, err = strconv.ParseFloat(record[6], 64)
		if err != nil {
			return trading.Signal{}, fmt.Errorf("invalid stop_loss %q", record[6])
		}
	}

	return trading.Signal{
		Symbol:     record[1],
		Direction:  direction,
		Tier:       tier,
		Regime:     record[4],
		EntryPrice: entryPrice,
		StopLoss:   stopLoss,
		ReceivedAt: time.Now(),
	}, nil
}

func (p *Poller) logResult(action, symbol string, res trading.Result) {
	switch res.Status {
	case trading.OutcomeSuccess:
		p.logger.Info("Inbox instruction executed",
			zap.String("action", action),
			zap.String("symbol", symbol))
	case trading.OutcomeSkipped:
		p.logger.Info("Inbox instruction skipped",
			zap.String("action", action),
			zap.String("symbol", symbol),
			zap.String("reason", res.Reason))
	default:
		p.logger.Error("Inbox instruction failed",
			zap.String("action", action),
			zap.String("symbol", symbol),
			zap.String("reason", res.Reason))
	}
}
