// internal/ledger/ledger.go
// Package ledger persists the trade audit trail as an append-only CSV file.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/profit"
	"github.com/dkovalev/perps-bot/internal/trading"
)

var csvHeader = []string{
	"timestamp", "event", "position_id", "symbol", "direction",
	"collateral", "leverage", "size_usd", "entry_price",
	"exit_price", "pnl", "close_kind", "phase", "reinvest",
	"hard_asset", "reserve", "new_balance", "venue_mode", "tx_ref",
}

// CSVLedger appends one row per lifecycle event. Rows are never rewritten;
// the file is the audit history.
type CSVLedger struct {
	logger *zap.Logger
	path   string

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// Open creates or appends to the ledger file, writing the header on first
// creation.
func Open(path string, logger *zap.Logger) (*CSVLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger file: %w", err)
	}

	l := &CSVLedger{
		logger: logger.Named("ledger"),
		path:   path,
		file:   f,
		writer: csv.NewWriter(f),
	}

	if fresh {
		if err := l.writeRow(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

// RecordOpen appends the open event for a position.
func (l *CSVLedger) RecordOpen(pos *trading.Position) error {
	spec := pos.Spec
	return l.writeRow([]string{
		pos.OpenedAt.UTC().Format(time.RFC3339),
		"open",
		pos.ID,
		pos.Symbol,
		string(spec.Direction),
		formatFloat(spec.CollateralAmount),
		strconv.Itoa(spec.Leverage),
		formatFloat(spec.PositionSizeUSD),
		formatFloat(spec.EntryPrice),
		"", "", "", "", "", "", "", "",
		string(pos.VenueMode),
		pos.TxRef,
	})
}

// RecordClose appends the close event with its profit allocation.
func (l *CSVLedger) RecordClose(pos *trading.Position, rec profit.Record) error {
	spec := pos.Spec
	closedAt := time.Now()
	if pos.ClosedAt != nil {
		closedAt = *pos.ClosedAt
	}
	return l.writeRow([]string{
		closedAt.UTC().Format(time.RFC3339),
		"close",
		pos.ID,
		pos.Symbol,
		string(spec.Direction),
		formatFloat(spec.CollateralAmount),
		strconv.Itoa(spec.Leverage),
		formatFloat(spec.PositionSizeUSD),
		formatFloat(spec.EntryPrice),
		formatFloat(pos.ExitPrice),
		formatFloat(pos.PnL),
		string(pos.CloseKind),
		rec.Phase,
		formatFloat(rec.ReinvestAmount),
		formatFloat(rec.HardAssetAmount),
		formatFloat(rec.ReserveAmount),
		formatFloat(rec.NewBalance),
		string(pos.VenueMode),
		pos.TxRef,
	})
}

func (l *CSVLedger) writeRow(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *CSVLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.Flush()
	return l.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
