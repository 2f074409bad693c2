// internal/venue/venue.go
// Package venue provides execution adapters for perpetual futures venues:
// a live HTTP gateway client, a deterministic simulator, and a fallback
// wrapper that degrades from live to simulated execution.
package venue

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/trading"
)

// Execution modes selectable in configuration.
const (
	ModeLive         = "live"
	ModeSimulated    = "simulated"
	ModeLiveFallback = "live-fallback"
)

// Options carries everything any adapter flavor might need. Unused fields
// are ignored by the selected mode.
type Options struct {
	// Live gateway settings.
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int

	// Simulator settings.
	InitialBalance float64
	Seed           int64
}

// New builds the venue client for the configured mode.
func New(mode string, opts Options, logger *zap.Logger) (trading.VenueClient, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeSimulated:
		return NewSimulated(opts.InitialBalance, opts.Seed, logger), nil
	case ModeLive:
		return NewLive(opts, logger)
	case ModeLiveFallback:
		live, err := NewLive(opts, logger)
		if err != nil {
			return nil, err
		}
		return NewFallback(live, NewSimulated(opts.InitialBalance, opts.Seed, logger), logger), nil
	default:
		return nil, fmt.Errorf("unknown venue mode: %q", mode)
	}
}
