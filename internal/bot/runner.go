// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dkovalev/perps-bot/internal/config"
	"github.com/dkovalev/perps-bot/internal/inbox"
	"github.com/dkovalev/perps-bot/internal/ledger"
	"github.com/dkovalev/perps-bot/internal/notify"
	"github.com/dkovalev/perps-bot/internal/profit"
	"github.com/dkovalev/perps-bot/internal/server"
	"github.com/dkovalev/perps-bot/internal/trading"
	"github.com/dkovalev/perps-bot/internal/venue"
)

// Runner owns process wiring and lifecycle: venue, profit engine, the trade
// orchestrator, HTTP surface and the optional signal inbox.
type Runner struct {
	logger     *zap.Logger
	cfg        *config.Config
	shutdownCh chan os.Signal
}

// NewRunner takes a validated config and the process logger.
func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger,
		cfg:        cfg,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Run wires the system and serves until a shutdown signal or fatal error.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("📡 Signal received: " + sig.String())
		cancel()
	}()

	venueClient, err := venue.New(r.cfg.VenueMode, venue.Options{
		GatewayURL:     r.cfg.GatewayURL,
		APIKey:         r.cfg.GatewayAPIKey,
		Timeout:        r.cfg.GatewayTimeout(),
		MaxRetries:     r.cfg.GatewayRetries,
		InitialBalance: r.cfg.InitialBalance,
		Seed:           r.cfg.SimSeed,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build venue client: %w", err)
	}
	r.logger.Info("🏦 Venue client ready", zap.String("mode", r.cfg.VenueMode))

	profits := profit.NewManager(r.cfg.StartTime(), r.logger)

	var notifier trading.Notifier = notify.NewNoop()
	if r.cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(r.cfg.TelegramToken, r.cfg.TelegramChatID, r.logger)
		if err != nil {
			r.logger.Warn("Telegram notifier unavailable, continuing without it", zap.Error(err))
		} else {
			notifier = tg
			r.logger.Info("📣 Telegram notifications enabled")
		}
	}

	tradeLedger, err := ledger.Open(r.cfg.LedgerPath, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open trade ledger: %w", err)
	}
	defer tradeLedger.Close()

	orch := trading.NewOrchestrator(
		venueClient,
		profits,
		notifier,
		tradeLedger,
		r.cfg.MaxOpenPositions,
		r.logger,
	)

	// Both signal sources run through the instrumented pipeline so metrics
	// stay accurate regardless of where a trade originated.
	pipeline := server.Instrument(orch)

	srv := server.New(
		r.cfg.WebhookAddr,
		r.cfg.WebhookSecret,
		pipeline,
		profits,
		venueClient,
		r.logger,
	)

	g, gctx := errgroup.WithContext(shutdownCtx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if r.cfg.InboxPath != "" {
		poller := inbox.NewPoller(r.cfg.InboxPath, r.cfg.InboxPollInterval(), pipeline, r.logger)
		g.Go(func() error {
			return poller.Run(gctx)
		})
	}
	r.logger.Info("🚀 Bot running", zap.String("addr", r.cfg.WebhookAddr))

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		r.logger.Info("✅ Shutdown complete")
		return nil
	}
	return err
}

// Shutdown flushes logs at exit.
func (r *Runner) Shutdown() {
	r.logger.Info("👋 Bot shutting down gracefully")

	if err := r.logger.Sync(); err != nil {
		if !os.IsNotExist(err) &&
			err.Error() != "sync /dev/stdout: invalid argument" &&
			err.Error() != "sync /dev/stderr: inappropriate ioctl for device" {
			fmt.Fprintf(os.Stderr, "failed to sync logger during shutdown: %v\n", err)
		}
	}
}
