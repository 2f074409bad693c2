// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dkovalev/perps-bot/internal/bot"
	"github.com/dkovalev/perps-bot/internal/config"
	"github.com/dkovalev/perps-bot/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{Development: cfg.DebugLogging})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log.Info("Starting perps bot", zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := bot.NewRunner(cfg, log.WithComponent("bot"))
	if err := runner.Run(ctx); err != nil {
		log.LogError("Bot execution error", err)
		runner.Shutdown()
		os.Exit(1)
	}
	runner.Shutdown()
}
