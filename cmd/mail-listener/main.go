package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"quoteintake/internal/app"
	"quoteintake/internal/config"
	"quoteintake/internal/listener"
	"quoteintake/internal/logging"
)

func main() {
	cfg, err := config.Load()
	must(err)

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
	a, err := app.New(cfg, logger)
	must(err)
	defer a.Close()

	svc := listener.NewService(a.DB, cfg, a.Processor(), logger)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("listener.start", "provider", cfg.MailListenerProvider, "interval_sec", cfg.MailListenerIntervalSec)
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
