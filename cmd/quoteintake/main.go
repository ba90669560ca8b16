package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"quoteintake/internal/app"
	"quoteintake/internal/config"
	"quoteintake/internal/logging"
)

var application *app.App

var rootCmd = &cobra.Command{
	Use:           "quoteintake",
	Short:         "Turn supplier price lists into reviewed order lines",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		application, err = app.New(cfg, logger)
		return err
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		if application == nil {
			return nil
		}
		return application.Close()
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
