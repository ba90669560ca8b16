package main

import (
	"time"

	"github.com/spf13/cobra"

	"quoteintake/internal/listener"
)

var watchSettle time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest price lists dropped into a directory until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		drop := listener.NewDropDir(args[0], application.Processor(), watchSettle, application.Logger)
		return drop.Run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchSettle, "settle", time.Second, "quiet period before a written file is picked up")
	rootCmd.AddCommand(watchCmd)
}
