package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the intake run audit",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent intake runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		runs, err := application.DB.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		t := newTable("created", "file", "kind", "outcome", "items", "confidence", "ms", "email", "error")
		for _, r := range runs {
			email := ""
			if r.EmailID != nil {
				email = strconv.Itoa(*r.EmailID)
			}
			t.Row(r.CreatedAt, r.FileName, r.Kind, r.Outcome, strconv.Itoa(r.ExtractedCount), r.Confidence,
				strconv.FormatInt(r.ElapsedMs, 10), email, r.Error)
		}
		cmd.Println(t.String())
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs")
	runsCmd.AddCommand(runsListCmd)
	rootCmd.AddCommand(runsCmd)
}
