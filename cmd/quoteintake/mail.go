package main

import (
	"github.com/spf13/cobra"

	"quoteintake/internal/connectors"
	"quoteintake/internal/listener"
)

var mailCmd = &cobra.Command{
	Use:   "mail",
	Short: "Fetch supplier mail and ingest its attachments",
}

var mailFetchFlags struct {
	provider string
	label    string
	max      int
}

var mailFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch new messages into the local store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		conn, err := connectors.New(cmd.Context(), application.Config, mailFetchFlags.provider)
		if err != nil {
			return err
		}
		fetch := connectors.NewFetchService(application.DB, application.Config.RawMailDir, conn, application.Logger)
		res, err := fetch.FetchAndStore(cmd.Context(), mailFetchFlags.label, mailFetchFlags.max)
		if err != nil {
			return err
		}
		cmd.Printf("mail fetch done provider=%s fetched=%d stored=%d new=%d\n", mailFetchFlags.provider, res.Fetched, res.Stored, res.New)
		return nil
	},
}

var mailIngestFlags struct {
	provider string
	emailID  int
	batch    int
}

var mailIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run fetched messages through the pipeline and write review workbooks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		processor := application.Processor()
		if mailIngestFlags.emailID > 0 {
			res, err := processor.ProcessByID(cmd.Context(), mailIngestFlags.emailID)
			if err != nil {
				return err
			}
			cmd.Printf("email id=%d status=%s items=%d\n", res.EmailID, res.Status, res.Items)
			for _, path := range res.Outputs {
				cmd.Println("  " + path)
			}
			return nil
		}
		emails, items, err := processor.ProcessPending(cmd.Context(), mailIngestFlags.batch, mailIngestFlags.provider)
		if err != nil {
			return err
		}
		cmd.Printf("processed pending emails=%d items=%d\n", emails, items)
		return nil
	},
}

var mailListenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Poll the mailbox and ingest new mail until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		svc := listener.NewService(application.DB, application.Config, application.Processor(), application.Logger)
		return svc.Run(cmd.Context())
	},
}

func init() {
	f := mailFetchCmd.Flags()
	f.StringVar(&mailFetchFlags.provider, "provider", "imap", "gmail|imap")
	f.StringVar(&mailFetchFlags.label, "label", "INBOX", "mailbox or label")
	f.IntVar(&mailFetchFlags.max, "max", 50, "max messages")

	f = mailIngestCmd.Flags()
	f.StringVar(&mailIngestFlags.provider, "provider", "", "only this provider")
	f.IntVar(&mailIngestFlags.emailID, "email-id", 0, "process one stored email by id")
	f.IntVar(&mailIngestFlags.batch, "batch", 20, "batch size")

	mailCmd.AddCommand(mailFetchCmd, mailIngestCmd, mailListenCmd)
	rootCmd.AddCommand(mailCmd)
}
