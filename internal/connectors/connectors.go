package connectors

import (
	"context"
	"fmt"
	"strings"

	"quoteintake/internal"
	"quoteintake/internal/config"
	gmailconnector "quoteintake/internal/connectors/gmail"
	imapconnector "quoteintake/internal/connectors/imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// New builds the connector for a provider name ("gmail" or "imap").
func New(ctx context.Context, cfg config.Config, provider string) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", provider)
	}
}
