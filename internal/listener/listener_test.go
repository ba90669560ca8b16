package listener

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal"
	"quoteintake/internal/config"
	"quoteintake/internal/connectors"
	"quoteintake/internal/pipeline"
	"quoteintake/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

const offerMail = "From: sales@delta.example\r\n" +
	"Subject: Quotation\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"XX\"\r\n" +
	"\r\n" +
	"--XX\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"attached\r\n" +
	"--XX\r\n" +
	"Content-Type: text/csv; name=\"offer.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"offer.csv\"\r\n" +
	"\r\n" +
	"name,price\r\nParacetamol,12.5\r\nAmoxicillin,30\r\n" +
	"--XX--\r\n"

func newTestService(t *testing.T, factory ConnectorFactory) (*Service, *storage.DB) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "intake.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		MailListenerProvider:     "IMAP",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
	}
	orch := pipeline.NewOrchestrator(pipeline.Options{Sink: db, Runs: db})
	processor := pipeline.NewProcessingService(db, orch, cfg.OutputDir, nil)
	return NewService(db, cfg, processor, nil).WithConnectorFactory(factory), db
}

func TestRunCycle(t *testing.T) {
	var gotProvider string
	svc, db := newTestService(t, func(_ context.Context, _ config.Config, provider string) (connectors.MailConnector, error) {
		gotProvider = provider
		return stubConnector{messages: []internal.FetchedMailMessage{
			{Provider: "imap", MessageID: "<q1@delta>", Subject: "Quotation", ReceivedAt: "2026-10-12T08:00:00Z", Raw: []byte(offerMail)},
		}}, nil
	})

	res, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "imap", gotProvider)
	assert.Equal(t, 1, res.Fetch.New)
	assert.Equal(t, 1, res.ProcessedMails)
	assert.Equal(t, 2, res.Items)

	last, err := db.GetMetadata(lastCycleKey)
	require.NoError(t, err)
	require.NotNil(t, last)

	// the same message again is stored but not processed twice
	res, err = svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Fetch.New)
	assert.Equal(t, 0, res.ProcessedMails)
}

func TestRunCycleConnectorError(t *testing.T) {
	svc, _ := newTestService(t, func(context.Context, config.Config, string) (connectors.MailConnector, error) {
		return nil, errors.New("no credentials")
	})
	_, err := svc.RunCycle(context.Background())
	assert.EqualError(t, err, "no credentials")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _ := newTestService(t, func(context.Context, config.Config, string) (connectors.MailConnector, error) {
		return stubConnector{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, svc.Run(ctx))
}
