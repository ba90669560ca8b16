// Package listener polls a mailbox and runs new supplier mail through the
// intake pipeline on a fixed interval.
package listener

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"quoteintake/internal/config"
	"quoteintake/internal/connectors"
	"quoteintake/internal/pipeline"
	"quoteintake/internal/storage"
)

const lastCycleKey = "listener.last_cycle"

type ConnectorFactory func(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	connect   ConnectorFactory
	logger    *slog.Logger
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, cfg: cfg, processor: processor, connect: connectors.New, logger: logger}
}

// WithConnectorFactory replaces how the mailbox connector is built.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.connect = f
	return s
}

// Run polls until ctx is cancelled. A failed cycle is logged and retried on
// the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener.cycle.failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetch          connectors.FetchResult
	ProcessedMails int
	Items          int
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.connect(ctx, s.cfg, provider)
	if err != nil {
		return CycleResult{}, err
	}

	var res CycleResult
	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.logger)
	res.Fetch, err = fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}

	res.ProcessedMails, res.Items, err = s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if err := s.db.SetMetadata(lastCycleKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("listener.metadata.failed", "err", err)
	}
	s.logger.Info("listener.cycle.done",
		"provider", provider,
		"fetched", res.Fetch.Fetched,
		"stored", res.Fetch.Stored,
		"new", res.Fetch.New,
		"processed", res.ProcessedMails,
		"items", res.Items,
	)
	return res, nil
}
