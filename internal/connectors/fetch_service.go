package connectors

import (
	"context"
	"log/slog"

	"quoteintake/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	New     int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logger,
	}
}

// FetchAndStore pulls up to max messages and records them as fetched. A
// message seen before keeps its processing status.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		if row.Status == "fetched" {
			res.New++
		}
	}

	s.logger.Info("mail.fetch.done", "label", label, "fetched", res.Fetched, "stored", res.Stored, "pending", res.New)
	return res, nil
}
