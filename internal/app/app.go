// Package app wires configuration, storage and the intake pipeline together
// for the binaries.
package app

import (
	"fmt"
	"log/slog"

	"quoteintake/internal/config"
	"quoteintake/internal/docparse/pdftext"
	"quoteintake/internal/docparse/remote"
	"quoteintake/internal/pipeline"
	"quoteintake/internal/storage"
)

type App struct {
	Config       config.Config
	Logger       *slog.Logger
	DB           *storage.DB
	Orchestrator *pipeline.Orchestrator
}

func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kw, err := pipeline.LoadKeywords(cfg.KeywordsFile)
	if err != nil {
		return nil, err
	}
	resolver := pipeline.NewResolver(kw)
	resolver.ScanRows = cfg.HeaderScanRows
	resolver.PreviewRows = cfg.MappingPreviewRows

	parser, err := NewDocumentParser(cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Resolver:  resolver,
		Documents: pipeline.NewDocumentAdapter(parser, cfg.DocParseTimeout, logger),
		Sink:      db,
		Runs:      db,
		Logger:    logger,
	})
	return &App{Config: cfg, Logger: logger, DB: db, Orchestrator: orch}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

func (a *App) Processor() *pipeline.ProcessingService {
	return pipeline.NewProcessingService(a.DB, a.Orchestrator, a.Config.OutputDir, a.Logger)
}

// NewDocumentParser picks the document collaborator. "none" leaves documents
// unparseable, which surfaces as a collaborator failure on ingest.
func NewDocumentParser(cfg config.Config, logger *slog.Logger) (pipeline.DocumentParser, error) {
	switch cfg.DocParseBackend {
	case "remote":
		return remote.NewClient(remote.OptionsFromConfig(cfg), logger)
	case "local":
		return pdftext.New(logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported DOCPARSE_BACKEND: %s", cfg.DocParseBackend)
	}
}
