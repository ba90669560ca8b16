package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal/config"
	"quoteintake/internal/docparse/pdftext"
	"quoteintake/internal/docparse/remote"
	"quoteintake/internal/pipeline"
	"quoteintake/internal/source"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	tmp := t.TempDir()
	return config.Config{
		DBPath:             filepath.Join(tmp, "intake.db"),
		OutputDir:          filepath.Join(tmp, "out"),
		DocParseBackend:    "local",
		HeaderScanRows:     5,
		MappingPreviewRows: 2,
	}
}

func TestNewDocumentParser(t *testing.T) {
	cfg := testConfig(t)

	p, err := NewDocumentParser(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &pdftext.Parser{}, p)

	cfg.DocParseBackend = "remote"
	_, err = NewDocumentParser(cfg, nil)
	assert.Error(t, err, "remote backend needs a URL")

	cfg.DocParseURL = "http://docparse.local/parse"
	p, err = NewDocumentParser(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &remote.Client{}, p)

	cfg.DocParseBackend = "none"
	p, err = NewDocumentParser(cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg.DocParseBackend = "ocr"
	_, err = NewDocumentParser(cfg, nil)
	assert.Error(t, err)
}

func TestNewWiresCustomKeywords(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeywordsFile = filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(cfg.KeywordsFile, []byte("name: [artikel]\nprice: [preis]\n"), 0o644))

	a, err := New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	s, err := a.Orchestrator.Ingest(context.Background(), source.New("angebot.csv", "", []byte("Artikel,Preis\nAspirin,4.2\n")))
	require.NoError(t, err)
	require.Equal(t, pipeline.StateReviewing, s.State())
	require.Len(t, s.Items(), 1)
	assert.Equal(t, "Aspirin", s.Items()[0].Name)

	items, err := s.Confirm(context.Background())
	require.NoError(t, err)
	promoted, err := a.DB.ListPromoted(context.Background(), s.ID())
	require.NoError(t, err)
	assert.Equal(t, items, promoted)

	runs, err := a.DB.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "reviewing", runs[0].Outcome)
}

func TestNewRejectsMissingKeywordsFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeywordsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg, nil)
	assert.Error(t, err)
}
