package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"quoteintake/internal"
)

// DocumentParser is the external extraction service for page and text
// documents.
type DocumentParser interface {
	ParseDocument(ctx context.Context, content []byte, fileName string) (internal.DocumentResponse, error)
}

// DocumentAdapter calls the collaborator and normalizes its answer.
type DocumentAdapter struct {
	parser  DocumentParser
	timeout time.Duration
	logger  *slog.Logger
}

func NewDocumentAdapter(parser DocumentParser, timeout time.Duration, logger *slog.Logger) *DocumentAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentAdapter{parser: parser, timeout: timeout, logger: logger}
}

// Parse returns a normalized result. A result with no items is not an error;
// the caller decides how to surface the raw text. Any collaborator failure,
// including a timeout, is reported as ErrCollaborator.
func (a *DocumentAdapter) Parse(ctx context.Context, content []byte, fileName string) (internal.ParseResult, error) {
	if a.parser == nil {
		return internal.ParseResult{}, fmt.Errorf("%w: no document parser configured", ErrCollaborator)
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.parser.ParseDocument(ctx, content, fileName)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		a.logger.Warn("docparse.failed", "file", fileName, "elapsed_ms", elapsed, "err", err)
		return internal.ParseResult{}, fmt.Errorf("%w: %s: %v", ErrCollaborator, fileName, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return internal.ParseResult{}, fmt.Errorf("%w: %s: %v", ErrCollaborator, fileName, ctxErr)
	}

	result := NormalizeDocument(resp)
	a.logger.Info("docparse.done",
		"file", fileName,
		"items", result.ExtractedCount,
		"confidence", result.Confidence,
		"pages", result.TotalPages,
		"elapsed_ms", elapsed,
	)
	return result, nil
}
