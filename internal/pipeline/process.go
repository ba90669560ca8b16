package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"quoteintake/internal"
	"quoteintake/internal/source"
	"quoteintake/internal/storage"
	"quoteintake/internal/util"
)

// Email statuses written by the processing service.
const (
	StatusFetched     = "fetched"
	StatusSkipped     = "skipped"
	StatusProcessed   = "processed"
	StatusNeedsReview = "needs_review"
	StatusFailed      = "failed"
)

// ProcessingService runs stored emails through the intake pipeline without a
// reviewer. Every ingestible part gets its own session; what the session ends
// up holding is written to the output directory for offline review and the
// session is then closed unconfirmed.
type ProcessingService struct {
	db        *storage.DB
	orch      *Orchestrator
	outputDir string
	logger    *slog.Logger
}

func NewProcessingService(db *storage.DB, orch *Orchestrator, outputDir string, logger *slog.Logger) *ProcessingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{db: db, orch: orch, outputDir: outputDir, logger: logger}
}

type ProcessResult struct {
	EmailID      int
	Detect       DetectResult
	Inputs       int
	Reviewing    int
	NeedsMapping int
	RawText      int
	Failed       int
	Items        int
	Outputs      []string
	Status       string
}

func (s *ProcessingService) ProcessByID(ctx context.Context, emailID int) (ProcessResult, error) {
	email, err := s.db.MustEmailByID(emailID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending handles up to limit fetched emails, optionally restricted to
// one provider. It returns the number of emails and extracted items. An email
// that cannot be read or parsed is marked failed and the batch goes on.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(StatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedItems := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		if err := ctx.Err(); err != nil {
			return processedEmails, processedItems, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return processedEmails, processedItems, ctxErr
			}
			s.logger.Error("intake.email.failed", "email_id", email.ID, "err", err)
			if err := s.db.UpdateEmailStatus(email.ID, StatusFailed); err != nil {
				return processedEmails, processedItems, err
			}
			continue
		}
		processedEmails++
		processedItems += res.Items
	}
	return processedEmails, processedItems, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("read raw email %d: %w", email.ID, err)
	}
	msg, err := source.FromEmail(raw)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("parse email %d: %w", email.ID, err)
	}

	res := ProcessResult{EmailID: email.ID}
	res.Detect = DetectQuote(util.FirstNonEmpty(msg.Subject, email.Subject), msg.Text, msg.HTML, msg.AttachmentNames())
	if !res.Detect.IsQuote {
		res.Status = StatusSkipped
		s.logger.Info("intake.email.skipped", "email_id", email.ID, "score", res.Detect.Score, "reason", res.Detect.Reason)
		return res, s.db.UpdateEmailStatus(email.ID, res.Status)
	}

	inputs := ingestibleParts(msg)
	res.Inputs = len(inputs)
	dir := filepath.Join(s.outputDir, fmt.Sprintf("%d_%s", email.ID, sanitizeName(email.MessageID)))

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := s.ingestPart(ctx, email.ID, in, filepath.Join(dir, fmt.Sprintf("%02d_%s", i+1, sanitizeName(in.Name))))
		if err != nil {
			res.Failed++
			continue
		}
		switch out.State {
		case StateReviewing:
			res.Reviewing++
			res.Items += out.Items
		case StateNeedsMapping:
			res.NeedsMapping++
		case StateRawTextFallback:
			res.RawText++
		}
		res.Outputs = append(res.Outputs, out.Path)
	}

	res.Status = emailStatus(res)
	s.logger.Info("intake.email.done",
		"email_id", email.ID,
		"inputs", res.Inputs,
		"reviewing", res.Reviewing,
		"needs_mapping", res.NeedsMapping,
		"raw_text", res.RawText,
		"failed", res.Failed,
		"items", res.Items,
		"status", res.Status,
	)
	return res, s.db.UpdateEmailStatus(email.ID, res.Status)
}

// PartResult is what unattended ingestion of one input left behind.
type PartResult struct {
	SessionID string
	State     State
	Items     int
	Path      string
}

// ProcessFile ingests one local file without a reviewer and writes its
// outcome under the output directory.
func (s *ProcessingService) ProcessFile(ctx context.Context, path string) (PartResult, error) {
	in, err := source.FromFile(path)
	if err != nil {
		return PartResult{}, err
	}
	return s.ingestUnattended(ctx, in, filepath.Join(s.outputDir, "files", sanitizeName(in.Name)))
}

func (s *ProcessingService) ingestPart(ctx context.Context, emailID int, in source.Input, base string) (PartResult, error) {
	out, err := s.ingestUnattended(ctx, in, base)
	if out.SessionID != "" {
		if linkErr := s.db.LinkRunsToEmail(ctx, out.SessionID, emailID); linkErr != nil {
			s.logger.Warn("intake.email.link_failed", "email_id", emailID, "session_id", out.SessionID, "err", linkErr)
		}
	}
	if err != nil {
		s.logger.Warn("intake.email.part_failed", "email_id", emailID, "file", in.Name, "retryable", IsRetryable(err), "err", err)
	}
	return out, err
}

func (s *ProcessingService) ingestUnattended(ctx context.Context, in source.Input, base string) (PartResult, error) {
	session := s.orch.Open()
	defer s.orch.Close(session.ID())

	out := PartResult{SessionID: session.ID()}
	state, err := session.Ingest(ctx, in)
	if err != nil {
		return out, err
	}

	out.State = state
	switch state {
	case StateReviewing:
		out.Path = base + ".review.xlsx"
		out.Items = len(session.Items())
		err = ExportReviewXLSX(session.Result(), out.Path)
	case StateNeedsMapping:
		out.Path = base + ".mapping.xlsx"
		err = ExportMappingXLSX(session.MappingRequest(), out.Path)
	case StateRawTextFallback:
		out.Path = base + ".txt"
		err = writeText(out.Path, session.Result().RawText)
	default:
		err = fmt.Errorf("%w: unexpected state %s", ErrInvalidState, state)
	}
	if err != nil {
		return out, fmt.Errorf("write %s: %w", in.Name, err)
	}
	return out, nil
}

// ingestibleParts returns the attachments the pipeline can route. A mail with
// none of those but a table in its HTML body is ingested as an HTML sheet.
func ingestibleParts(msg source.Email) []source.Input {
	var out []source.Input
	for _, att := range msg.Attachments {
		if Dispatch(att.Name, att.MediaType) != internal.KindUnsupported {
			out = append(out, att)
		}
	}
	if len(out) == 0 && strings.Contains(strings.ToLower(msg.HTML), "<table") {
		out = append(out, source.New("body.html", "text/html", []byte(msg.HTML)))
	}
	return out
}

func emailStatus(res ProcessResult) string {
	switch {
	case res.Inputs == 0:
		return StatusNeedsReview
	case res.Failed == res.Inputs:
		return StatusFailed
	case res.NeedsMapping > 0 || res.RawText > 0 || res.Failed > 0:
		return StatusNeedsReview
	default:
		return StatusProcessed
	}
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func sanitizeName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(strings.TrimSpace(input))
	if out == "" {
		out = "unnamed"
	}
	if r := []rune(out); len(r) > 120 {
		out = string(r[:120])
	}
	return out
}

