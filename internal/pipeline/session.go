package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"quoteintake/internal"
	"quoteintake/internal/review"
	"quoteintake/internal/source"
	"quoteintake/internal/util"
)

type State string

const (
	StateIdle            State = "idle"
	StateParsing         State = "parsing"
	StateNeedsMapping    State = "needs_mapping"
	StateReviewing       State = "reviewing"
	StateRawTextFallback State = "raw_text_fallback"
)

// Session is one ingestion conversation with its own review store. All
// methods are safe for concurrent use. The session lock is never held while
// the document collaborator or the order sink runs.
type Session struct {
	id   string
	orch *Orchestrator

	mu         sync.Mutex
	state      State
	store      *review.Store
	mapping    *internal.MappingRequest
	result     internal.ParseResult
	fileName   string
	epoch      uint64
	cancel     context.CancelFunc
	confirming bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MappingRequest is non-nil only in StateNeedsMapping.
func (s *Session) MappingRequest() *internal.MappingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping
}

// Result is the last extraction result. In StateRawTextFallback its RawText
// is the evidence to show the user.
func (s *Session) Result() internal.ParseResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) FileName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileName
}

func (s *Session) Items() []internal.CandidateItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Items()
}

// Ingest parses the input and moves the session to NeedsMapping, Reviewing
// or RawTextFallback. Any previous working set is replaced. Hard failures
// leave the session idle and empty.
func (s *Session) Ingest(ctx context.Context, in source.Input) (State, error) {
	s.mu.Lock()
	if s.state == StateParsing || s.confirming {
		s.mu.Unlock()
		return s.State(), ErrBusy
	}
	s.resetLocked()
	s.state = StateParsing
	s.fileName = in.Name
	s.epoch++
	epoch := s.epoch
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	log := s.orch.logger.With("session_id", s.id, "file", in.Name)
	log.Info("intake.ingest.start", "media_type", in.MediaType, "bytes", in.Size())
	start := time.Now()

	kind, res, req, err := s.orch.parse(ctx, in)

	run := internal.IntakeRun{
		TraceID:   uuid.NewString(),
		SessionID: s.id,
		FileName:  in.Name,
		Kind:      string(kind),
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	defer func() { s.orch.record(ctx, run) }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		run.Outcome = "stale"
		log.Info("intake.ingest.stale", "elapsed_ms", run.ElapsedMs)
		return s.state, ErrStale
	}
	s.cancel = nil

	if err != nil {
		s.resetLocked()
		run.Outcome = "failed"
		run.Error = err.Error()
		log.Warn("intake.ingest.failed", "elapsed_ms", run.ElapsedMs, "retryable", IsRetryable(err), "err", err)
		return s.state, err
	}

	switch {
	case req != nil:
		s.mapping = req
		s.state = StateNeedsMapping
	case len(res.Items) == 0 && res.Source == internal.KindDocument:
		s.result = res
		s.state = StateRawTextFallback
	default:
		s.result = res
		s.store.Load(res.Items)
		s.state = StateReviewing
	}

	run.Outcome = string(s.state)
	run.ExtractedCount = res.ExtractedCount
	run.Confidence = string(res.Confidence)
	log.Info("intake.ingest.done",
		"state", s.state,
		"items", res.ExtractedCount,
		"confidence", res.Confidence,
		"elapsed_ms", run.ElapsedMs,
	)
	return s.state, nil
}

// ApplyMapping resolves the pending mapping request with user-chosen columns.
func (s *Session) ApplyMapping(m internal.ColumnMapping) ([]internal.CandidateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateNeedsMapping || s.mapping == nil {
		return nil, fmt.Errorf("%w: apply mapping in %s", ErrInvalidState, s.state)
	}

	items := ResolveWithMapping(s.mapping.Rows, m)
	s.store.Load(items)
	s.result = internal.ParseResult{
		Items:          items,
		ExtractedCount: len(items),
		Confidence:     internal.ConfidenceHigh,
		Source:         internal.KindSpreadsheet,
	}
	s.mapping = nil
	s.state = StateReviewing
	s.orch.logger.Info("intake.mapping.applied", "session_id", s.id, "items", len(items))
	return s.store.Items(), nil
}

// Transcribe loads items the user read off the raw text. Ids are assigned
// here and any ids on the input are ignored.
func (s *Session) Transcribe(items []internal.CandidateItem) ([]internal.CandidateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRawTextFallback {
		return nil, fmt.Errorf("%w: transcribe in %s", ErrInvalidState, s.state)
	}

	manual := make([]internal.CandidateItem, 0, len(items))
	for i, it := range items {
		it.ID = fmt.Sprintf("manual-%d", i+1)
		it.Name = util.NormalizeSpaces(it.Name)
		if it.UnitPrice < 0 {
			it.UnitPrice = 0
		}
		manual = append(manual, it)
	}
	s.store.Load(manual)
	s.state = StateReviewing
	return s.store.Items(), nil
}

func (s *Session) Update(id string, p review.Patch) (internal.CandidateItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("update"); err != nil {
		return internal.CandidateItem{}, err
	}
	it, err := s.store.Update(id, p)
	if errors.Is(err, review.ErrNotFound) {
		return internal.CandidateItem{}, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return it, err
}

func (s *Session) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked("remove"); err != nil {
		return err
	}
	if err := s.store.Remove(id); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return nil
}

// Confirm hands the named items to the order sink and returns the session to
// idle. When the sink fails the session stays in review with its items.
func (s *Session) Confirm(ctx context.Context) ([]internal.CandidateItem, error) {
	s.mu.Lock()
	if err := s.editableLocked("confirm"); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	items := s.store.Confirm()
	epoch := s.epoch
	s.confirming = true
	s.mu.Unlock()

	var sinkErr error
	if s.orch.sink != nil {
		sinkErr = s.orch.sink.OnIngested(ctx, s.id, items)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The flag now belongs to whatever ran after the abandon.
		return nil, ErrStale
	}
	s.confirming = false
	if sinkErr != nil {
		s.orch.logger.Warn("intake.confirm.failed", "session_id", s.id, "err", sinkErr)
		return nil, fmt.Errorf("order sink: %w", sinkErr)
	}
	s.orch.logger.Info("intake.confirm.done", "session_id", s.id, "items", len(items))
	s.resetLocked()
	return items, nil
}

// Discard drops the working set without confirming it.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateParsing || s.confirming {
		return ErrBusy
	}
	s.resetLocked()
	return nil
}

// Abandon returns the session to idle from any state. An in-flight parse is
// cancelled and its result dropped.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.confirming = false
	s.resetLocked()
}

func (s *Session) editableLocked(op string) error {
	if s.confirming {
		return ErrBusy
	}
	if s.state != StateReviewing {
		return fmt.Errorf("%w: %s in %s", ErrInvalidState, op, s.state)
	}
	return nil
}

func (s *Session) resetLocked() {
	s.store.Discard()
	s.mapping = nil
	s.result = internal.ParseResult{}
	s.state = StateIdle
}
