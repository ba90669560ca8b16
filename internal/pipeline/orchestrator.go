package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"quoteintake/internal"
	"quoteintake/internal/review"
	"quoteintake/internal/source"
)

// OrderSink receives confirmed items. It is called once per explicit
// confirmation and never on discard or abandonment.
type OrderSink interface {
	OnIngested(ctx context.Context, sessionID string, items []internal.CandidateItem) error
}

// RunRecorder stores one audit row per ingestion attempt.
type RunRecorder interface {
	RecordRun(ctx context.Context, run internal.IntakeRun) error
}

type Options struct {
	Resolver  *Resolver
	Documents *DocumentAdapter
	Sink      OrderSink
	Runs      RunRecorder
	Logger    *slog.Logger
}

// Orchestrator owns the live sessions. Sessions never share state; the
// registry only exists so callers can look a session up by id.
type Orchestrator struct {
	resolver *Resolver
	docs     *DocumentAdapter
	sink     OrderSink
	runs     RunRecorder
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		resolver: opts.Resolver,
		docs:     opts.Documents,
		sink:     opts.Sink,
		runs:     opts.Runs,
		logger:   opts.Logger,
		sessions: map[string]*Session{},
	}
	if o.resolver == nil {
		o.resolver = NewResolver(DefaultKeywords())
	}
	if o.docs == nil {
		o.docs = NewDocumentAdapter(nil, 0, o.logger)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Open starts a new idle session.
func (o *Orchestrator) Open() *Session {
	s := &Session{
		id:    uuid.NewString(),
		orch:  o,
		state: StateIdle,
		store: review.New(),
	}
	o.mu.Lock()
	o.sessions[s.id] = s
	o.mu.Unlock()
	return s
}

// Ingest opens a session and feeds it the input. The session is returned even
// when ingestion fails so the caller can retry on the same handle.
func (o *Orchestrator) Ingest(ctx context.Context, in source.Input) (*Session, error) {
	s := o.Open()
	_, err := s.Ingest(ctx, in)
	return s, err
}

func (o *Orchestrator) Session(id string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[id]
	return s, ok
}

// Close abandons the session and forgets it.
func (o *Orchestrator) Close(id string) {
	o.mu.Lock()
	s, ok := o.sessions[id]
	delete(o.sessions, id)
	o.mu.Unlock()
	if ok {
		s.Abandon()
	}
}

func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions)
}

// parse runs dispatch and the matching extraction path. Exactly one of the
// result or the mapping request is meaningful on success.
func (o *Orchestrator) parse(ctx context.Context, in source.Input) (internal.FileKind, internal.ParseResult, *internal.MappingRequest, error) {
	kind := Dispatch(in.Name, in.MediaType)
	switch kind {
	case internal.KindSpreadsheet:
		rows, err := ReadRows(in)
		if err != nil {
			return kind, internal.ParseResult{}, nil, &StageError{Stage: StageRead, Err: err}
		}
		res, req := o.resolver.Resolve(rows)
		return kind, res, req, nil
	case internal.KindDocument:
		res, err := o.docs.Parse(ctx, in.Content, in.Name)
		if err != nil {
			return kind, internal.ParseResult{}, nil, &StageError{Stage: StageCollaborator, Err: err}
		}
		return kind, res, nil, nil
	default:
		err := fmt.Errorf("%w: %s (%s)", ErrUnsupportedInput, in.Name, in.MediaType)
		return kind, internal.ParseResult{}, nil, &StageError{Stage: StageDispatch, Err: err}
	}
}

func (o *Orchestrator) record(ctx context.Context, run internal.IntakeRun) {
	if o.runs == nil {
		return
	}
	if err := o.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		o.logger.Warn("intake.run.record_failed", "session_id", run.SessionID, "err", err)
	}
}
