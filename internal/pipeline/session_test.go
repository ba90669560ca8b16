package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quoteintake/internal"
	"quoteintake/internal/review"
	"quoteintake/internal/source"
	"quoteintake/internal/util"
)

type fakeSink struct {
	mu    sync.Mutex
	calls map[string][][]internal.CandidateItem
	err   error
}

func (f *fakeSink) OnIngested(_ context.Context, sessionID string, items []internal.CandidateItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.calls == nil {
		f.calls = map[string][][]internal.CandidateItem{}
	}
	f.calls[sessionID] = append(f.calls[sessionID], items)
	return nil
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []internal.IntakeRun
}

func (f *fakeRuns) RecordRun(_ context.Context, run internal.IntakeRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRuns) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.runs))
	for i, r := range f.runs {
		out[i] = r.Outcome
	}
	return out
}

const arabicCSV = "اسم الصنف,السعر\nParacetamol,12.5\n,\nAmoxicillin,30\n"

func newTestOrchestrator(parser DocumentParser, sink OrderSink, runs RunRecorder) *Orchestrator {
	return NewOrchestrator(Options{
		Documents: NewDocumentAdapter(parser, time.Second, nil),
		Sink:      sink,
		Runs:      runs,
	})
}

func TestSessionEndToEndArabicSheet(t *testing.T) {
	sink := &fakeSink{}
	runs := &fakeRuns{}
	o := newTestOrchestrator(nil, sink, runs)

	s, err := o.Ingest(context.Background(), source.New("عرض.csv", "", []byte(arabicCSV)))
	require.NoError(t, err)
	require.Equal(t, StateReviewing, s.State())
	assert.Len(t, s.Items(), 2)

	confirmed, err := s.Confirm(context.Background())
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	assert.Equal(t, "Paracetamol", confirmed[0].Name)
	assert.Equal(t, 12.5, confirmed[0].UnitPrice)
	assert.Equal(t, "Amoxicillin", confirmed[1].Name)
	assert.Equal(t, 30.0, confirmed[1].UnitPrice)

	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Items())
	require.Len(t, sink.calls[s.ID()], 1)
	assert.Equal(t, confirmed, sink.calls[s.ID()][0])

	require.Equal(t, []string{string(StateReviewing)}, runs.outcomes())
	assert.Equal(t, 2, runs.runs[0].ExtractedCount)
	assert.Equal(t, string(internal.KindSpreadsheet), runs.runs[0].Kind)
	assert.NotEmpty(t, runs.runs[0].TraceID)
}

func TestSessionNeedsMappingThenApply(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	blob := mkXLSX([][]any{
		{"A", "B", "C"},
		{"Cetal", 9, "12/2026"},
		{"", 3, ""},
		{"Flumox", "x", ""},
	})

	s, err := o.Ingest(context.Background(), source.New("sheet.xlsx", "", blob))
	require.NoError(t, err)
	require.Equal(t, StateNeedsMapping, s.State())
	req := s.MappingRequest()
	require.NotNil(t, req)
	assert.Equal(t, []string{"A", "B", "C"}, req.Header)
	assert.Len(t, req.Preview, 4)

	_, err = s.Update("row-2", review.Patch{Name: util.StringPtr("x")})
	assert.ErrorIs(t, err, ErrInvalidState)

	items, err := s.ApplyMapping(internal.ColumnMapping{NameColumn: 0, PriceColumn: 1, ExpiryColumn: util.IntPtr(2)})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, StateReviewing, s.State())
	assert.Nil(t, s.MappingRequest())
	assert.Equal(t, 9.0, items[0].UnitPrice)
	assert.Zero(t, items[1].UnitPrice)

	_, err = s.ApplyMapping(internal.ColumnMapping{})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSessionZeroExtractionFallsBackToRawText(t *testing.T) {
	parser := parserFunc(func(context.Context, []byte, string) (internal.DocumentResponse, error) {
		return internal.DocumentResponse{RawText: util.StringPtr("Cetal ..... ٢٥")}, nil
	})
	o := newTestOrchestrator(parser, nil, nil)

	s, err := o.Ingest(context.Background(), source.New("scan.jpg", "", []byte{0xff, 0xd8}))
	require.NoError(t, err)
	require.Equal(t, StateRawTextFallback, s.State())
	assert.Equal(t, "Cetal ..... ٢٥", s.Result().RawText)
	assert.Empty(t, s.Items())

	_, err = s.Confirm(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	items, err := s.Transcribe([]internal.CandidateItem{
		{ID: "ignored", Name: " Cetal ", UnitPrice: 25},
		{Name: "", UnitPrice: -2},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "manual-1", items[0].ID)
	assert.Equal(t, "Cetal", items[0].Name)
	assert.Zero(t, items[1].UnitPrice)
	assert.Equal(t, StateReviewing, s.State())

	confirmed, err := s.Confirm(context.Background())
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
}

func TestSessionDocumentWithItems(t *testing.T) {
	parser := parserFunc(func(_ context.Context, content []byte, fileName string) (internal.DocumentResponse, error) {
		assert.Equal(t, "offer.pdf", fileName)
		assert.Equal(t, []byte("%PDF-1.4"), content)
		return internal.DocumentResponse{
			Items:      []internal.DocumentItem{{Name: "Cetal", Price: "25"}},
			Confidence: util.StringPtr("medium"),
		}, nil
	})
	o := newTestOrchestrator(parser, nil, nil)

	s, err := o.Ingest(context.Background(), source.New("offer.pdf", "", []byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.Equal(t, StateReviewing, s.State())
	assert.Equal(t, internal.ConfidenceMedium, s.Result().Confidence)
	assert.Equal(t, "doc-1", s.Items()[0].ID)
}

func TestSessionHardFailures(t *testing.T) {
	runs := &fakeRuns{}
	parser := parserFunc(func(context.Context, []byte, string) (internal.DocumentResponse, error) {
		return internal.DocumentResponse{}, errors.New("503 from upstream")
	})
	o := newTestOrchestrator(parser, nil, runs)
	s := o.Open()

	_, err := s.Ingest(context.Background(), source.New("letter.docx", "", []byte("PK")))
	assert.ErrorIs(t, err, ErrUnsupportedInput)
	assert.False(t, IsRetryable(err))
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageDispatch, se.Stage)
	assert.Equal(t, StateIdle, s.State())

	_, err = s.Ingest(context.Background(), source.New("scan.pdf", "", []byte("%PDF")))
	assert.ErrorIs(t, err, ErrCollaborator)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Items())

	_, err = s.Ingest(context.Background(), source.New("old.xls", "", []byte("not a workbook")))
	assert.ErrorIs(t, err, ErrUnreadable)

	assert.Equal(t, []string{"failed", "failed", "failed"}, runs.outcomes())
	assert.NotEmpty(t, runs.runs[1].Error)
}

func TestSessionBusyAndAbandon(t *testing.T) {
	started := make(chan struct{})
	parser := parserFunc(func(ctx context.Context, _ []byte, _ string) (internal.DocumentResponse, error) {
		close(started)
		<-ctx.Done()
		return internal.DocumentResponse{}, ctx.Err()
	})
	o := NewOrchestrator(Options{Documents: NewDocumentAdapter(parser, time.Minute, nil)})
	s := o.Open()

	done := make(chan error, 1)
	go func() {
		_, err := s.Ingest(context.Background(), source.New("scan.pdf", "", []byte("%PDF")))
		done <- err
	}()
	<-started

	assert.Equal(t, StateParsing, s.State())
	_, err := s.Ingest(context.Background(), source.New("other.csv", "", []byte(arabicCSV)))
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Discard(), ErrBusy)

	s.Abandon()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(5 * time.Second):
		t.Fatal("abandon did not cancel the parse")
	}
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Items())
}

func TestSessionIsolationAfterDiscardAndAbandon(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	s := o.Open()
	ctx := context.Background()

	_, err := s.Ingest(ctx, source.New("a.csv", "", []byte(arabicCSV)))
	require.NoError(t, err)
	require.NoError(t, s.Discard())
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Items())

	_, err = s.Ingest(ctx, source.New("b.csv", "", []byte("name,price\nZinc,4\n")))
	require.NoError(t, err)
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Zinc", items[0].Name)

	_, err = s.Ingest(ctx, source.New("c.csv", "", []byte("foo,bar\n1,2\n")))
	require.NoError(t, err)
	assert.Equal(t, StateNeedsMapping, s.State())
	assert.Empty(t, s.Items(), "a new ingest replaces the working set")

	s.Abandon()
	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.MappingRequest())
}

func TestSessionsAreIndependent(t *testing.T) {
	o := newTestOrchestrator(nil, nil, nil)
	ctx := context.Background()

	a, err := o.Ingest(ctx, source.New("a.csv", "", []byte(arabicCSV)))
	require.NoError(t, err)
	b, err := o.Ingest(ctx, source.New("b.csv", "", []byte("name,price\nZinc,4\n")))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, o.Len())

	require.NoError(t, a.Remove("row-2"))
	assert.Len(t, a.Items(), 1)
	assert.Len(t, b.Items(), 1)

	got, ok := o.Session(b.ID())
	require.True(t, ok)
	assert.Same(t, b, got)

	o.Close(a.ID())
	_, ok = o.Session(a.ID())
	assert.False(t, ok)
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, StateReviewing, b.State())
}

func TestSessionEditAndSinkFailure(t *testing.T) {
	sink := &fakeSink{err: errors.New("orders db down")}
	o := newTestOrchestrator(nil, sink, nil)
	s, err := o.Ingest(context.Background(), source.New("a.csv", "", []byte(arabicCSV)))
	require.NoError(t, err)

	_, err = s.Update("row-99", review.Patch{Name: util.StringPtr("x")})
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.ErrorIs(t, s.Remove("row-99"), ErrUnknownItem)

	it, err := s.Update("row-4", review.Patch{Name: util.StringPtr("   ")})
	require.NoError(t, err)
	assert.Equal(t, "   ", it.Name)

	_, err = s.Confirm(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateReviewing, s.State())
	assert.Len(t, s.Items(), 2)

	sink.err = nil
	confirmed, err := s.Confirm(context.Background())
	require.NoError(t, err)
	require.Len(t, confirmed, 1)
	assert.Equal(t, "Paracetamol", confirmed[0].Name)
}

// gatedSink blocks call n until gates[n] is closed.
type gatedSink struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	gates   []chan struct{}
}

func newGatedSink(n int) *gatedSink {
	g := &gatedSink{entered: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		g.gates = append(g.gates, make(chan struct{}))
	}
	return g
}

func (g *gatedSink) OnIngested(_ context.Context, _ string, _ []internal.CandidateItem) error {
	g.mu.Lock()
	gate := g.gates[g.calls]
	g.calls++
	g.mu.Unlock()
	g.entered <- struct{}{}
	<-gate
	return nil
}

func TestSessionStaleConfirmKeepsNewConfirmBusy(t *testing.T) {
	sink := newGatedSink(2)
	o := newTestOrchestrator(nil, sink, nil)
	ctx := context.Background()
	s, err := o.Ingest(ctx, source.New("a.csv", "", []byte(arabicCSV)))
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := s.Confirm(ctx)
		first <- err
	}()
	<-sink.entered

	s.Abandon()
	_, err = s.Ingest(ctx, source.New("b.csv", "", []byte("name,price\nZinc,4\n")))
	require.NoError(t, err)

	second := make(chan []internal.CandidateItem, 1)
	go func() {
		items, _ := s.Confirm(ctx)
		second <- items
	}()
	<-sink.entered

	close(sink.gates[0])
	assert.ErrorIs(t, <-first, ErrStale)
	assert.ErrorIs(t, s.Discard(), ErrBusy, "the second confirm is still running")
	assert.Equal(t, StateReviewing, s.State())

	close(sink.gates[1])
	items := <-second
	require.Len(t, items, 1)
	assert.Equal(t, "Zinc", items[0].Name)
	assert.Equal(t, StateIdle, s.State())
}
