package scanner

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

const waitTimeout = 2 * time.Second

type fakeWriter struct {
	mu      sync.Mutex
	written []scan.Payload
	times   []time.Time
	signal  chan scan.Payload
	waits   int
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{signal: make(chan scan.Payload, 16)}
}

func (w *fakeWriter) AppendSingleAsync(_ context.Context, p scan.Payload, ts time.Time) {
	w.mu.Lock()
	w.written = append(w.written, p)
	w.times = append(w.times, ts)
	w.mu.Unlock()
	w.signal <- p
}

func (w *fakeWriter) Wait() {
	w.mu.Lock()
	w.waits++
	w.mu.Unlock()
}

func (w *fakeWriter) payloads() []scan.Payload {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]scan.Payload(nil), w.written...)
}

func (w *fakeWriter) next(t *testing.T) scan.Payload {
	t.Helper()
	select {
	case p := <-w.signal:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("no payload written")
		return nil
	}
}

func startPipeline(t *testing.T, w Writer, opts ...Option) *Pipeline {
	t.Helper()
	p := New(Config{DedupWindow: 3 * time.Second}, w, opts...)
	require.NoError(t, p.Start(t.Context()))
	t.Cleanup(p.Stop)
	return p
}

func promptChannel() (chan string, Option) {
	ch := make(chan string, 4)
	return ch, OnPrompt(func(id string) { ch <- id })
}

func waitPrompt(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case id := <-ch:
		return id
	case <-time.After(waitTimeout):
		t.Fatal("prompt not opened")
		return ""
	}
}

func TestStructuredScanIsWritten(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	p := startPipeline(t, w)

	require.True(t, p.Deliver(`{"id":"123","fn":"Ann","gr":"5"}`))
	got := w.next(t)

	s, ok := got.(scan.Structured)
	require.True(t, ok)
	assert.Equal(t, "Ann", s.Label())
	assert.Equal(t, "123", s.Fields.ID)

	lr, ok := p.LiveRead()
	require.True(t, ok)
	assert.Equal(t, decoder.SourceLinear, lr.Source)
	assert.Equal(t, "Ann", lr.Label)
	assert.True(t, lr.Valid)

	p.Stop()
}

func TestRepeatedScanIsSuppressed(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	reads := make(chan LiveRead, 8)
	p := startPipeline(t, w, OnLiveRead(func(lr LiveRead) { reads <- lr }))

	payload := `{"id":"555","fn":"Bo","ln":"Chan"}`
	require.True(t, p.Deliver(payload))
	require.True(t, p.Deliver(payload))

	for range 2 {
		select {
		case lr := <-reads:
			assert.Equal(t, "Bo Chan", lr.Label, "suppressed reads still update the live read")
		case <-time.After(waitTimeout):
			t.Fatal("live read not updated")
		}
	}

	p.Stop()
	assert.Len(t, w.payloads(), 1)
}

func TestUnrecognizedScanOnlyUpdatesLiveRead(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	reads := make(chan LiveRead, 1)
	p := startPipeline(t, w, OnLiveRead(func(lr LiveRead) { reads <- lr }))

	require.True(t, p.Deliver("12345"))
	select {
	case lr := <-reads:
		assert.False(t, lr.Valid)
		assert.Equal(t, "12345", lr.Label)
	case <-time.After(waitTimeout):
		t.Fatal("live read not updated")
	}

	p.Stop()
	assert.Empty(t, w.payloads())
}

func TestBareIDPromptsForNameAndGrade(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := t.Context()
	svc := &recordingService{}
	store := records.New(kvstore.NewMemoryStore())
	target := sheets.Target{SpreadsheetID: "sheet-1", SpreadsheetName: "Attendance"}
	w := sheets.NewWriter(svc, sheets.TargetFunc(func() sheets.Target { return target }), store,
		sheets.WithRowFormat(sheets.RowFormat{Location: time.UTC}))

	fixed := time.Date(2024, time.September, 3, 7, 45, 10, 0, time.UTC)
	prompts, onPrompt := promptChannel()
	p := New(Config{}, w, onPrompt, WithClock(func() time.Time { return fixed }))
	require.NoError(t, p.Start(ctx))
	defer p.Stop()

	require.True(t, p.Deliver("987654321"))
	assert.Equal(t, "987654321", waitPrompt(t, prompts))
	assert.Equal(t, scan.PromptAwaitingInput, p.PromptState())
	assert.False(t, p.Deliver("123456789"), "sources are paused while the prompt is open")

	_, err := p.SubmitPrompt("  ", "9")
	require.ErrorIs(t, err, scan.ErrNameRequired)

	payload, err := p.SubmitPrompt("Sam Lee", "9")
	require.NoError(t, err)
	assert.Equal(t, scan.Fields{ID: "987654321", FirstName: "Sam", LastName: "Lee", Grade: "9"}, payload.Fields)
	assert.Equal(t, scan.PromptIdle, p.PromptState())

	w.Wait()
	require.Len(t, svc.rows, 1)
	assert.Equal(t, []string{"Sam Lee", "9", "987654321", "9/3/2024", "7:45:10 AM"}, svc.rows[0])

	recs := store.List(1)
	require.Len(t, recs, 1)
	assert.Equal(t, "Sam Lee", recs[0].Label)
	assert.True(t, recs[0].Succeeded)
	assert.True(t, p.Deliver("123456789"), "sources resume after submit")
}

func TestCancelledPromptCreatesNoRecord(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	prompts, onPrompt := promptChannel()
	p := startPipeline(t, w, onPrompt)

	require.True(t, p.Deliver("1234567890"))
	waitPrompt(t, prompts)

	id, ok := p.PendingPrompt()
	assert.True(t, ok)
	assert.Equal(t, "1234567890", id)

	require.NoError(t, p.CancelPrompt())
	require.ErrorIs(t, p.CancelPrompt(), scan.ErrNoPrompt)

	p.Stop()
	assert.Empty(t, w.payloads())
}

func TestSettleWaitsForQueuedDetections(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	p := New(Config{}, w)
	require.NoError(t, p.Settle(t.Context()), "a stopped pipeline has nothing to settle")

	require.NoError(t, p.Start(t.Context()))
	defer p.Stop()

	require.True(t, p.Deliver("1234567890"))
	require.NoError(t, p.Settle(t.Context()))

	id, ok := p.PendingPrompt()
	assert.True(t, ok, "the prompt is open once the detection settled")
	assert.Equal(t, "1234567890", id)

	require.NoError(t, p.CancelPrompt())
	p.Stop()
	require.NoError(t, p.Settle(t.Context()))
}

func TestStopDiscardsOpenPrompt(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	prompts, onPrompt := promptChannel()
	p := startPipeline(t, w, onPrompt)

	require.True(t, p.Deliver("1234567890"))
	waitPrompt(t, prompts)

	p.Stop()
	assert.Equal(t, scan.PromptIdle, p.PromptState())
	assert.Equal(t, 1, w.waits, "stop waits for in-flight writes")
	assert.False(t, p.Deliver("1234567890"))
}

func TestSubmitManual(t *testing.T) {
	defer goleak.VerifyNone(t)

	w := newFakeWriter()
	p := New(Config{}, w)

	err := p.SubmitManual("12ab")
	require.ErrorIs(t, err, ErrInvalidManualID)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	require.NoError(t, p.SubmitManual(" 123456789 "))
	require.NoError(t, p.SubmitManual("123456789"), "manual entry bypasses the dedup gate")

	got := w.payloads()
	require.Len(t, got, 2)
	assert.Equal(t, scan.Numeric{ID: "123456789"}, got[0])

	lr, ok := p.LiveRead()
	require.True(t, ok)
	assert.Equal(t, decoder.SourceManual, lr.Source)
}

func TestMatrixDetectionsShareTheQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	frames := decoder.NewFrameBuffer()
	dec := decoder.MatrixDecoderFunc(func(image.Image) (string, bool, error) {
		return `{"id":"42","fn":"Kim","gr":"7"}`, true, nil
	})

	w := newFakeWriter()
	p := New(Config{PollInterval: 5 * time.Millisecond, RetryInterval: 5 * time.Millisecond}, w,
		WithMatrix(frames, dec), WithCamera(frames))
	require.NoError(t, p.Start(t.Context()))
	defer p.Stop()

	frames.Put(image.NewGray(image.Rect(0, 0, 4, 4)))
	got := w.next(t)
	assert.Equal(t, "Kim", got.Label())

	lr, ok := p.LiveRead()
	require.True(t, ok)
	assert.Equal(t, decoder.SourceMatrix, lr.Source)
}

func TestCameraFailureIsFatalToStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	frames := decoder.NewFrameBuffer()
	_ = frames.ReportFailure("permission denied")

	p := New(Config{}, newFakeWriter(), WithMatrix(frames, decoder.NewQRDecoder()), WithCamera(frames))
	err := p.Start(t.Context())
	require.ErrorIs(t, err, decoder.ErrCameraUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryCamera))
	assert.False(t, p.Running())
	p.Stop()
}

func TestStartStopLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	frames := decoder.NewFrameBuffer()
	p := New(Config{}, newFakeWriter(), WithMatrix(frames, decoder.NewQRDecoder()), WithCamera(frames))

	assert.False(t, p.Deliver("123456789"), "stopped pipelines drop input")

	require.NoError(t, p.Start(t.Context()))
	require.ErrorIs(t, p.Start(t.Context()), ErrAlreadyRunning)
	assert.True(t, p.Running())

	p.Stop()
	p.Stop()
	assert.False(t, p.Running())

	require.NoError(t, p.Start(t.Context()))
	p.Stop()
}

type recordingService struct {
	rows [][]string
}

func (s *recordingService) ListSpreadsheets(context.Context) ([]sheets.Spreadsheet, error) {
	return nil, nil
}

func (s *recordingService) ListTabs(context.Context, string) ([]sheets.Tab, error) {
	return nil, nil
}

func (s *recordingService) AppendRows(_ context.Context, _, _ string, rows [][]string) error {
	s.rows = append(s.rows, rows...)
	return nil
}
