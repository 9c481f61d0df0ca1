package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

// DefaultTab is written to when no tab was selected.
const DefaultTab = "Sheet1"

// TargetProvider yields the current write destination.
type TargetProvider interface {
	Target() Target
}

// TargetFunc adapts a function to TargetProvider.
type TargetFunc func() Target

func (f TargetFunc) Target() Target { return f() }

// Notifier surfaces user-visible status messages.
type Notifier interface {
	Success(message string)
	Failure(message string, err error)
}

// WriteObserver receives the outcome of every remote write.
type WriteObserver interface {
	ObserveWrite(operation string, rows int, err error, elapsed time.Duration)
}

// Writer turns payloads into rows, appends them remotely and records every attempt.
type Writer struct {
	svc        Service
	target     TargetProvider
	store      *records.Store
	notifier   Notifier
	observer   WriteObserver
	limiter    *rate.Limiter
	format     RowFormat
	defaultTab string
	log        logger.Logger

	// asyncMu keeps inflight.Go from racing a pending inflight.Wait.
	asyncMu  sync.Mutex
	inflight sync.WaitGroup
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithNotifier sets the status message sink.
func WithNotifier(n Notifier) WriterOption {
	return func(w *Writer) { w.notifier = n }
}

// WithObserver sets the write outcome observer.
func WithObserver(o WriteObserver) WriterOption {
	return func(w *Writer) { w.observer = o }
}

// WithRateLimit limits remote writes to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) WriterOption {
	return func(w *Writer) {
		if perSecond <= 0 {
			w.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRowFormat overrides the date and time rendering.
func WithRowFormat(f RowFormat) WriterOption {
	return func(w *Writer) { w.format = f }
}

// WithDefaultTab overrides DefaultTab.
func WithDefaultTab(tab string) WriterOption {
	return func(w *Writer) {
		if tab != "" {
			w.defaultTab = tab
		}
	}
}

// NewWriter creates a writer appending through svc to the target's tab.
func NewWriter(svc Service, target TargetProvider, store *records.Store, opts ...WriterOption) *Writer {
	w := &Writer{
		svc:        svc,
		target:     target,
		store:      store,
		format:     DefaultRowFormat(),
		defaultTab: DefaultTab,
		log:        GetLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AppendSingle writes one row for p detected at ts. A record is created whether the write
// succeeds or not; the returned error describes a failed write.
func (w *Writer) AppendSingle(ctx context.Context, p scan.Payload, ts time.Time) (records.Record, error) {
	label := p.Label()
	snapshot := scan.SnapshotOf(p)
	target := w.target.Target()

	if !target.Selected() {
		rec := w.record(ctx, ts, label, false, snapshot)
		w.failure("No sheet selected", ErrNoTargetSelected)
		return rec, ErrNoTargetSelected
	}

	tabRange := target.WriteRange(w.defaultTab)
	row := BuildRow(p, ts, w.format)

	if err := w.write(ctx, "append_single", target.SpreadsheetID, tabRange, [][]string{row}); err != nil {
		rec := w.record(ctx, ts, label, false, snapshot)
		w.failure("Error logging to sheet", err)
		return rec, err
	}

	rec := w.record(ctx, ts, label, true, snapshot)
	w.success("✓ Logged: " + label)
	return rec, nil
}

// AppendSingleAsync runs AppendSingle on a tracked goroutine. Wait blocks until it finished.
// A call made while Wait is blocked starts once Wait has returned.
func (w *Writer) AppendSingleAsync(ctx context.Context, p scan.Payload, ts time.Time) {
	w.asyncMu.Lock()
	defer w.asyncMu.Unlock()
	w.inflight.Go(func() {
		if _, err := w.AppendSingle(ctx, p, ts); err != nil {
			w.log.Warn("scan write failed",
				logger.String("label", p.Label()),
				logger.Error(err))
		}
	})
}

// Wait blocks until every asynchronous write returned.
func (w *Writer) Wait() {
	w.asyncMu.Lock()
	defer w.asyncMu.Unlock()
	w.inflight.Wait()
}

// AppendBatch re-sends the whole record history in one append and marks every record as
// succeeded. Each call appends the full history again. On failure no record changes.
// tabOverride replaces the selected tab for this call when non-empty.
func (w *Writer) AppendBatch(ctx context.Context, tabOverride string) (int, error) {
	history := w.store.Snapshot()
	if len(history) == 0 {
		return 0, ErrEmptyBatch
	}

	target := w.target.Target()
	if !target.Selected() {
		w.failure("No Google Sheet selected. Please sign in and choose a sheet.", ErrNoTargetSelected)
		return 0, ErrNoTargetSelected
	}

	tabRange := target.WriteRange(w.defaultTab)
	if tabOverride != "" {
		tabRange = RangeFor(tabOverride)
	}

	rows := make([][]string, len(history))
	for i, rec := range history {
		rows[i] = RecordRow(rec, w.format)
	}

	if err := w.write(ctx, "append_batch", target.SpreadsheetID, tabRange, rows); err != nil {
		w.failure("Resync failed", err)
		return 0, err
	}

	if err := w.store.MarkAllSucceeded(ctx); err != nil {
		w.log.Warn("resync succeeded but history could not be persisted", logger.Error(err))
	}
	w.success(fmt.Sprintf("Resynced %d scans to %s", len(rows), tabRange))
	return len(rows), nil
}

func (w *Writer) write(ctx context.Context, operation, spreadsheetID, tabRange string, rows [][]string) error {
	start := time.Now()
	err := w.limit(ctx)
	if err == nil {
		err = w.svc.AppendRows(ctx, spreadsheetID, tabRange, rows)
	}
	elapsed := time.Since(start)

	if w.observer != nil {
		w.observer.ObserveWrite(operation, len(rows), err, elapsed)
	}
	if err == nil {
		return nil
	}

	category := errors.CategorySheetsRemote
	if IsUnauthorized(err) {
		category = errors.CategoryAuth
	}
	return errors.New(fmt.Errorf("%w: %w", ErrRemoteWriteFailed, err)).
		Component("sheets").
		Category(category).
		SheetContext(spreadsheetID, tabRange).
		Context("rows", len(rows)).
		Timing(operation, elapsed).
		Build()
}

func (w *Writer) limit(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	return w.limiter.Wait(ctx)
}

func (w *Writer) record(ctx context.Context, ts time.Time, label string, succeeded bool, snapshot *scan.Snapshot) records.Record {
	rec, err := w.store.AddAt(ctx, ts, label, succeeded, snapshot)
	if err != nil {
		w.log.Warn("scan recorded in memory only", logger.String("label", label), logger.Error(err))
	}
	return rec
}

func (w *Writer) success(msg string) {
	if w.notifier != nil {
		w.notifier.Success(msg)
	}
}

func (w *Writer) failure(msg string, err error) {
	if w.notifier != nil {
		w.notifier.Failure(msg, err)
	}
}
