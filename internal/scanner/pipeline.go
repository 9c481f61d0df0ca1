// Package scanner runs the scan-to-record pipeline. Two producers, the linear push source
// and the matrix poller, feed one bounded ordered queue drained by a single goroutine that
// classifies, deduplicates, prompts for missing fields and hands payloads to the writer.
package scanner

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

const (
	defaultQueueSize   = 32
	settlePollInterval = 5 * time.Millisecond
)

var (
	ErrAlreadyRunning  = errors.NewStd("scanner already running")
	ErrInvalidManualID = errors.NewStd("manual ID must be 9 or 10 digits")
)

// Outcome of one detection, reported to the Observer.
const (
	OutcomeAccepted   = "accepted"
	OutcomeSuppressed = "suppressed"
	OutcomeInvalid    = "invalid"
	OutcomeIgnored    = "ignored"
	OutcomeDropped    = "dropped"
)

// Writer appends payloads remotely and records them.
type Writer interface {
	AppendSingleAsync(ctx context.Context, p scan.Payload, ts time.Time)
	Wait()
}

// Observer receives pipeline events for metrics.
type Observer interface {
	ObserveDetection(source decoder.Source, kind scan.Kind, outcome string)
	ObserveQueueDepth(depth int)
}

// LiveRead is the most recent classified detection, valid or not, accepted or suppressed.
type LiveRead struct {
	Source decoder.Source `json:"source"`
	Label  string         `json:"label"`
	Valid  bool           `json:"valid"`
	At     time.Time      `json:"at"`
}

// Config tunes the pipeline.
type Config struct {
	DedupWindow   time.Duration
	PollInterval  time.Duration
	RetryInterval time.Duration
	QueueSize     int
}

// ConfigFrom converts scanner settings.
func ConfigFrom(s *conf.ScannerSettings) Config {
	if s == nil {
		return Config{}
	}
	return Config{
		DedupWindow:   s.DedupWindow,
		PollInterval:  s.PollInterval,
		RetryInterval: s.RetryInterval,
		QueueSize:     s.QueueSize,
	}
}

// Pipeline owns the decode sources, the dedup gate and the prompt flow of one scanning
// session.
type Pipeline struct {
	cfg      Config
	writer   Writer
	gate     *scan.Gate
	prompt   *scan.PromptFlow
	linear   *decoder.LinearSource
	poller   *decoder.MatrixPoller
	camera   decoder.Camera
	observer Observer
	now      func() time.Time
	log      logger.Logger

	onPrompt   func(id string)
	onLiveRead func(LiveRead)

	live atomic.Pointer[LiveRead]

	// enqueued and handled count detections passing through the queue, for Settle.
	enqueued atomic.Uint64
	handled  atomic.Uint64

	mu       sync.RWMutex
	running  bool
	queue    chan decoder.Detection
	stopping chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	writeCtx context.Context
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMatrix enables the matrix poller over frames decoded by dec.
func WithMatrix(frames decoder.FrameSource, dec decoder.MatrixDecoder, opts ...decoder.PollerOption) Option {
	return func(p *Pipeline) {
		base := []decoder.PollerOption{
			decoder.WithPollInterval(p.cfg.PollInterval),
			decoder.WithRetryInterval(p.cfg.RetryInterval),
		}
		p.poller = decoder.NewMatrixPoller(frames, dec, p.enqueue, append(base, opts...)...)
	}
}

// WithCamera sets the camera acquired on Start and released on Stop.
func WithCamera(c decoder.Camera) Option {
	return func(p *Pipeline) { p.camera = c }
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithClock replaces time.Now for manual and prompted payload timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// OnPrompt is called from the pipeline goroutine when a bare ID opens the prompt.
func OnPrompt(fn func(id string)) Option {
	return func(p *Pipeline) { p.onPrompt = fn }
}

// OnLiveRead is called for every classified detection.
func OnLiveRead(fn func(LiveRead)) Option {
	return func(p *Pipeline) { p.onLiveRead = fn }
}

// New creates a stopped pipeline writing through w.
func New(cfg Config, w Writer, opts ...Option) *Pipeline {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	p := &Pipeline{
		cfg:      cfg,
		writer:   w,
		gate:     scan.NewGate(cfg.DedupWindow),
		now:      time.Now,
		log:      GetLogger(),
		writeCtx: context.Background(),
	}
	p.linear = decoder.NewLinearSource(p.enqueue)
	for _, opt := range opts {
		opt(p)
	}
	p.prompt = scan.NewPromptFlow(sources{p.linear, p.poller})
	return p
}

// GetLogger returns the scanner module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("scanner")
}

// Start acquires the camera, starts the poller and the pipeline goroutine. A camera that
// cannot be acquired fails Start and nothing is left running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	if p.poller != nil && p.camera != nil {
		if err := p.camera.Acquire(ctx); err != nil {
			p.log.Error("camera acquisition failed, scanning not started", logger.Error(err))
			if errors.IsCategory(err, errors.CategoryCamera) {
				return err
			}
			return errors.New(err).
				Component("scanner").
				Category(errors.CategoryCamera).
				Build()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.queue = make(chan decoder.Detection, p.cfg.QueueSize)
	p.stopping = make(chan struct{})
	p.done = make(chan struct{})
	p.cancel = cancel
	p.writeCtx = context.WithoutCancel(ctx)
	p.gate.Reset()
	p.handled.Store(p.enqueued.Load())
	p.linear.Resume()

	if p.poller != nil {
		p.poller.Resume()
		if err := p.poller.Start(runCtx); err != nil {
			cancel()
			if p.camera != nil {
				p.camera.Release()
			}
			return err
		}
	}

	go p.consume(runCtx, p.queue, p.done)
	p.running = true

	p.log.Info("scanner started",
		logger.Bool("matrix", p.poller != nil),
		logger.Duration("dedup_window", p.gate.Window()))
	return nil
}

// Stop halts both sources and the pipeline goroutine, discards an open prompt and waits for
// in-flight writes. Stop on a stopped pipeline is a no-op.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopping)
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if p.poller != nil {
		p.poller.Stop()
	}
	cancel()
	<-done

	if err := p.prompt.Cancel(); err == nil {
		p.log.Info("open prompt discarded on stop")
	}

	p.writer.Wait()
	if p.camera != nil {
		p.camera.Release()
	}
	p.log.Info("scanner stopped")
}

// Running reports whether the pipeline is started.
func (p *Pipeline) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Deliver pushes a linear decode. It reports false when the scanner is stopped, paused by
// a prompt, or text is blank.
func (p *Pipeline) Deliver(text string) bool {
	return p.linear.Deliver(text)
}

// SubmitManual logs a typed ID directly, bypassing the dedup gate and the prompt.
func (p *Pipeline) SubmitManual(id string) error {
	id = strings.TrimSpace(id)
	if !scan.IsNumericID(id) {
		return errors.New(ErrInvalidManualID).
			Component("scanner").
			Category(errors.CategoryValidation).
			Build()
	}

	payload := scan.Numeric{ID: id}
	now := p.now()
	p.publishLive(LiveRead{Source: decoder.SourceManual, Label: payload.Label(), Valid: true, At: now})
	p.observe(decoder.SourceManual, payload.Kind(), OutcomeAccepted)
	p.writer.AppendSingleAsync(p.currentWriteCtx(), payload, now)
	return nil
}

// SubmitPrompt completes the open prompt and writes the resulting payload.
func (p *Pipeline) SubmitPrompt(fullName, grade string) (scan.Structured, error) {
	payload, err := p.prompt.Submit(fullName, grade)
	if err != nil {
		return scan.Structured{}, err
	}
	p.writer.AppendSingleAsync(p.currentWriteCtx(), payload, p.now())
	return payload, nil
}

// Settle blocks until every detection queued before the call has been handled, the
// pipeline stops or ctx ends. Callers use it to see the prompt state a detection produced.
func (p *Pipeline) Settle(ctx context.Context) error {
	want := p.enqueued.Load()
	if p.handled.Load() >= want {
		return nil
	}

	p.mu.RLock()
	stopping := p.stopping
	p.mu.RUnlock()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopping:
			return nil
		case <-ticker.C:
			if p.handled.Load() >= want {
				return nil
			}
		}
	}
}

// CancelPrompt discards the open prompt's detection.
func (p *Pipeline) CancelPrompt() error {
	return p.prompt.Cancel()
}

// PendingPrompt returns the ID awaiting name and grade, if any.
func (p *Pipeline) PendingPrompt() (string, bool) {
	return p.prompt.Pending()
}

// PromptState returns the prompt flow state.
func (p *Pipeline) PromptState() scan.PromptState {
	return p.prompt.State()
}

// LiveRead returns the most recent detection.
func (p *Pipeline) LiveRead() (LiveRead, bool) {
	lr := p.live.Load()
	if lr == nil {
		return LiveRead{}, false
	}
	return *lr, true
}

func (p *Pipeline) currentWriteCtx() context.Context {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writeCtx
}

// enqueue is the sink of both producers. It blocks while the queue is full and gives up
// once the pipeline stops.
func (p *Pipeline) enqueue(d decoder.Detection) bool {
	p.mu.RLock()
	running, queue, stopping := p.running, p.queue, p.stopping
	p.mu.RUnlock()

	if !running {
		p.observe(d.Source, "", OutcomeDropped)
		return false
	}

	select {
	case queue <- d:
		p.enqueued.Add(1)
		if p.observer != nil {
			p.observer.ObserveQueueDepth(len(queue))
		}
		return true
	case <-stopping:
		p.observe(d.Source, "", OutcomeDropped)
		return false
	}
}

func (p *Pipeline) consume(ctx context.Context, queue <-chan decoder.Detection, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-queue:
			p.handle(d)
			p.handled.Add(1)
		}
	}
}

func (p *Pipeline) handle(d decoder.Detection) {
	payload := scan.Classify(d.Raw)
	label := payload.Label()

	p.publishLive(LiveRead{Source: d.Source, Label: label, Valid: payload.Valid(), At: d.At})

	if !payload.Valid() {
		p.log.Debug("unrecognized code", logger.String("source", string(d.Source)), logger.String("raw", d.Raw))
		p.observe(d.Source, payload.Kind(), OutcomeInvalid)
		return
	}

	// detections queued before the prompt paused the sources
	if p.prompt.State() != scan.PromptIdle {
		p.observe(d.Source, payload.Kind(), OutcomeIgnored)
		return
	}

	if !p.gate.Accept(label, d.At) {
		p.observe(d.Source, payload.Kind(), OutcomeSuppressed)
		return
	}
	p.observe(d.Source, payload.Kind(), OutcomeAccepted)

	switch v := payload.(type) {
	case scan.Structured:
		p.writer.AppendSingleAsync(p.currentWriteCtx(), v, d.At)
	case scan.Numeric:
		if err := p.prompt.Begin(v.ID); err != nil {
			p.log.Debug("prompt busy, detection ignored", logger.String("id", v.ID))
			return
		}
		if p.onPrompt != nil {
			p.onPrompt(v.ID)
		}
	}
}

func (p *Pipeline) publishLive(lr LiveRead) {
	p.live.Store(&lr)
	if p.onLiveRead != nil {
		p.onLiveRead(lr)
	}
}

func (p *Pipeline) observe(source decoder.Source, kind scan.Kind, outcome string) {
	if p.observer != nil {
		p.observer.ObserveDetection(source, kind, outcome)
	}
}

// sources pauses every configured decode source together.
type sources struct {
	linear *decoder.LinearSource
	poller *decoder.MatrixPoller
}

func (s sources) Pause() {
	s.linear.Pause()
	if s.poller != nil {
		s.poller.Pause()
	}
}

func (s sources) Resume() {
	s.linear.Resume()
	if s.poller != nil {
		s.poller.Resume()
	}
}
