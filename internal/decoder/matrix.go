package decoder

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// Poller timing defaults.
const (
	DefaultPollInterval  = 300 * time.Millisecond
	DefaultRetryInterval = 500 * time.Millisecond
)

// ErrPollerRunning is returned by Start on a running poller.
var ErrPollerRunning = errors.NewStd("matrix poller already running")

// DecodeObserver is told about every decode attempt.
type DecodeObserver interface {
	ObserveDecode(found bool, err error, elapsed time.Duration)
}

// MatrixPoller samples the frame source on a fixed tick and decodes matrix codes. Until the
// source is ready it re-checks on a retry timer instead of ticking.
type MatrixPoller struct {
	source   FrameSource
	decoder  MatrixDecoder
	sink     Sink
	interval time.Duration
	retry    time.Duration
	observer DecodeObserver
	log      logger.Logger

	mu      sync.Mutex
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
	lastSeq uint64
}

// PollerOption configures a MatrixPoller.
type PollerOption func(*MatrixPoller)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) PollerOption {
	return func(p *MatrixPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithRetryInterval overrides DefaultRetryInterval.
func WithRetryInterval(d time.Duration) PollerOption {
	return func(p *MatrixPoller) {
		if d > 0 {
			p.retry = d
		}
	}
}

// WithDecodeObserver registers an observer for decode attempts.
func WithDecodeObserver(o DecodeObserver) PollerOption {
	return func(p *MatrixPoller) { p.observer = o }
}

// NewMatrixPoller creates a stopped poller.
func NewMatrixPoller(source FrameSource, decoder MatrixDecoder, sink Sink, opts ...PollerOption) *MatrixPoller {
	p := &MatrixPoller{
		source:   source,
		decoder:  decoder,
		sink:     sink,
		interval: DefaultPollInterval,
		retry:    DefaultRetryInterval,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling goroutine. It ends when ctx is done or Stop is called.
func (p *MatrixPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrPollerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.lastSeq = 0

	go p.run(ctx, p.done)
	return nil
}

// Stop halts the tick and retry timers and waits for the goroutine to exit.
// Stop on a stopped poller is a no-op.
func (p *MatrixPoller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the polling goroutine is active.
func (p *MatrixPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *MatrixPoller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

func (p *MatrixPoller) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

func (p *MatrixPoller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if !p.waitReady(ctx) {
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// waitReady re-checks the source on the retry timer. It returns false when ctx ended first.
func (p *MatrixPoller) waitReady(ctx context.Context) bool {
	if p.source.Ready() {
		return true
	}

	timer := time.NewTimer(p.retry)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			if p.source.Ready() {
				return true
			}
			timer.Reset(p.retry)
		}
	}
}

func (p *MatrixPoller) tick() {
	p.mu.Lock()
	paused := p.paused
	lastSeq := p.lastSeq
	p.mu.Unlock()
	if paused {
		return
	}

	frame, ok := p.source.Latest()
	if !ok || frame.Seq == lastSeq {
		return
	}

	p.mu.Lock()
	p.lastSeq = frame.Seq
	p.mu.Unlock()

	start := time.Now()
	text, found, err := p.decode(frame)
	if p.observer != nil {
		p.observer.ObserveDecode(found, err, time.Since(start))
	}
	if err != nil {
		p.log.Debug("frame decode failed", logger.Int64("seq", int64(frame.Seq)), logger.Error(err))
		return
	}
	if !found {
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.sink(Detection{Source: SourceMatrix, Raw: text, At: time.Now()})
}

// decode never lets a decoder panic escape into the polling loop.
func (p *MatrixPoller) decode(frame Frame) (text string, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("decoder panic: %v", r).
				Component("decoder").
				Category(errors.CategoryDecoder).
				Build()
		}
	}()
	return p.decoder.Decode(frame.Image)
}
