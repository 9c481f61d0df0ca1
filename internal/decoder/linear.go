package decoder

import (
	"strings"
	"sync"
	"time"
)

// LinearSource is the push side: every decoded linear symbol is handed to Deliver.
type LinearSource struct {
	mu     sync.Mutex
	sink   Sink
	now    func() time.Time
	paused bool
}

// NewLinearSource returns a source forwarding to sink.
func NewLinearSource(sink Sink) *LinearSource {
	return &LinearSource{sink: sink, now: time.Now}
}

// Deliver forwards text unless the source is paused. Blank text is ignored.
func (s *LinearSource) Deliver(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	paused := s.paused
	sink := s.sink
	s.mu.Unlock()

	if paused || sink == nil {
		return false
	}
	return sink(Detection{Source: SourceLinear, Raw: text, At: s.now()})
}

func (s *LinearSource) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

func (s *LinearSource) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// Paused reports whether deliveries are currently dropped.
func (s *LinearSource) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
