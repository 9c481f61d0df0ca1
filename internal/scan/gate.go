package scan

import (
	"sync"
	"time"
)

// DefaultDedupWindow is how long an identical label stays suppressed after acceptance.
const DefaultDedupWindow = 3 * time.Second

// Gate suppresses repeat detections of the same label. It is safe for concurrent use.
type Gate struct {
	mu             sync.Mutex
	window         time.Duration
	lastLabel      string
	lastAcceptedAt time.Time
	primed         bool
}

// NewGate returns a gate with the given window; a non-positive window uses DefaultDedupWindow.
func NewGate(window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Gate{window: window}
}

// Accept reports whether label observed at now passes the gate. Accepted labels become the
// new reference point; rejected ones leave state untouched.
func (g *Gate) Accept(label string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.primed && label == g.lastLabel && now.Sub(g.lastAcceptedAt) < g.window {
		return false
	}

	g.lastLabel = label
	g.lastAcceptedAt = now
	g.primed = true
	return true
}

// Reset forgets the last accepted label.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastLabel = ""
	g.lastAcceptedAt = time.Time{}
	g.primed = false
}

// Window returns the configured suppression window.
func (g *Gate) Window() time.Duration {
	return g.window
}
