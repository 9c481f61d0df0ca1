package decoder

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type collector struct {
	mu   sync.Mutex
	got  []Detection
	seen chan struct{}
}

func newCollector() *collector {
	return &collector{seen: make(chan struct{}, 64)}
}

func (c *collector) sink(d Detection) bool {
	c.mu.Lock()
	c.got = append(c.got, d)
	c.mu.Unlock()
	select {
	case c.seen <- struct{}{}:
	default:
	}
	return true
}

func (c *collector) detections() []Detection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Detection(nil), c.got...)
}

func TestLinearSourceDeliver(t *testing.T) {
	t.Parallel()

	c := newCollector()
	src := NewLinearSource(c.sink)

	assert.True(t, src.Deliver("123456789"))
	assert.False(t, src.Deliver("   "), "blank text is ignored")

	src.Pause()
	assert.True(t, src.Paused())
	assert.False(t, src.Deliver("987654321"))

	src.Resume()
	assert.True(t, src.Deliver("987654321"))

	got := c.detections()
	if assert.Len(t, got, 2) {
		assert.Equal(t, SourceLinear, got[0].Source)
		assert.Equal(t, "123456789", got[0].Raw)
		assert.Equal(t, "987654321", got[1].Raw)
		assert.False(t, got[0].At.IsZero())
	}
}
