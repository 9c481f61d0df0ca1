package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextDefaults(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "unknown", nilCtx.GetVersion())
	assert.Equal(t, "unknown", nilCtx.GetBuildDate())
	assert.Equal(t, "unknown", (&Context{}).GetVersion())

	c := &Context{Version: "v1.2.0", BuildDate: "2024-09-03"}
	assert.Equal(t, "v1.2.0", c.GetVersion())
	assert.Equal(t, "2024-09-03", c.GetBuildDate())
}
