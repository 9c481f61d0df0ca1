package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
)

func TestInitSentryDisabled(t *testing.T) {
	t.Parallel()

	require.NoError(t, InitSentry(&conf.SentrySettings{}, "dev"))
	assert.Nil(t, errors.GetTelemetryReporter())
	Flush()
}

func TestInitSentryRequiresDSN(t *testing.T) {
	t.Parallel()

	err := InitSentry(&conf.SentrySettings{Enabled: true}, "dev")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		Message:    "append failed: Bearer ya29.secret",
		ServerName: "classroom-pc",
		User:       sentry.User{Email: "staff@example.com"},
		Contexts:   map[string]sentry.Context{"os": {"name": "linux"}, "app": {"v": "1"}},
		Extra:      map[string]any{"component": "sheets", "spreadsheet": "abc"},
		Tags:       map[string]string{"hostname": "classroom-pc", "category": "auth"},
		Exception:  []sentry.Exception{{Type: "Sheets Authorization Error", Value: "token=abc rejected"}},
	}

	got := applyPrivacyFilters(event)
	assert.Empty(t, got.ServerName)
	assert.True(t, got.User.IsEmpty())
	assert.NotContains(t, got.Contexts, "os")
	assert.Contains(t, got.Contexts, "app")
	assert.Equal(t, map[string]any{"component": "sheets"}, got.Extra)
	assert.Equal(t, map[string]string{"category": "auth"}, got.Tags)
	assert.NotContains(t, got.Message, "ya29.secret")
	assert.NotContains(t, got.Exception[0].Value, "abc")
}
