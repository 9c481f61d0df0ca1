package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"negative dedup window", func(s *Settings) { s.Scanner.DedupWindow = -1 }, "dedup window"},
		{"no decoder enabled", func(s *Settings) { s.Scanner.Linear, s.Scanner.Matrix = false, false }, "at least one of linear or matrix"},
		{"zero capacity", func(s *Settings) { s.Records.Capacity = 0 }, "capacity"},
		{"empty default tab", func(s *Settings) { s.Sheets.DefaultTab = " " }, "default tab"},
		{"bang in tab", func(s *Settings) { s.Sheets.DefaultTab = "A!B" }, "'!'"},
		{"bad storage", func(s *Settings) { s.Storage.Type = "postgres" }, "unknown storage type"},
		{"mysql port", func(s *Settings) { s.Storage.Type = "mysql"; s.Storage.MySQL.Port = "x" }, "mysql port"},
		{"web port", func(s *Settings) { s.WebServer.Port = "70000" }, "invalid port"},
		{"push without urls", func(s *Settings) { s.Notification.Push.Enabled = true }, "without any service URL"},
		{"mqtt without topic", func(s *Settings) { s.MQTT.Enabled = true; s.MQTT.Topic = "" }, "topic"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "dsn"},
		{"bad timezone", func(s *Settings) { s.Main.Timezone = "Mars/Base" }, "timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := DefaultSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsCollectsAllErrors(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	s.Records.Capacity = 0
	s.Storage.Type = "none"

	var ve ValidationError
	require.ErrorAs(t, ValidateSettings(s), &ve)
	assert.Len(t, ve.Errors, 2)
}
