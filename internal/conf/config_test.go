package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper isolates tests that go through the global viper instance
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	s := DefaultSettings()
	s.Sheets.DefaultTab = "Attendance"
	s.Scanner.DedupWindow = 5 * time.Second
	s.Notification.Push.URLs = []string{"generic://example.com/hook"}

	require.NoError(t, SaveYAMLConfig(path, s))

	viper.Set("config", path)
	loaded, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Attendance", loaded.Sheets.DefaultTab)
	assert.Equal(t, 5*time.Second, loaded.Scanner.DedupWindow)
	assert.Equal(t, []string{"generic://example.com/hook"}, loaded.Notification.Push.URLs)
	assert.Same(t, loaded, GetSettings())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sheets:\n  defaulttab: FromFile\n"), 0o600))

	t.Setenv("IDSCANNER_DEFAULT_TAB", "FromEnv")
	t.Setenv("IDSCANNER_DEDUP_WINDOW", "1500ms")

	viper.Set("config", path)
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "FromEnv", s.Sheets.DefaultTab)
	assert.Equal(t, 1500*time.Millisecond, s.Scanner.DedupWindow)
	assert.Equal(t, 200, s.Records.Capacity)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("records:\n  capacity: 0\n"), 0o600))

	viper.Set("config", path)
	_, err := Load()

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	resetViper(t)

	t.Setenv("IDSCANNER_PORT", "abc")
	err := bindEnvVars()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDSCANNER_PORT")
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	secretPath := filepath.Join(dir, "mysql_password")
	require.NoError(t, os.WriteFile(secretPath, []byte("db-pass\n"), 0o400))

	path := filepath.Join(dir, "config.yaml")
	yaml := "mqtt:\n  password: ${IDSCANNER_TEST_MQTT_PASS}\n" +
		"storage:\n  mysql:\n    password: file:" + secretPath + "\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("IDSCANNER_TEST_MQTT_PASS", "broker-pass")

	viper.Set("config", path)
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "broker-pass", s.MQTT.Password)
	assert.Equal(t, "db-pass", s.Storage.MySQL.Password)
}
