package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AMEND09/ID-Scanner/internal/errors"
)

func TestExpandString(t *testing.T) {
	t.Setenv("IDSCANNER_TEST_USER", "admin")
	t.Setenv("IDSCANNER_TEST_PASS", "s3cret")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "empty", input: "", want: ""},
		{name: "literal", input: "literal-value", want: "literal-value"},
		{name: "single variable", input: "${IDSCANNER_TEST_PASS}", want: "s3cret"},
		{name: "embedded variables", input: "${IDSCANNER_TEST_USER}:${IDSCANNER_TEST_PASS}", want: "admin:s3cret"},
		{name: "default unused", input: "${IDSCANNER_TEST_PASS:-fallback}", want: "s3cret"},
		{name: "default used", input: "${IDSCANNER_TEST_UNSET:-fallback}", want: "fallback"},
		{name: "empty default", input: "${IDSCANNER_TEST_UNSET:-}", want: ""},
		{name: "missing variable", input: "${IDSCANNER_TEST_UNSET}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "IDSCANNER_TEST_UNSET")
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	got, err := ReadFile(write("token", "  token  \n\n"))
	require.NoError(t, err)
	assert.Equal(t, "  token  ", got)

	_, err = ReadFile(write("empty", "\n"))
	require.Error(t, err)

	_, err = ReadFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))

	_, err = ReadFile(dir)
	require.Error(t, err)

	_, err = ReadFile("")
	require.Error(t, err)
}

func TestResolveAll(t *testing.T) {
	t.Setenv("IDSCANNER_TEST_DSN", "https://key@sentry.example/1")

	path := filepath.Join(t.TempDir(), "mqtt_password")
	require.NoError(t, os.WriteFile(path, []byte("broker-pass\n"), 0o400))

	dsn := "${IDSCANNER_TEST_DSN}"
	password := FilePrefix + path
	literal := "plain"
	empty := ""

	require.NoError(t, ResolveAll("test", &dsn, &password, &literal, &empty))
	assert.Equal(t, "https://key@sentry.example/1", dsn)
	assert.Equal(t, "broker-pass", password)
	assert.Equal(t, "plain", literal)
	assert.Empty(t, empty)

	bad := "${IDSCANNER_TEST_UNSET}"
	err := ResolveAll("mqtt.password", &bad)
	require.Error(t, err)
	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "mqtt.password", ee.GetContext()["field"])
	assert.Equal(t, "${IDSCANNER_TEST_UNSET}", bad)
}
