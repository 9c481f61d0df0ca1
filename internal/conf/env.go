// env.go - environment variable overrides for the ID scanner
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for one environment variable binding
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "IDSCANNER_DEBUG", validateEnvBool},
		{"main.timezone", "IDSCANNER_TIMEZONE", validateEnvTimezone},

		{"scanner.dedupwindow", "IDSCANNER_DEDUP_WINDOW", validateEnvDuration},
		{"scanner.pollinterval", "IDSCANNER_POLL_INTERVAL", validateEnvDuration},

		{"sheets.defaulttab", "IDSCANNER_DEFAULT_TAB", nil},
		{"sheets.endpoint", "IDSCANNER_SHEETS_ENDPOINT", nil},

		{"storage.type", "IDSCANNER_STORAGE", validateEnvStorageType},
		{"storage.sqlite.path", "IDSCANNER_SQLITE_PATH", nil},
		{"storage.mysql.host", "IDSCANNER_MYSQL_HOST", nil},
		{"storage.mysql.password", "IDSCANNER_MYSQL_PASSWORD", nil},

		{"webserver.port", "IDSCANNER_PORT", validateEnvPort},

		{"mqtt.broker", "IDSCANNER_MQTT_BROKER", nil},
		{"sentry.dsn", "IDSCANNER_SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every override and validates the values that are set.
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 3s or 300ms")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateEnvTimezone(value string) error {
	if value == "Local" {
		return nil
	}
	_, err := time.LoadLocation(value)
	return err
}

func validateEnvStorageType(value string) error {
	switch value {
	case "sqlite", "mysql", "memory":
		return nil
	}
	return fmt.Errorf("must be sqlite, mysql or memory")
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}
