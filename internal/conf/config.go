// config.go: settings struct for the ID scanner and the functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// MainSettings holds process-wide options.
type MainSettings struct {
	Name     string // instance name, used as MQTT client id prefix and push title
	Timezone string // zone used for row dates and times, "Local" or IANA name
}

// ScannerSettings tunes the decode pipeline.
type ScannerSettings struct {
	DedupWindow   time.Duration // identical labels inside this window are suppressed
	PollInterval  time.Duration // matrix poller tick
	RetryInterval time.Duration // wait before re-checking a frame source that is not ready
	QueueSize     int           // bounded input queue between producers and the pipeline
	Linear        bool          // accept linear (wedge / pushed) reads
	Matrix        bool          // poll uploaded camera frames for QR codes
	Stdin         bool          // read a keyboard-wedge scanner from stdin in "scan"
}

// RecordsSettings configures the local history.
type RecordsSettings struct {
	Capacity int // most recent records kept
}

// SheetsSettings configures the spreadsheet target and row formatting.
type SheetsSettings struct {
	DefaultTab     string        // tab used when a spreadsheet has none selected
	DateLayout     string        // Go layout for the date column
	TimeLayout     string        // Go layout for the time column
	WriteRate      float64       // sustained append calls per second
	WriteBurst     int           // append burst size
	ListCacheTTL   time.Duration // lifetime of spreadsheet and tab listings
	ListPageSize   int64         // spreadsheets returned by one listing
	RequestTimeout time.Duration // per remote call
	Endpoint       string        `yaml:",omitempty"` // API base override, empty uses Google
}

// AuthSettings configures token probing and revocation.
type AuthSettings struct {
	RevokeURL    string
	ProbeTimeout time.Duration
}

// SQLiteSettings for the embedded key-value store.
type SQLiteSettings struct {
	Path string
}

// MySQLSettings for a shared key-value store.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// StorageSettings selects the local persistence backend.
type StorageSettings struct {
	Type   string // sqlite, mysql or memory
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Host    string
	Port    string
	Debug   bool
}

// PushSettings configures shoutrrr push delivery.
type PushSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
	Errors  bool // push failed writes
	Success bool // push successful writes
}

// NotificationSettings configures in-app status messages.
type NotificationSettings struct {
	RecentLimit int
	Push        PushSettings
}

// MQTTSettings configures scan event publishing.
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	Topic    string
	Username string
	Password string
	Retain   bool
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// ExportSettings configures local export files.
type ExportSettings struct {
	Directory string
}

// Settings contains all configuration options for the ID scanner.
type Settings struct {
	Debug        bool
	Main         MainSettings
	Logging      logger.LoggingConfig
	Scanner      ScannerSettings
	Records      RecordsSettings
	Sheets       SheetsSettings
	Auth         AuthSettings
	Storage      StorageSettings
	WebServer    WebServerSettings
	Notification NotificationSettings
	MQTT         MQTTSettings
	Sentry       SentrySettings
	Export       ExportSettings
}

// Location resolves Main.Timezone, falling back to the local zone.
func (s *Settings) Location() *time.Location {
	switch s.Main.Timezone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings value
// and installs it as the current settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, fmt.Errorf("error resolving secrets: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// resolveSecrets expands environment references and secret files in credential fields.
func resolveSecrets(s *Settings) error {
	if err := secrets.ResolveAll("storage.mysql.password", &s.Storage.MySQL.Password); err != nil {
		return err
	}
	if err := secrets.ResolveAll("mqtt.password", &s.MQTT.Password); err != nil {
		return err
	}
	if err := secrets.ResolveAll("sentry.dsn", &s.Sentry.DSN); err != nil {
		return err
	}
	urls := make([]*string, len(s.Notification.Push.URLs))
	for i := range s.Notification.Push.URLs {
		urls[i] = &s.Notification.Push.URLs[i]
	}
	return secrets.ResolveAll("notification.push.urls", urls...)
}

// initViper registers defaults, config paths and env bindings, then reads the config file.
func initViper() error {
	viper.SetConfigType("yaml")

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName("config")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return fmt.Errorf("error getting default config paths: %w", err)
		}
		for _, path := range configPaths {
			viper.AddConfigPath(path)
		}
	}

	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		// bad env values are reported, the file and defaults still apply
		GetLogger().Warn("environment overrides ignored", logger.Error(err))
	}

	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded default config to the first config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings, loading them on first use.
// A load failure falls back to defaults so read-only commands keep working.
func Setting() *Settings {
	once.Do(func() {
		if GetSettings() != nil {
			return
		}
		if _, err := Load(); err != nil {
			GetLogger().Error("failed to load settings, using defaults", logger.Error(err))
			settingsMutex.Lock()
			settingsInstance = DefaultSettings()
			settingsMutex.Unlock()
		}
	})
	return GetSettings()
}

// SaveSettings writes the current settings back to the config file in use.
func SaveSettings() error {
	settingsMutex.RLock()
	settingsCopy := *settingsInstance
	settingsMutex.RUnlock()

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		var err error
		if configPath, err = FindConfigFile(); err != nil {
			return fmt.Errorf("error finding config file: %w", err)
		}
	}

	if err := SaveYAMLConfig(configPath, &settingsCopy); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}

	GetLogger().Info("settings saved", logger.String("path", configPath))
	return nil
}

// SaveYAMLConfig atomically replaces configPath with the YAML form of settings.
// Comments in the existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := moveFile(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
