// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	applyDefaults(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "idscanner")
	v.SetDefault("main.timezone", "Local")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/idscanner.log")
	v.SetDefault("logging.file_output.level", "info")

	v.SetDefault("scanner.dedupwindow", 3*time.Second)
	v.SetDefault("scanner.pollinterval", 300*time.Millisecond)
	v.SetDefault("scanner.retryinterval", 500*time.Millisecond)
	v.SetDefault("scanner.queuesize", 32)
	v.SetDefault("scanner.linear", true)
	v.SetDefault("scanner.matrix", true)
	v.SetDefault("scanner.stdin", true)

	v.SetDefault("records.capacity", 200)

	v.SetDefault("sheets.defaulttab", "Sheet1")
	v.SetDefault("sheets.datelayout", "1/2/2006")
	v.SetDefault("sheets.timelayout", "3:04:05 PM")
	v.SetDefault("sheets.writerate", 1.0)
	v.SetDefault("sheets.writeburst", 5)
	v.SetDefault("sheets.listcachettl", 5*time.Minute)
	v.SetDefault("sheets.listpagesize", 50)
	v.SetDefault("sheets.requesttimeout", 15*time.Second)
	v.SetDefault("sheets.endpoint", "")

	v.SetDefault("auth.revokeurl", "https://oauth2.googleapis.com/revoke")
	v.SetDefault("auth.probetimeout", 10*time.Second)

	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite.path", "idscanner.db")
	v.SetDefault("storage.mysql.host", "localhost")
	v.SetDefault("storage.mysql.port", "3306")
	v.SetDefault("storage.mysql.username", "")
	v.SetDefault("storage.mysql.password", "")
	v.SetDefault("storage.mysql.database", "idscanner")

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.host", "")
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.debug", false)

	v.SetDefault("notification.recentlimit", 50)
	v.SetDefault("notification.push.enabled", false)
	v.SetDefault("notification.push.urls", []string{})
	v.SetDefault("notification.push.timeout", 10*time.Second)
	v.SetDefault("notification.push.errors", true)
	v.SetDefault("notification.push.success", false)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "idscanner")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("export.directory", ".")
}

// DefaultSettings returns settings built from defaults alone, without reading any file.
func DefaultSettings() *Settings {
	v := viper.New()
	applyDefaults(v)

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return settings
}
