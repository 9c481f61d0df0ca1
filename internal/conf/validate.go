// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) error{
		validateMainSettings,
		validateScannerSettings,
		validateRecordsSettings,
		validateSheetsSettings,
		validateStorageSettings,
		validateWebServerSettings,
		validateNotificationSettings,
		validateMQTTSettings,
		validateSentrySettings,
	} {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func joinErrors(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings errors: %v", section, errs)
}

func validateMainSettings(s *Settings) error {
	var errs []string
	if tz := s.Main.Timezone; tz != "" && tz != "Local" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Sprintf("invalid timezone %q", tz))
		}
	}
	return joinErrors("main", errs)
}

func validateScannerSettings(s *Settings) error {
	var errs []string
	sc := &s.Scanner
	if sc.DedupWindow < 0 {
		errs = append(errs, "dedup window must not be negative")
	}
	if sc.PollInterval <= 0 {
		errs = append(errs, "poll interval must be positive")
	}
	if sc.RetryInterval <= 0 {
		errs = append(errs, "retry interval must be positive")
	}
	if sc.QueueSize < 1 {
		errs = append(errs, "queue size must be at least 1")
	}
	if !sc.Linear && !sc.Matrix {
		errs = append(errs, "at least one of linear or matrix decoding must be enabled")
	}
	return joinErrors("scanner", errs)
}

func validateRecordsSettings(s *Settings) error {
	if s.Records.Capacity < 1 {
		return joinErrors("records", []string{"capacity must be at least 1"})
	}
	return nil
}

func validateSheetsSettings(s *Settings) error {
	var errs []string
	sh := &s.Sheets
	if strings.TrimSpace(sh.DefaultTab) == "" {
		errs = append(errs, "default tab must not be empty")
	}
	if strings.ContainsAny(sh.DefaultTab, "!") {
		errs = append(errs, "default tab must not contain '!'")
	}
	if sh.DateLayout == "" || sh.TimeLayout == "" {
		errs = append(errs, "date and time layouts must be set")
	}
	if sh.WriteRate <= 0 {
		errs = append(errs, "write rate must be positive")
	}
	if sh.WriteBurst < 1 {
		errs = append(errs, "write burst must be at least 1")
	}
	if sh.ListPageSize < 1 || sh.ListPageSize > 1000 {
		errs = append(errs, "list page size must be between 1 and 1000")
	}
	if sh.Endpoint != "" {
		if _, err := url.ParseRequestURI(sh.Endpoint); err != nil {
			errs = append(errs, fmt.Sprintf("invalid endpoint %q", sh.Endpoint))
		}
	}
	return joinErrors("sheets", errs)
}

func validateStorageSettings(s *Settings) error {
	var errs []string
	switch s.Storage.Type {
	case "memory":
	case "sqlite":
		if s.Storage.SQLite.Path == "" {
			errs = append(errs, "sqlite path must be set")
		}
	case "mysql":
		my := &s.Storage.MySQL
		if my.Host == "" || my.Database == "" {
			errs = append(errs, "mysql host and database must be set")
		}
		if _, err := strconv.Atoi(my.Port); err != nil {
			errs = append(errs, fmt.Sprintf("invalid mysql port %q", my.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown storage type %q", s.Storage.Type))
	}
	return joinErrors("storage", errs)
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		return joinErrors("webserver", []string{fmt.Sprintf("invalid port %q", s.WebServer.Port)})
	}
	return nil
}

func validateNotificationSettings(s *Settings) error {
	var errs []string
	if s.Notification.RecentLimit < 1 {
		errs = append(errs, "recent limit must be at least 1")
	}
	if s.Notification.Push.Enabled && len(s.Notification.Push.URLs) == 0 {
		errs = append(errs, "push enabled without any service URL")
	}
	return joinErrors("notification", errs)
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "broker must be set")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "topic must be set")
	}
	return joinErrors("mqtt", errs)
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return joinErrors("sentry", []string{"dsn must be set when enabled"})
	}
	return nil
}
