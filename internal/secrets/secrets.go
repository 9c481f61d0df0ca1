// Package secrets resolves credential values in the configuration file. A value may be
// a literal, reference environment variables with ${VAR} or ${VAR:-default}, or point at
// a mounted secret file with a "file:" prefix.
package secrets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

const (
	// FilePrefix marks a value that names a secret file.
	FilePrefix = "file:"

	maxSecretFileSize = 64 * 1024
)

// GetLogger returns the secrets module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("secrets")
}

// ExpandString expands ${VAR} and ${VAR:-default} references. A referenced variable that
// is unset and has no default is an error.
func ExpandString(s string) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.Newf("missing required environment variable(s): %s", strings.Join(missing, ", ")).
			Component("secrets").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return expanded, nil
}

// ReadFile reads a secret file, trimming trailing newlines. Files readable by group or
// others are accepted with a warning.
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", configError("secret file path is empty", "")
	}
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", clean).
			Build()
	}
	if !info.Mode().IsRegular() {
		return "", configError("secret path is not a regular file", clean)
	}
	if info.Size() > maxSecretFileSize {
		return "", configError("secret file too large", clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		GetLogger().Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("perm", perm.String()))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", errors.New(err).
			Component("secrets").
			Category(errors.CategoryFileIO).
			Context("path", clean).
			Build()
	}

	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", configError("secret file is empty", clean)
	}
	return secret, nil
}

// Resolve returns the secret a configuration value refers to.
func Resolve(value string) (string, error) {
	if path, ok := strings.CutPrefix(value, FilePrefix); ok {
		return ReadFile(path)
	}
	return ExpandString(value)
}

// ResolveAll resolves every value in place and stops at the first failure. field names
// the setting in the error.
func ResolveAll(field string, values ...*string) error {
	for _, v := range values {
		if *v == "" {
			continue
		}
		resolved, err := Resolve(*v)
		if err != nil {
			return errors.New(err).
				Component("secrets").
				Category(errors.CategoryConfiguration).
				Context("field", field).
				Build()
		}
		*v = resolved
	}
	return nil
}

func configError(msg, path string) error {
	b := errors.Newf("%s", msg).
		Component("secrets").
		Category(errors.CategoryConfiguration)
	if path != "" {
		b = b.Context("path", path)
	}
	return b.Build()
}
