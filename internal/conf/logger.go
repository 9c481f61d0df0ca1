// Package conf provides configuration management for the ID scanner.
package conf

import "github.com/AMEND09/ID-Scanner/internal/logger"

// GetLogger returns the config package logger. It is fetched on each call so it picks up
// the central logger installed after package init.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
