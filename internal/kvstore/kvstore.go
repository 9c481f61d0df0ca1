// Package kvstore persists small string values across sessions: the selected sheet target,
// the recent scan history and the access token.
package kvstore

import (
	"context"

	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// Keys shared by every component that persists state.
const (
	KeyRecentScans       = "recentScans"
	KeySelectedSheetID   = "selectedSheetId"
	KeySelectedSheetName = "selectedSheetName"
	KeySelectedSheetTab  = "selectedSheetTab"
	KeyAccessToken       = "googleAccessToken"
)

// Store is a string key-value store.
type Store interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// GetLogger returns the kvstore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("kvstore")
}
