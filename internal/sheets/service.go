// Package sheets writes scan rows to the selected remote spreadsheet.
package sheets

import (
	"context"
	"strings"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// Spreadsheet identifies one remote spreadsheet.
type Spreadsheet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tab is one sheet inside a spreadsheet.
type Tab struct {
	Title string `json:"title"`
}

// Service is the remote spreadsheet collaborator.
type Service interface {
	ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error)
	ListTabs(ctx context.Context, spreadsheetID string) ([]Tab, error)
	// AppendRows inserts rows after the last row of tabRange without overwriting.
	AppendRows(ctx context.Context, spreadsheetID, tabRange string, rows [][]string) error
}

// Target is the remote write destination.
type Target struct {
	SpreadsheetID   string `json:"spreadsheetId"`
	SpreadsheetName string `json:"spreadsheetName"`
	TabName         string `json:"tabName,omitempty"`
}

// Selected reports whether a spreadsheet is chosen.
func (t Target) Selected() bool {
	return t.SpreadsheetID != ""
}

// WriteRange returns "<tab>!A:E", using fallbackTab when no tab is selected.
func (t Target) WriteRange(fallbackTab string) string {
	tab := t.TabName
	if tab == "" {
		tab = fallbackTab
	}
	return RangeFor(tab)
}

// RangeFor returns the five-column append range for tab.
func RangeFor(tab string) string {
	return strings.TrimSpace(tab) + "!A:E"
}

var (
	ErrNoTargetSelected  = errors.NewStd("no spreadsheet selected")
	ErrRemoteWriteFailed = errors.NewStd("remote write failed")
	ErrEmptyBatch        = errors.NewStd("nothing to resync")
	ErrUnauthorized      = errors.NewStd("access token rejected")
)

// GetLogger returns the sheets module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("sheets")
}
