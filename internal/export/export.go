// Package export renders the scan history as downloadable JSON, CSV or XLSX documents.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/records"
)

// Format names an export sink.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet holding exported scans.
const SheetName = "Scans"

// DisplayLayout renders timestamps in CSV and XLSX exports.
const DisplayLayout = "1/2/2006, 3:04:05 PM"

var (
	ErrEmptyExport   = errors.NewStd("no scans to export")
	ErrUnknownFormat = errors.NewStd("unknown export format")
)

// Entry is one exported record.
type Entry struct {
	Label     string `json:"label"`
	Timestamp string `json:"timestamp"`
	Succeeded bool   `json:"succeeded"`
}

// Entries flattens recs, rendering timestamps with layout in loc.
func Entries(recs []records.Record, layout string, loc *time.Location) []Entry {
	if loc == nil {
		loc = time.Local
	}
	out := make([]Entry, len(recs))
	for i, r := range recs {
		out[i] = Entry{
			Label:     r.Label,
			Timestamp: r.Timestamp.In(loc).Format(layout),
			Succeeded: r.Succeeded,
		}
	}
	return out
}

// ParseFormat accepts json, csv and xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", errors.New(fmt.Errorf("%w: %q", ErrUnknownFormat, s)).
			Component("export").
			Category(errors.CategoryValidation).
			Build()
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Filename returns scans-<ISO timestamp>.<format>.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("scans-%s.%s", now.UTC().Format("2006-01-02T15:04:05.000Z"), f)
}

// Write renders recs in format f to w. Timestamps are shown in loc.
func Write(w io.Writer, f Format, recs []records.Record, loc *time.Location) error {
	if len(recs) == 0 {
		return errors.New(ErrEmptyExport).
			Component("export").
			Category(errors.CategoryExport).
			Build()
	}

	var err error
	switch f {
	case FormatJSON:
		err = writeJSON(w, recs, loc)
	case FormatCSV:
		err = writeCSV(w, recs, loc)
	case FormatXLSX:
		err = writeXLSX(w, recs, loc)
	default:
		_, err = ParseFormat(string(f))
		return err
	}
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("format", string(f)).
			Build()
	}
	return nil
}
