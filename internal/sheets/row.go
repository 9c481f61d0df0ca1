package sheets

import (
	"time"

	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

// Default layouts for the date and time columns.
const (
	DefaultDateLayout = "1/2/2006"
	DefaultTimeLayout = "3:04:05 PM"
)

// RowFormat controls how timestamps are rendered.
type RowFormat struct {
	DateLayout string
	TimeLayout string
	Location   *time.Location
}

// DefaultRowFormat renders US-style dates and 12 hour times in the local zone.
func DefaultRowFormat() RowFormat {
	return RowFormat{DateLayout: DefaultDateLayout, TimeLayout: DefaultTimeLayout, Location: time.Local}
}

func (f RowFormat) split(ts time.Time) (string, string) {
	loc := f.Location
	if loc == nil {
		loc = time.Local
	}
	dateLayout, timeLayout := f.DateLayout, f.TimeLayout
	if dateLayout == "" {
		dateLayout = DefaultDateLayout
	}
	if timeLayout == "" {
		timeLayout = DefaultTimeLayout
	}
	local := ts.In(loc)
	return local.Format(dateLayout), local.Format(timeLayout)
}

// BuildRow derives the five columns [fullName, grade, id, date, time] for p at ts.
func BuildRow(p scan.Payload, ts time.Time, f RowFormat) []string {
	date, clock := f.split(ts)

	switch v := p.(type) {
	case scan.Structured:
		return []string{v.FullName(), v.Fields.Grade, v.Fields.ID, date, clock}
	case scan.Numeric:
		return []string{"", "", v.ID, date, clock}
	default:
		return []string{p.Label(), "", "", date, clock}
	}
}

// RecordRow rebuilds the row for a stored record. Records without a payload snapshot
// are written with their label in the name column.
func RecordRow(r records.Record, f RowFormat) []string {
	if r.Payload != nil {
		return BuildRow(r.Payload.Payload(), r.Timestamp, f)
	}
	return BuildRow(scan.Unrecognized{Raw: r.Label}, r.Timestamp, f)
}
