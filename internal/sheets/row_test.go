package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scan"
)

func utcFormat() RowFormat {
	return RowFormat{DateLayout: DefaultDateLayout, TimeLayout: DefaultTimeLayout, Location: time.UTC}
}

func TestBuildRow(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)

	tests := []struct {
		name    string
		payload scan.Payload
		want    []string
	}{
		{
			name:    "structured first name only",
			payload: scan.Classify(`{"id":"123","fn":"Ann","gr":"5"}`),
			want:    []string{"Ann", "5", "123", "3/5/2024", "2:07:09 PM"},
		},
		{
			name:    "structured full name",
			payload: scan.NewStructured(scan.Fields{ID: "987654321", FirstName: "Sam", LastName: "Lee", Grade: "9"}),
			want:    []string{"Sam Lee", "9", "987654321", "3/5/2024", "2:07:09 PM"},
		},
		{
			name:    "numeric",
			payload: scan.Numeric{ID: "1234567890"},
			want:    []string{"", "", "1234567890", "3/5/2024", "2:07:09 PM"},
		},
		{
			name:    "unrecognized",
			payload: scan.Unrecognized{Raw: "ABC-1"},
			want:    []string{"ABC-1", "", "", "3/5/2024", "2:07:09 PM"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildRow(tt.payload, ts, utcFormat()))
		})
	}
}

func TestBuildRowUsesConfiguredZoneAndLayouts(t *testing.T) {
	t.Parallel()

	helsinki := time.FixedZone("EET", 2*60*60)
	ts := time.Date(2024, time.December, 31, 23, 30, 0, 0, time.UTC)
	f := RowFormat{DateLayout: "2006-01-02", TimeLayout: "15:04", Location: helsinki}

	row := BuildRow(scan.Numeric{ID: "123456789"}, ts, f)
	assert.Equal(t, []string{"", "", "123456789", "2025-01-01", "01:30"}, row)
}

func TestRecordRow(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC)

	withSnapshot := records.Record{
		Label:     "Ann",
		Timestamp: ts,
		Payload:   scan.SnapshotOf(scan.Classify(`{"id":"123","fn":"Ann","gr":"5"}`)),
	}
	assert.Equal(t, []string{"Ann", "5", "123", "3/5/2024", "9:00:00 AM"}, RecordRow(withSnapshot, utcFormat()))

	legacy := records.Record{Label: "Jo Park", Timestamp: ts}
	assert.Equal(t, []string{"Jo Park", "", "", "3/5/2024", "9:00:00 AM"}, RecordRow(legacy, utcFormat()))
}

func TestTargetWriteRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Sheet1!A:E", Target{SpreadsheetID: "x"}.WriteRange(DefaultTab))
	assert.Equal(t, "Roster!A:E", Target{SpreadsheetID: "x", TabName: "Roster"}.WriteRange(DefaultTab))
	assert.False(t, Target{}.Selected())
}
