package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyNumeric(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"123456789", "1234567890", " 987654321\n"} {
		p := Classify(raw)
		n, ok := p.(Numeric)
		require.True(t, ok, "raw %q", raw)
		assert.Equal(t, n.ID, n.Label())
		assert.True(t, p.Valid())
	}
}

func TestClassifyRejectsWrongLengthDigits(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"12345678", "12345678901", "12345678a", "", "١٢٣٤٥٦٧٨٩"} {
		p := Classify(raw)
		assert.Equal(t, KindUnrecognized, p.Kind(), "raw %q", raw)
		assert.Equal(t, raw, p.Label())
		assert.False(t, p.Valid())
	}
}

func TestClassifyStructuredShortKeys(t *testing.T) {
	t.Parallel()

	p := Classify(`{"id":"123","fn":"Ann","gr":"5"}`)
	s, ok := p.(Structured)
	require.True(t, ok)
	assert.Equal(t, "Ann", s.Label())
	assert.Equal(t, Fields{ID: "123", FirstName: "Ann", Grade: "5"}, s.Fields)
}

func TestClassifyStructuredVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		raw       string
		wantLabel string
		wantID    string
		wantGrade string
	}{
		{"long keys", `{"id":"42","firstName":"Mary","lastName":"Jane"}`, "Mary Jane", "42", ""},
		{"short key wins", `{"fn":"Ann","firstName":"Annabel"}`, "Ann", "", ""},
		{"numeric values", `{"id":123456789,"gr":10}`, `{"gr":10,"id":123456789}`, "123456789", "10"},
		{"whitespace collapsed", `{"fn":"  Jo  Ann ","ln":" Smith "}`, "Jo Ann Smith", "", ""},
		{"last name only", `{"ln":"Lee","id":"7"}`, "Lee", "7", ""},
		{"padded json", "  {\"id\":\"9\"}  ", `{"id":"9"}`, "9", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, ok := Classify(tt.raw).(Structured)
			require.True(t, ok)
			assert.Equal(t, tt.wantLabel, s.Label())
			assert.Equal(t, tt.wantID, s.Fields.ID)
			assert.Equal(t, tt.wantGrade, s.Fields.Grade)
		})
	}
}

func TestClassifyMalformedStructured(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`{"id":`, `{}`, `{"name":"x"}`, `["123456789"]`, `{"id":""}`, `{"id":true}`} {
		p := Classify(raw)
		assert.Equal(t, KindUnrecognized, p.Kind(), "raw %q", raw)
		assert.Equal(t, raw, p.Label())
	}
}

func TestClassifyNormalizesNames(t *testing.T) {
	t.Parallel()

	// decomposed "e" + combining acute accent
	s, ok := Classify(`{"fn":"Rene\u0301"}`).(Structured)
	require.True(t, ok)
	assert.Equal(t, "Ren\u00e9", s.Label())
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range []Payload{
		Numeric{ID: "123456789"},
		Classify(`{"id":"1","fn":"Ann","ln":"Lee","gr":"5"}`),
		Classify(`{"id":"55"}`),
		Unrecognized{Raw: "hello"},
	} {
		got := SnapshotOf(p).Payload()
		assert.Equal(t, p.Kind(), got.Kind())
		assert.Equal(t, p.Label(), got.Label())
	}
}
