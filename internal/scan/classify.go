package scan

import (
	"regexp"
	"strings"

	"github.com/antonholmquist/jason"
)

var numericID = regexp.MustCompile(`^[0-9]{9,10}$`)

// fieldKeys lists the accepted keys per field; the short form wins when both are present.
var fieldKeys = struct {
	id, first, last, grade []string
}{
	id:    []string{"id"},
	first: []string{"fn", "firstName"},
	last:  []string{"ln", "lastName"},
	grade: []string{"gr", "grade"},
}

// IsNumericID reports whether s is exactly 9 or 10 ASCII digits.
func IsNumericID(s string) bool {
	return numericID.MatchString(s)
}

// Classify interprets raw decoded text. It is pure and never fails: text that looks like
// JSON but does not parse into an object with a known field is Unrecognized.
func Classify(raw string) Payload {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if s, ok := parseStructured(trimmed); ok {
			return s
		}
		return Unrecognized{Raw: raw}
	}

	if IsNumericID(trimmed) {
		return Numeric{ID: trimmed}
	}

	return Unrecognized{Raw: raw}
}

func parseStructured(text string) (Structured, bool) {
	obj, err := jason.NewObjectFromBytes([]byte(text))
	if err != nil {
		return Structured{}, false
	}

	fields := Fields{
		ID:        lookupField(obj, fieldKeys.id),
		FirstName: lookupField(obj, fieldKeys.first),
		LastName:  lookupField(obj, fieldKeys.last),
		Grade:     lookupField(obj, fieldKeys.grade),
	}
	if fields.Empty() {
		return Structured{}, false
	}

	s := NewStructured(fields)
	if b, err := obj.Marshal(); err == nil {
		s.canonical = string(b)
	}
	return s, true
}

// lookupField returns the first non-empty string or number under keys.
func lookupField(obj *jason.Object, keys []string) string {
	for _, key := range keys {
		v, err := obj.GetValue(key)
		if err != nil {
			continue
		}
		if s, err := v.String(); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		if n, err := v.Number(); err == nil {
			return n.String()
		}
	}
	return ""
}
