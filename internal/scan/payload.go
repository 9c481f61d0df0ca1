// Package scan classifies decoded text into scan payloads and holds the two pieces of
// per-scanner state that sit in front of the record store: the dedup gate and the prompt flow.
package scan

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind identifies the payload variant.
type Kind string

const (
	KindNumeric      Kind = "numeric"
	KindStructured   Kind = "structured"
	KindUnrecognized Kind = "unrecognized"
)

// Payload is the classified form of one detection. Payloads are values and never mutated.
type Payload interface {
	Kind() Kind
	// Label is the text shown in the detection overlay and stored on the record.
	Label() string
	// Valid reports whether the payload may produce a record.
	Valid() bool
	isPayload()
}

// Numeric is a bare 9 or 10 digit identifier.
type Numeric struct {
	ID string
}

func (Numeric) Kind() Kind      { return KindNumeric }
func (n Numeric) Label() string { return n.ID }
func (Numeric) Valid() bool     { return true }
func (Numeric) isPayload()      {}

// Fields are the optional attributes carried by a structured code.
type Fields struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"fn,omitempty"`
	LastName  string `json:"ln,omitempty"`
	Grade     string `json:"gr,omitempty"`
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.ID == "" && f.FirstName == "" && f.LastName == "" && f.Grade == ""
}

// Structured is a code carrying id, name and grade fields.
type Structured struct {
	Fields Fields
	// canonical is the compact JSON of the decoded object, used as label when no name is present
	canonical string
}

// NewStructured builds a structured payload from fields entered outside a decoder.
func NewStructured(f Fields) Structured {
	f.FirstName = normalizeName(f.FirstName)
	f.LastName = normalizeName(f.LastName)
	f.ID = strings.TrimSpace(f.ID)
	f.Grade = strings.TrimSpace(f.Grade)

	b, _ := json.Marshal(f) // Fields has only string members
	return Structured{Fields: f, canonical: string(b)}
}

func (Structured) Kind() Kind  { return KindStructured }
func (Structured) Valid() bool { return true }
func (Structured) isPayload()  {}

// FullName joins first and last name with single spaces.
func (s Structured) FullName() string {
	return collapseSpaces(s.Fields.FirstName + " " + s.Fields.LastName)
}

// Label is the full name, or the canonical JSON when the code carries no name.
func (s Structured) Label() string {
	if name := s.FullName(); name != "" {
		return name
	}
	return s.canonical
}

// Canonical returns the compact JSON form of the decoded object.
func (s Structured) Canonical() string {
	return s.canonical
}

// Unrecognized is any text that is neither numeric nor structured.
type Unrecognized struct {
	Raw string
}

func (Unrecognized) Kind() Kind      { return KindUnrecognized }
func (u Unrecognized) Label() string { return u.Raw }
func (Unrecognized) Valid() bool     { return false }
func (Unrecognized) isPayload()      {}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeName(s string) string {
	return norm.NFC.String(collapseSpaces(s))
}

// Snapshot is the serializable form of a payload, stored with each record so a later
// resync rebuilds the same row.
type Snapshot struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Grade     string `json:"grade,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// SnapshotOf captures p.
func SnapshotOf(p Payload) *Snapshot {
	switch v := p.(type) {
	case Numeric:
		return &Snapshot{Kind: KindNumeric, ID: v.ID}
	case Structured:
		return &Snapshot{
			Kind:      KindStructured,
			ID:        v.Fields.ID,
			FirstName: v.Fields.FirstName,
			LastName:  v.Fields.LastName,
			Grade:     v.Fields.Grade,
			Raw:       v.canonical,
		}
	case Unrecognized:
		return &Snapshot{Kind: KindUnrecognized, Raw: v.Raw}
	default:
		return nil
	}
}

// Payload rebuilds the payload captured by the snapshot.
func (s *Snapshot) Payload() Payload {
	switch s.Kind {
	case KindNumeric:
		return Numeric{ID: s.ID}
	case KindStructured:
		st := NewStructured(Fields{ID: s.ID, FirstName: s.FirstName, LastName: s.LastName, Grade: s.Grade})
		if s.Raw != "" {
			st.canonical = s.Raw
		}
		return st
	default:
		return Unrecognized{Raw: s.Raw}
	}
}
