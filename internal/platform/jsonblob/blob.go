// Package jsonblob models the optional JSON documents carried by telemetry records
// (payloads, parameters, client info, schemas, session properties, metric extras).
//
// A Blob is in exactly one of three states: absent, present (valid JSON), or invalid
// (bytes were supplied or read back but do not parse). Reads never fail on invalid content;
// the record is still returned and the blob reports itself as invalid.
package jsonblob

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// State is the parse state of a Blob.
type State uint8

const (
	Absent State = iota
	Present
	Invalid
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

var (
	// ErrAbsent is returned by Decode when the blob holds no document.
	ErrAbsent = errors.New("jsonblob: absent")
	// ErrUnparseable is returned when an invalid blob is decoded or written to storage.
	ErrUnparseable = errors.New("jsonblob: unparseable document")
)

// Blob is an optional JSON document. The zero value is absent.
type Blob struct {
	state State
	raw   []byte
}

// New classifies raw. Empty input and JSON null are absent.
func New(raw []byte) Blob {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Blob{}
	}
	if !json.Valid(trimmed) {
		return Blob{state: Invalid, raw: append([]byte(nil), raw...)}
	}
	return Blob{state: Present, raw: append([]byte(nil), trimmed...)}
}

// FromString is New for string input.
func FromString(s string) Blob {
	return New([]byte(s))
}

// FromValue marshals v and returns it as a present blob. A nil v yields an absent blob.
func FromValue(v any) (Blob, error) {
	if v == nil {
		return Blob{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Blob{}, err
	}
	return New(b), nil
}

// State returns the parse state.
func (b Blob) State() State { return b.state }

// IsAbsent reports whether no document is held.
func (b Blob) IsAbsent() bool { return b.state == Absent }

// IsPresent reports whether a valid document is held.
func (b Blob) IsPresent() bool { return b.state == Present }

// IsInvalid reports whether the held bytes do not parse.
func (b Blob) IsInvalid() bool { return b.state == Invalid }

// Bytes returns a copy of the document for present blobs, nil otherwise.
func (b Blob) Bytes() []byte {
	if b.state != Present {
		return nil
	}
	return append([]byte(nil), b.raw...)
}

// Raw returns the stored bytes regardless of state (nil when absent).
func (b Blob) Raw() []byte {
	return append([]byte(nil), b.raw...)
}

// Decode unmarshals the document into v.
func (b Blob) Decode(v any) error {
	switch b.state {
	case Absent:
		return ErrAbsent
	case Invalid:
		return ErrUnparseable
	}
	return json.Unmarshal(b.raw, v)
}

// Equal reports whether a and b hold structurally equal documents.
// Key order and whitespace are ignored; invalid blobs compare by raw bytes.
func (b Blob) Equal(o Blob) bool {
	if b.state != o.state {
		return false
	}
	switch b.state {
	case Absent:
		return true
	case Invalid:
		return bytes.Equal(b.raw, o.raw)
	}
	var x, y any
	if json.Unmarshal(b.raw, &x) != nil || json.Unmarshal(o.raw, &y) != nil {
		return false
	}
	return reflect.DeepEqual(x, y)
}

// MarshalJSON writes the document, or null when the blob is absent or invalid.
func (b Blob) MarshalJSON() ([]byte, error) {
	if b.state != Present {
		return []byte("null"), nil
	}
	return append([]byte(nil), b.raw...), nil
}

// UnmarshalJSON stores data as-is; it never fails.
func (b *Blob) UnmarshalJSON(data []byte) error {
	*b = New(data)
	return nil
}

// Value implements driver.Valuer. Absent blobs are stored as NULL; invalid blobs cannot be stored.
func (b Blob) Value() (driver.Value, error) {
	switch b.state {
	case Absent:
		return nil, nil
	case Invalid:
		return nil, ErrUnparseable
	}
	return string(b.raw), nil
}

// Scan implements sql.Scanner. Unparseable column content becomes an invalid blob, not an error.
func (b *Blob) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = Blob{}
	case []byte:
		*b = New(v)
	case string:
		*b = New([]byte(v))
	default:
		*b = Blob{state: Invalid, raw: []byte(fmt.Sprint(v))}
	}
	return nil
}
