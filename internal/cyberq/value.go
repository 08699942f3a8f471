package cyberq

import (
	"fmt"
	"strconv"
)

// Value is one decoded sensor reading.
//
// The underlying value is a bool (Boolean), int (Number), string (String,
// Timer, Enum label) or float64 (Temperature). A Temperature whose wire value
// was not numeric holds the raw string instead.
type Value struct {
	desc  Descriptor
	raw   string
	value any
	index int
}

// Name returns the canonical wire key
func (v Value) Name() string { return v.desc.Name }

// Kind returns the sensor kind
func (v Value) Kind() Kind { return v.desc.Kind }

// Descriptor returns a copy of the descriptor the value was decoded with
func (v Value) Descriptor() Descriptor { return v.desc.Clone() }

// Raw returns the wire string the value was decoded from
func (v Value) Raw() string { return v.raw }

// Value returns the decoded value
func (v Value) Value() any { return v.value }

// Float returns the numeric value of a Number or Temperature sensor.
// ok is false for other kinds and for temperatures the controller did not report as numbers.
func (v Value) Float() (float64, bool) {
	switch n := v.value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Bool returns the value of a Boolean sensor
func (v Value) Bool() (bool, bool) {
	b, ok := v.value.(bool)
	return b, ok
}

// Index returns the option index of an Enum sensor
func (v Value) Index() (int, bool) {
	if v.desc.Kind != KindEnum {
		return 0, false
	}
	return v.index, true
}

// Label returns the option label of an Enum sensor. ok is false when the
// controller reported the index one past the last option.
func (v Value) Label() (string, bool) {
	if v.desc.Kind != KindEnum || v.index >= len(v.desc.Values) {
		return "", false
	}
	return v.desc.Values[v.index], true
}

// Equal compares key, kind, decoded value and enum index
func (v Value) Equal(o Value) bool {
	return v.desc.Name == o.desc.Name &&
		v.desc.Kind == o.desc.Kind &&
		v.index == o.index &&
		v.value == o.value
}

func (v Value) String() string {
	switch n := v.value.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', 1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(n)
	}
}
