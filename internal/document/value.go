package document

import (
	"fmt"
	"math"
	"strconv"
)

// ValueKind is the type of an attribute value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
)

// Value is an attribute value: a string, a float64 number or a bool.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
}

// String creates a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number creates a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool creates a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the value type.
func (v Value) Kind() ValueKind { return v.kind }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Num returns the numeric payload.
func (v Value) Num() float64 { return v.num }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	}
	return true
}

// Text renders the value in the canonical textual form shared by every
// output format. Numbers use the shortest decimal that round-trips, never
// an exponent, and negative zero prints as 0.
func (v Value) Text() (string, error) {
	switch v.kind {
	case KindString:
		return v.str, nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindNumber:
		return FormatNumber(v.num)
	default:
		return "", fmt.Errorf("%w: empty value", ErrUnsupportedValue)
	}
}

// FormatNumber renders f as a plain decimal.
func FormatNumber(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrNonFiniteNumber, f)
	}
	if f == 0 {
		return "0", nil
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
