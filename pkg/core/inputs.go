package core

import (
	"fmt"
	"math"
)

// Inputs gives an element function access to the values it may read: model
// inputs, outputs of earlier layers and retrieved reference keys.
//
// Reads record the first failure; Err reports it after the call so element
// functions can stay straight-line arithmetic.
type Inputs struct {
	element  string
	data     Params
	declared map[string]bool
	err      error
}

func newInputs(element string, data Params, declared map[string]bool) *Inputs {
	return &Inputs{element: element, data: data, declared: declared}
}

// Err returns the first failed read, if any.
func (in *Inputs) Err() error { return in.err }

func (in *Inputs) fail(err error) {
	if in.err == nil {
		in.err = err
	}
}

func (in *Inputs) lookup(key string) (any, bool) {
	if !in.declared[key] {
		in.fail(fmt.Errorf("%w: %s reads %q", ErrUndeclaredInput, in.element, key))
		return nil, false
	}
	v, ok := in.data[key]
	if !ok || v == nil {
		in.fail(fmt.Errorf("%w: %s needs %q", ErrMissingInput, in.element, key))
		return nil, false
	}
	return v, true
}

// Float reads a numeric value.
func (in *Inputs) Float(key string) float64 {
	v, ok := in.lookup(key)
	if !ok {
		return math.NaN()
	}
	f, ok := ToFloat(v)
	if !ok {
		in.fail(fmt.Errorf("%w: %s=%v must be numerical", ErrInvalidType, key, v))
		return math.NaN()
	}
	return f
}

// Int reads a numeric value truncated toward zero.
func (in *Inputs) Int(key string) int {
	f := in.Float(key)
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Trunc(f))
}

// String reads a value as text. Integral numbers read without decimals.
func (in *Inputs) String(key string) string {
	v, ok := in.lookup(key)
	if !ok {
		return ""
	}
	return FormatValue(v)
}

// Has reports whether an optional value is present. It may be called for any key.
func (in *Inputs) Has(key string) bool {
	return in.data.Present(key)
}

// FloatOr reads an optional numeric value, returning def when it is absent.
// It may be called for any key.
func (in *Inputs) FloatOr(key string, def float64) float64 {
	v, ok := in.data[key]
	if !ok || v == nil {
		return def
	}
	f, ok := ToFloat(v)
	if !ok {
		in.fail(fmt.Errorf("%w: %s=%v must be numerical", ErrInvalidType, key, v))
		return def
	}
	return f
}
