package core

import (
	"fmt"
	"strings"
)

// Closed selects which ends of a range are inclusive.
type Closed string

const (
	ClosedBoth    Closed = "both"
	ClosedNeither Closed = "neither"
	ClosedLeft    Closed = "left"
	ClosedRight   Closed = "right"
)

func (c Closed) valid() bool {
	switch c {
	case ClosedBoth, ClosedNeither, ClosedLeft, ClosedRight:
		return true
	}
	return false
}

func (c Closed) contains(x, lo, hi float64) bool {
	var left, right bool
	if c == ClosedLeft || c == ClosedBoth {
		left = x >= lo
	} else {
		left = x > lo
	}
	if c == ClosedRight || c == ClosedBoth {
		right = x <= hi
	} else {
		right = x < hi
	}
	return left && right
}

func (c Closed) brackets() (string, string) {
	lb, rb := "[", "]"
	if c == ClosedRight || c == ClosedNeither {
		lb = "("
	}
	if c == ClosedLeft || c == ClosedNeither {
		rb = ")"
	}
	return lb, rb
}

// Condition gates a validator on the value of another input.
type Condition interface {
	met(key string, p Params) (bool, error)
	describe(key string) string
}

// Range is met when the input lies within [Min, Max] (per Closed).
type Range struct {
	Min, Max float64
	// Closed defaults to both ends inclusive.
	Closed Closed
}

// Between is a closed range condition.
func Between(lo, hi float64) Range {
	return Range{Min: lo, Max: hi, Closed: ClosedBoth}
}

func (r Range) closed() Closed {
	if r.Closed == "" {
		return ClosedBoth
	}
	return r.Closed
}

func (r Range) met(key string, p Params) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: condition on %q", ErrMissingInput, key)
	}
	x, ok := ToFloat(v)
	if !ok {
		return false, fmt.Errorf("%w: condition value %s=%v must be numerical", ErrInvalidType, key, v)
	}
	return r.closed().contains(x, r.Min, r.Max), nil
}

func (r Range) describe(key string) string {
	lb, rb := r.closed().brackets()
	return fmt.Sprintf("%s: range=%s%s to %s%s", key, lb, FormatValue(r.Min), FormatValue(r.Max), rb)
}

type oneOf []any

// OneOf is met when the input equals one of values.
func OneOf(values ...any) Condition {
	return oneOf(values)
}

func (o oneOf) met(key string, p Params) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return false, fmt.Errorf("%w: condition on %q", ErrMissingInput, key)
	}
	for _, want := range o {
		if Equal(v, want) {
			return true, nil
		}
	}
	return false, nil
}

func (o oneOf) describe(key string) string {
	return fmt.Sprintf("%s: values={%s}", key, joinValues(o))
}

type nested struct {
	v Validator
}

// Satisfies is met when v validates the inputs without rejecting them.
func Satisfies(v Validator) Condition {
	return nested{v: v}
}

func (n nested) met(_ string, p Params) (bool, error) {
	_, err := n.v.Validate(p, PassConditions)
	if err == nil {
		return true, nil
	}
	if rejected(err) {
		return false, nil
	}
	return false, err
}

func (n nested) describe(string) string {
	return strings.ReplaceAll(n.v.Describe(nil), "\n", "\n  ")
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatValue(v)
	}
	return strings.Join(parts, ", ")
}
