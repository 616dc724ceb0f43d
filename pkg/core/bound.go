package core

import (
	"fmt"
	"math"
	"strings"
)

// Bound is one end of a Limits range: absent, constant, or computed from
// other inputs.
type Bound struct {
	set   bool
	value float64
	keys  []string
	fn    func(vals []float64) float64
}

// Const is a constant bound.
func Const(v float64) Bound {
	return Bound{set: true, value: v}
}

// KeyBound takes the bound from the value of another input.
func KeyBound(key string) Bound {
	return FuncBound(func(v []float64) float64 { return v[0] }, key)
}

// FuncBound computes the bound from the values of keys, passed in order.
func FuncBound(fn func(vals []float64) float64, keys ...string) Bound {
	return Bound{set: true, keys: keys, fn: fn}
}

// Keys lists the inputs the bound depends on.
func (b Bound) Keys() []string { return b.keys }

// IsConst reports whether the bound is a constant.
func (b Bound) IsConst() bool { return b.set && b.fn == nil }

// eval resolves the bound. Absent bounds resolve to missing, an infinity of the given sign.
func (b Bound) eval(p Params, missing float64) (float64, error) {
	if !b.set {
		return missing, nil
	}
	if b.fn == nil {
		return b.value, nil
	}
	vals := make([]float64, len(b.keys))
	for i, k := range b.keys {
		v, ok := p[k]
		if !ok || v == nil {
			return 0, fmt.Errorf("%w: functional limit needs %q", ErrMissingInput, k)
		}
		f, ok := ToFloat(v)
		if !ok {
			return 0, fmt.Errorf("%w: functional limit input %s=%v must be numerical", ErrInvalidType, k, v)
		}
		vals[i] = f
	}
	out := b.fn(vals)
	if math.IsNaN(out) {
		return 0, fmt.Errorf("%w: functional limit evaluated to NaN", ErrInvalidValue)
	}
	return out, nil
}

func (b Bound) String() string {
	switch {
	case !b.set:
		return "None"
	case b.fn == nil:
		return FormatValue(b.value)
	}
	return "function(" + strings.Join(b.keys, ", ") + ")"
}
