package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
)

// Limits validates a numerical input against a range.
type Limits struct {
	base
	min, max Bound
	closed   Closed
	subtract []string
	add      []string
}

// LimitsOption configures a Limits validator.
type LimitsOption func(*Limits)

// NewLimits creates a range validator for key. The range is closed on both
// ends, values are coerced to float and enforcement is strict unless
// overridden.
func NewLimits(key string, lo, hi Bound, opts ...LimitsOption) (*Limits, error) {
	l := &Limits{
		base:   base{key: key, dtype: Float, enforce: EnforceStrict, conditions: map[string]Condition{}},
		min:    lo,
		max:    hi,
		closed: ClosedBoth,
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.closed.valid() {
		return nil, fmt.Errorf("limits validator for %q: closed must be one of both, neither, left, right (got %q)", key, l.closed)
	}
	switch l.enforce {
	case EnforceStrict, EnforceSnap, EnforceType, EnforceDefault, EnforceNone, EnforceWarn:
	default:
		return nil, fmt.Errorf("limits validator for %q: invalid enforcement %q", key, l.enforce)
	}
	if l.dtype == Any || l.dtype == String {
		return nil, fmt.Errorf("limits validator for %q: dtype must be numerical", key)
	}
	return l, nil
}

// NewRange is NewLimits with constant bounds.
func NewRange(key string, lo, hi float64, opts ...LimitsOption) (*Limits, error) {
	return NewLimits(key, Const(lo), Const(hi), opts...)
}

// LimitsDType coerces inputs to dtype (Float or Int).
func LimitsDType(d DType) LimitsOption {
	return func(l *Limits) { l.dtype = d }
}

// LimitsClosed selects the inclusive ends of the range.
func LimitsClosed(c Closed) LimitsOption {
	return func(l *Limits) { l.closed = c }
}

// LimitsDefault sets the value substituted under EnforceDefault.
func LimitsDefault(def any) LimitsOption {
	return func(l *Limits) { l.def = def }
}

// LimitsEnforce sets the enforcement level.
func LimitsEnforce(e Enforce) LimitsOption {
	return func(l *Limits) { l.enforce = e }
}

// LimitsSubtract subtracts the values of keys from the maximum.
func LimitsSubtract(keys ...string) LimitsOption {
	return func(l *Limits) { l.subtract = append(l.subtract, keys...) }
}

// LimitsAdd adds the values of keys to the minimum.
func LimitsAdd(keys ...string) LimitsOption {
	return func(l *Limits) { l.add = append(l.add, keys...) }
}

// LimitsWhen adds a condition on another input.
func LimitsWhen(key string, c Condition) LimitsOption {
	return func(l *Limits) { l.conditions[key] = c }
}

// LimitsNotes attaches documentation notes.
func LimitsNotes(notes ...string) LimitsOption {
	return func(l *Limits) { l.notes = append(l.notes, notes...) }
}

// Bounds returns the range ends.
func (l *Limits) Bounds() (Bound, Bound) { return l.min, l.max }

func (l *Limits) Kwargs() []string {
	keys := append([]string{l.key}, l.conditionKeys()...)
	keys = append(keys, l.min.Keys()...)
	keys = append(keys, l.max.Keys()...)
	keys = append(keys, l.subtract...)
	keys = append(keys, l.add...)
	slices.Sort(keys)
	return slices.Compact(keys)
}

// span resolves the effective range including add and subtract keys.
func (l *Limits) span(p Params) (lo, hi float64, err error) {
	if lo, err = l.min.eval(p, math.Inf(-1)); err != nil {
		return 0, 0, err
	}
	if hi, err = l.max.eval(p, math.Inf(1)); err != nil {
		return 0, 0, err
	}
	for _, k := range l.subtract {
		f, ok := ToFloat(p[k])
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q for limit of %q", ErrMissingInput, k, l.key)
		}
		hi -= f
	}
	for _, k := range l.add {
		f, ok := ToFloat(p[k])
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q for limit of %q", ErrMissingInput, k, l.key)
		}
		lo += f
	}
	return lo, hi, nil
}

func (l *Limits) Validate(p Params, mode ConditionMode) (Checked, error) {
	x, done, err := l.precheck(l.Kwargs(), p, mode)
	if err != nil || done {
		return Checked{Value: x}, err
	}
	if l.enforce == EnforceNone {
		return Checked{Value: x}, nil
	}
	c, err := l.dtype.Coerce(x)
	if err != nil {
		return Checked{}, fmt.Errorf("%s: %w", l.key, err)
	}
	if l.enforce == EnforceType {
		return Checked{Value: c}, nil
	}
	lo, hi, err := l.span(p)
	if err != nil {
		return Checked{}, err
	}
	f, _ := ToFloat(c)
	inside := l.closed.contains(f, lo, hi)
	switch l.enforce {
	case EnforceDefault:
		if !inside {
			return Checked{Value: l.def}, nil
		}
	case EnforceSnap:
		vmin, _ := l.min.eval(p, math.Inf(-1))
		vmax, _ := l.max.eval(p, math.Inf(1))
		snapped, err := l.dtype.Coerce(math.Min(math.Max(f, vmin), vmax))
		if err != nil {
			return Checked{}, err
		}
		return Checked{Value: snapped}, nil
	case EnforceStrict:
		if !inside {
			return Checked{}, fmt.Errorf("%w: %s=%s is outside the limits of the validator %s",
				ErrInvalidValue, l.key, FormatValue(c), l.notation(lo, hi))
		}
	case EnforceWarn:
		if !inside {
			return Checked{Value: c, Warning: fmt.Sprintf("%s=%s is outside the limits of the validator %s",
				l.key, FormatValue(c), l.notation(lo, hi))}, nil
		}
	}
	return Checked{Value: c}, nil
}

func (l *Limits) Random(rng *rand.Rand, p Params, mode ConditionMode) (any, error) {
	lo, hi, err := l.span(p)
	if err != nil {
		return nil, fmt.Errorf("unable to evaluate limits of %q: %w", l.key, err)
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi < lo {
		return nil, fmt.Errorf("%w: no finite range to draw %q from", ErrInvalidValue, l.key)
	}
	trial := p.Clone()
	trial[l.key] = lo + rng.Float64()*(hi-lo)
	c, err := l.Validate(trial, mode)
	if err != nil {
		return nil, err
	}
	return c.Value, nil
}

func (l *Limits) notation(lo, hi float64) string {
	lb, rb := l.closed.brackets()
	return fmt.Sprintf("%s%s to %s%s", lb, FormatValue(lo), FormatValue(hi), rb)
}

// RangeNotation renders the configured range, e.g. "[0 to 100]".
func (l *Limits) RangeNotation() string {
	lb, rb := l.closed.brackets()
	return fmt.Sprintf("%s%s to %s%s", lb, l.min, l.max, rb)
}

func (l *Limits) Describe(style func(string) string) string {
	line := fmt.Sprintf("- range=%s, dtype=%s, enforce=%s", l.RangeNotation(), l.dtype, l.enforce)
	var extra []string
	if len(l.subtract) > 0 {
		extra = append(extra, fmt.Sprintf("  - subtracting %s from vmax", strings.Join(l.subtract, ", ")))
	}
	if len(l.add) > 0 {
		extra = append(extra, fmt.Sprintf("  - adding %s to vmin", strings.Join(l.add, ", ")))
	}
	return joinLines(l.describeTail([]string{styled(style, l.key), line}, extra...))
}
