package core

import (
	"fmt"
	"math/rand/v2"
	"slices"
)

// Values validates an input against a set of accepted values.
type Values struct {
	base
	values []any
}

// ValuesOption configures a Values validator.
type ValuesOption func(*Values)

// NewValues creates a set-based validator for key. Enforcement defaults to strict.
func NewValues(key string, values []any, opts ...ValuesOption) (*Values, error) {
	v := &Values{base: base{key: key, enforce: EnforceStrict, conditions: map[string]Condition{}}}
	for _, opt := range opts {
		opt(v)
	}
	switch v.enforce {
	case EnforceStrict, EnforceType, EnforceDefault, EnforceNone:
	default:
		return nil, fmt.Errorf("values validator for %q: enforce must be one of strict, type, default, none (got %q)", key, v.enforce)
	}
	for _, x := range values {
		c, err := v.dtype.Coerce(x)
		if err != nil {
			return nil, fmt.Errorf("values validator for %q: values must be of the required dtype (%s): %w", key, v.dtype, err)
		}
		if !slices.ContainsFunc(v.values, func(y any) bool { return Equal(c, y) }) {
			v.values = append(v.values, c)
		}
	}
	slices.SortFunc(v.values, compareValues)
	return v, nil
}

// ValuesDType coerces inputs to dtype.
func ValuesDType(d DType) ValuesOption {
	return func(v *Values) { v.dtype = d }
}

// ValuesDefault sets the value substituted under EnforceDefault.
func ValuesDefault(def any) ValuesOption {
	return func(v *Values) { v.def = def }
}

// ValuesEnforce sets the enforcement level.
func ValuesEnforce(e Enforce) ValuesOption {
	return func(v *Values) { v.enforce = e }
}

// ValuesWhen adds a condition on another input.
func ValuesWhen(key string, c Condition) ValuesOption {
	return func(v *Values) { v.conditions[key] = c }
}

// ValuesNotes attaches documentation notes.
func ValuesNotes(notes ...string) ValuesOption {
	return func(v *Values) { v.notes = append(v.notes, notes...) }
}

// Accepted returns the accepted values in sorted order.
func (v *Values) Accepted() []any {
	return slices.Clone(v.values)
}

func (v *Values) Kwargs() []string {
	keys := append([]string{v.key}, v.conditionKeys()...)
	slices.Sort(keys)
	return slices.Compact(keys)
}

func (v *Values) contains(x any) bool {
	return slices.ContainsFunc(v.values, func(y any) bool { return Equal(x, y) })
}

func (v *Values) Validate(p Params, mode ConditionMode) (Checked, error) {
	x, done, err := v.precheck(v.Kwargs(), p, mode)
	if err != nil || done {
		return Checked{Value: x}, err
	}
	if v.enforce == EnforceNone {
		return Checked{Value: x}, nil
	}
	c, err := v.dtype.Coerce(x)
	if err != nil {
		return Checked{}, fmt.Errorf("%s: %w", v.key, err)
	}
	switch v.enforce {
	case EnforceDefault:
		if !v.contains(c) {
			return Checked{Value: v.def}, nil
		}
	case EnforceStrict:
		if !v.contains(c) {
			return Checked{}, fmt.Errorf("%w: %s=%s must be one of {%s}", ErrInvalidValue, v.key, FormatValue(c), joinValues(v.values))
		}
	}
	return Checked{Value: c}, nil
}

func (v *Values) Random(rng *rand.Rand, p Params, mode ConditionMode) (any, error) {
	if len(v.values) == 0 {
		return nil, fmt.Errorf("%w: no values to draw from for %q", ErrInvalidValue, v.key)
	}
	trial := p.Clone()
	trial[v.key] = v.values[rng.IntN(len(v.values))]
	c, err := v.Validate(trial, mode)
	if err != nil {
		return nil, err
	}
	return c.Value, nil
}

func (v *Values) Describe(style func(string) string) string {
	line := fmt.Sprintf("- values={%s}", joinValues(v.values))
	if v.dtype != Any {
		line += ", dtype=" + v.dtype.String()
	}
	if v.def != nil {
		line += ", default=" + FormatValue(v.def)
	}
	line += ", enforce=" + string(v.enforce)
	texts := []string{styled(style, v.key), line}
	return joinLines(v.describeTail(texts))
}
