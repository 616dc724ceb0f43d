package core

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesValidate(t *testing.T) {
	v, err := NewValues("factype", []any{"4st", "3st", "4sg", "3st"})
	require.NoError(t, err)
	assert.Equal(t, []any{"3st", "4sg", "4st"}, v.Accepted())

	c, err := v.Validate(Params{"factype": "3st"}, PassConditions)
	require.NoError(t, err)
	assert.Equal(t, "3st", c.Value)

	_, err = v.Validate(Params{"factype": "5st"}, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "must be one of {3st, 4sg, 4st}")
}

func TestValuesNumericEquality(t *testing.T) {
	v, err := NewValues("lighting", []any{0, 1})
	require.NoError(t, err)

	for _, in := range []any{1, 1.0, "1"} {
		_, err := v.Validate(Params{"lighting": in}, PassConditions)
		assert.NoError(t, err, "input %#v", in)
	}
}

func TestValuesEnforce(t *testing.T) {
	tests := []struct {
		name    string
		opts    []ValuesOption
		in      any
		want    any
		wantErr error
	}{
		{"default substitutes", []ValuesOption{ValuesEnforce(EnforceDefault), ValuesDefault(2)}, 7, 2, nil},
		{"default on nil", []ValuesOption{ValuesEnforce(EnforceDefault), ValuesDefault(2)}, nil, 2, nil},
		{"type coerces only", []ValuesOption{ValuesEnforce(EnforceType), ValuesDType(Int)}, "7.9", 7, nil},
		{"none passes through", []ValuesOption{ValuesEnforce(EnforceNone)}, "x", "x", nil},
		{"strict coerces", []ValuesOption{ValuesDType(Int)}, 2.0, 2, nil},
		{"strict rejects", []ValuesOption{ValuesDType(Int)}, 9, nil, ErrInvalidValue},
		{"bad type", []ValuesOption{ValuesDType(Int)}, "abc", nil, ErrInvalidType},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewValues("rhr", []any{1, 2, 3}, tc.opts...)
			require.NoError(t, err)
			c, err := v.Validate(Params{"rhr": tc.in}, PassConditions)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Value)
		})
	}
}

func TestValuesRejectsSnap(t *testing.T) {
	_, err := NewValues("x", []any{1}, ValuesEnforce(EnforceSnap))
	assert.Error(t, err)
}

func TestLimitsEnforce(t *testing.T) {
	tests := []struct {
		name    string
		opts    []LimitsOption
		in      any
		want    any
		warn    bool
		wantErr error
	}{
		{"inside", nil, 5, 5.0, false, nil},
		{"strict rejects", nil, 11, nil, false, ErrInvalidValue},
		{"snap high", []LimitsOption{LimitsEnforce(EnforceSnap)}, 11, 10.0, false, nil},
		{"snap low", []LimitsOption{LimitsEnforce(EnforceSnap)}, -3, 0.0, false, nil},
		{"default", []LimitsOption{LimitsEnforce(EnforceDefault), LimitsDefault(1.0)}, 12, 1.0, false, nil},
		{"warn keeps value", []LimitsOption{LimitsEnforce(EnforceWarn)}, 12, 12.0, true, nil},
		{"type", []LimitsOption{LimitsEnforce(EnforceType), LimitsDType(Int)}, 12.7, 12, false, nil},
		{"none", []LimitsOption{LimitsEnforce(EnforceNone)}, "12", "12", false, nil},
		{"open right", []LimitsOption{LimitsClosed(ClosedLeft)}, 10, nil, false, ErrInvalidValue},
		{"int dtype", []LimitsOption{LimitsDType(Int)}, 3.9, 3, false, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewRange("skew", 0, 10, tc.opts...)
			require.NoError(t, err)
			c, err := l.Validate(Params{"skew": tc.in}, PassConditions)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Value)
			assert.Equal(t, tc.warn, c.Warning != "")
		})
	}
}

func TestLimitsFunctionalBound(t *testing.T) {
	l, err := NewLimits("curve_length", Const(0), KeyBound("length"))
	require.NoError(t, err)
	assert.Equal(t, []string{"curve_length", "length"}, l.Kwargs())

	_, err = l.Validate(Params{"curve_length": 0.5, "length": 1.0}, PassConditions)
	assert.NoError(t, err)

	_, err = l.Validate(Params{"curve_length": 1.5, "length": 1.0}, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = l.Validate(Params{"curve_length": 0.5}, PassConditions)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestLimitsSubtractAdd(t *testing.T) {
	l, err := NewRange("lanes_left", 0, 4, LimitsSubtract("lanes_right"), LimitsAdd("lanes_min"))
	require.NoError(t, err)

	p := Params{"lanes_left": 3, "lanes_right": 2, "lanes_min": 0}
	_, err = l.Validate(p, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)

	p["lanes_right"] = 1
	_, err = l.Validate(p, PassConditions)
	assert.NoError(t, err)

	p["lanes_min"] = 3.5
	_, err = l.Validate(p, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)

	rng := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		x, err := l.Random(rng, Params{"lanes_right": 1, "lanes_min": 1}, RaiseConditions)
		require.NoError(t, err)
		f, _ := ToFloat(x)
		assert.GreaterOrEqual(t, f, 1.0)
		assert.LessOrEqual(t, f, 3.0)
	}
}

func TestConditions(t *testing.T) {
	l, err := NewRange("aadt_maj", 1, 19500, LimitsWhen("factype", OneOf("3st")))
	require.NoError(t, err)

	// Unmet conditions pass the value through untouched.
	c, err := l.Validate(Params{"aadt_maj": 50000, "factype": "4st"}, PassConditions)
	require.NoError(t, err)
	assert.Equal(t, 50000, c.Value)

	_, err = l.Validate(Params{"aadt_maj": 50000, "factype": "4st"}, RaiseConditions)
	assert.ErrorIs(t, err, ErrCondition)

	_, err = l.Validate(Params{"aadt_maj": 50000, "factype": "3st"}, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = l.Validate(Params{"aadt_maj": 5000}, PassConditions)
	assert.ErrorIs(t, err, ErrMissingInput)
}

func TestRangeAndNestedConditions(t *testing.T) {
	inner, err := NewRange("speed", 0, 30)
	require.NoError(t, err)
	v, err := NewValues("ped_vol", []any{"low", "high"},
		ValuesWhen("speed", Satisfies(inner)),
		ValuesWhen("lanes", Range{Min: 2, Max: 4, Closed: ClosedNeither}),
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"lanes", "ped_vol", "speed"}, v.Kwargs())

	_, err = v.Validate(Params{"ped_vol": "bad", "speed": 25, "lanes": 3}, PassConditions)
	assert.ErrorIs(t, err, ErrInvalidValue)

	// lanes=4 is outside the open range, so the validator is skipped.
	_, err = v.Validate(Params{"ped_vol": "bad", "speed": 25, "lanes": 4}, PassConditions)
	assert.NoError(t, err)

	_, err = v.Validate(Params{"ped_vol": "bad", "speed": 45, "lanes": 3}, PassConditions)
	assert.NoError(t, err)
}

func TestValuesRandom(t *testing.T) {
	v, err := NewValues("rhr", []any{1, 2, 3, 4, 5, 6, 7}, ValuesDType(Int))
	require.NoError(t, err)
	rng := rand.New(rand.NewPCG(7, 7))
	seen := map[any]bool{}
	for range 200 {
		x, err := v.Random(rng, Params{}, RaiseConditions)
		require.NoError(t, err)
		seen[x] = true
	}
	assert.Len(t, seen, 7)
}

func TestLimitsRandomNeedsFiniteRange(t *testing.T) {
	l, err := NewLimits("x", Const(0), Bound{})
	require.NoError(t, err)
	_, err = l.Random(rand.New(rand.NewPCG(1, 1)), Params{}, RaiseConditions)
	assert.True(t, errors.Is(err, ErrInvalidValue))
}

func TestDescribe(t *testing.T) {
	l, err := NewLimits("curve_length", Const(0), KeyBound("length"),
		LimitsNotes("Length of the horizontal curve in miles"),
		LimitsWhen("factype", OneOf("3st", "4st")),
		LimitsSubtract("tangent"))
	require.NoError(t, err)

	text := l.Describe(strings.ToUpper)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "CURVE_LENGTH", lines[0])
	assert.Equal(t, "- range=[0 to function(length)], dtype=float, enforce=strict", lines[1])
	assert.Equal(t, "  - Length of the horizontal curve in miles", lines[2])
	assert.Equal(t, "  - subtracting tangent from vmax", lines[3])
	assert.Equal(t, "  - where factype: values={3st, 4st}", lines[4])

	v, err := NewValues("lighting", []any{0, 1}, ValuesNotes("0: not present; 1: present"))
	require.NoError(t, err)
	assert.Equal(t, "lighting\n- values={0, 1}, enforce=strict\n  - 0: not present; 1: present", v.Describe(nil))
}
