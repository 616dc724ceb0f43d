package core

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Params holds model inputs and evaluated values keyed by name.
// Numbers are float64 or int, categorical values are strings and nil marks a
// missing value.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return Params{}
	}
	return maps.Clone(p)
}

// Keys returns the sorted keys of p.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Merge returns a copy of p overlaid with every entry of others, in order.
func (p Params) Merge(others ...Params) Params {
	out := p.Clone()
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Present reports whether key holds a non-nil value.
func (p Params) Present(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

// ToFloat converts a numeric value (or a numeric string) to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case fmt.Stringer:
		return ToFloat(n.String())
	}
	return 0, false
}

// FormatValue renders a value the way reference levels and descriptions
// expect: integral floats drop their decimals so 4 and 4.0 both read "4".
func FormatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		return FormatValue(float64(n))
	}
	return fmt.Sprint(v)
}

// Equal compares two parameter values, numerically when both are numbers.
func Equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		return fa == fb
	}
	return FormatValue(a) == FormatValue(b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint64:
		return true
	}
	return false
}

// compareValues orders values numerically when possible, otherwise as text.
func compareValues(a, b any) int {
	if isNumber(a) && isNumber(b) {
		fa, _ := ToFloat(a)
		fb, _ := ToFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}
