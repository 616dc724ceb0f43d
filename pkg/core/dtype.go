package core

import (
	"fmt"
	"math"
)

// DType is the data type a validator coerces its input to.
type DType int

const (
	// Any leaves values untouched.
	Any DType = iota
	Float
	Int
	String
)

func (d DType) String() string {
	switch d {
	case Float:
		return "float"
	case Int:
		return "int"
	case String:
		return "str"
	}
	return "any"
}

// Coerce converts v to the data type. Integers truncate toward zero.
func (d DType) Coerce(v any) (any, error) {
	switch d {
	case Any:
		return v, nil
	case String:
		if v == nil {
			return nil, fmt.Errorf("%w: unable to coerce <nil> as %s", ErrInvalidType, d)
		}
		return FormatValue(v), nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("%w: unable to coerce %v as %s", ErrInvalidType, v, d)
	}
	if d == Int {
		return int(math.Trunc(f)), nil
	}
	return f, nil
}
