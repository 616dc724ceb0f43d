package core

import "errors"

// Common errors.
var (
	ErrModelLocked     = errors.New("model cannot be modified when locked")
	ErrElementNotFound = errors.New("element not found")
	ErrLayerNotFound   = errors.New("layer not found")
	ErrNoLayer         = errors.New("no layers in model, create one with AddLayer")
	ErrDuplicate       = errors.New("name already in use")

	// ErrValidation matches every input validation failure below.
	ErrValidation = errors.New("validation failed")

	ErrInvalidValue error = validationError("invalid value")
	ErrInvalidType  error = validationError("invalid type")
	ErrCondition    error = validationError("validator conditions not met")
	ErrMissingInput error = validationError("missing required input")

	ErrReference       = errors.New("invalid reference")
	ErrUndeclaredInput = errors.New("element read an undeclared input")
	ErrEvaluation      = errors.New("unable to evaluate element")
)

type validationError string

func (e validationError) Error() string { return string(e) }

func (e validationError) Is(target error) bool { return target == ErrValidation }
