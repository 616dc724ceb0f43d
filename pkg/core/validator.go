package core

import (
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
)

// ConditionMode controls how a validator reacts when its conditions are not met.
type ConditionMode int

const (
	// PassConditions ignores the validator and returns the input unchanged.
	PassConditions ConditionMode = iota
	// RaiseConditions fails with ErrCondition.
	RaiseConditions
)

// Enforce selects how a validator treats a value that does not validate.
type Enforce string

const (
	EnforceStrict  Enforce = "strict"
	EnforceSnap    Enforce = "snap"
	EnforceType    Enforce = "type"
	EnforceDefault Enforce = "default"
	EnforceNone    Enforce = "none"
	EnforceWarn    Enforce = "warn"
)

// Checked is the outcome of a successful validation.
type Checked struct {
	Value any
	// Warning is set when a warn-enforced validator let an invalid value through.
	Warning string
}

// Validator validates and coerces a single model input.
type Validator interface {
	// Key is the name of the validated input.
	Key() string
	// Kwargs lists every input needed to run the validator, its own key included.
	Kwargs() []string
	Validate(p Params, mode ConditionMode) (Checked, error)
	// Random draws a feasible value for Key given the other inputs in p.
	Random(rng *rand.Rand, p Params, mode ConditionMode) (any, error)
	// Describe documents the validator. style decorates the key, nil means plain.
	Describe(style func(string) string) string
}

// base carries the fields shared by Values and Limits.
type base struct {
	key        string
	dtype      DType
	def        any
	enforce    Enforce
	conditions map[string]Condition
	notes      []string
}

func (b *base) Key() string { return b.key }

func (b *base) conditionKeys() []string {
	keys := make([]string, 0, len(b.conditions))
	for k, c := range b.conditions {
		keys = append(keys, k)
		if n, ok := c.(nested); ok {
			keys = append(keys, n.v.Kwargs()...)
		}
	}
	return keys
}

func (b *base) sortedConditions() []string {
	return slices.Sorted(maps.Keys(b.conditions))
}

// requireKwargs reports the kwargs missing from p.
func requireKwargs(key string, needed []string, p Params) error {
	var missing []string
	for _, k := range needed {
		if !p.Present(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: validator for %q needs %s", ErrMissingInput, key, strings.Join(missing, ", "))
	}
	return nil
}

// conditionsMet evaluates every condition against p.
func (b *base) conditionsMet(p Params) (bool, error) {
	for _, k := range b.sortedConditions() {
		ok, err := b.conditions[k].met(k, p)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// precheck runs the steps common to every validator. done reports that the
// returned value is final.
func (b *base) precheck(kwargs []string, p Params, mode ConditionMode) (x any, done bool, err error) {
	x = p[b.key]
	others := slices.DeleteFunc(slices.Clone(kwargs), func(k string) bool { return k == b.key })
	if err := requireKwargs(b.key, others, p); err != nil {
		return nil, true, err
	}
	met, err := b.conditionsMet(p)
	if err != nil {
		return nil, true, err
	}
	if !met {
		if mode == RaiseConditions {
			return nil, true, fmt.Errorf("%w: %s", ErrCondition, b.key)
		}
		return x, true, nil
	}
	if x == nil {
		if b.enforce == EnforceDefault {
			return b.def, true, nil
		}
		return nil, true, nil
	}
	return x, false, nil
}

func (b *base) describeTail(texts []string, extra ...string) []string {
	for _, n := range b.notes {
		texts = append(texts, "  - "+n)
	}
	texts = append(texts, extra...)
	for _, k := range b.sortedConditions() {
		texts = append(texts, "  - where "+b.conditions[k].describe(k))
	}
	return texts
}

func styled(style func(string) string, s string) string {
	if style == nil {
		return s
	}
	return style(s)
}

// rejected reports whether err means "the value failed validation" rather
// than "validation could not run".
func rejected(err error) bool {
	return errors.Is(err, ErrInvalidValue) || errors.Is(err, ErrCondition) || errors.Is(err, ErrInvalidType)
}

func joinLines(texts []string) string {
	return strings.Join(texts, "\n")
}
