package core

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
)

// Kind classifies model elements.
type Kind int

const (
	// SPF is a safety performance function.
	SPF Kind = iota
	// CF is a calibration factor.
	CF
	// AF is an adjustment factor (CMF).
	AF
	// Sub is an intermediate value reported in predictions.
	Sub
	// Hidden is an intermediate value left out of predictions.
	Hidden
	// Result is a crash frequency carrying a composition.
	Result
)

func (k Kind) String() string {
	switch k {
	case SPF:
		return "spf"
	case CF:
		return "cf"
	case AF:
		return "af"
	case Sub:
		return "sub"
	case Hidden:
		return "hidden"
	case Result:
		return "result"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ElementSpec describes an element to add to a model.
type ElementSpec struct {
	// Name of the element. With ExplodeRefs each copy gets a suffix.
	Name string
	// Inputs lists the model inputs and earlier element outputs the function reads.
	Inputs []string
	// Func computes a numeric value. Exactly one of Func and Label is set.
	Func func(in *Inputs) (float64, error)
	// Label computes a categorical value.
	Label func(in *Inputs) (string, error)
	Refs  []RefQuery
	// ExplodeRefs builds one element per combination of multi-valued reference levels.
	ExplodeRefs bool
	// Limits and Values are checked against the inputs on every call.
	Limits map[string][2]float64
	Values map[string][]any
	// Comp is the composition of a result, e.g. severity and crash type.
	Comp map[string]string
	// Layer names the target layer. Empty means the current layer.
	Layer string
	Doc   string
}

// Element is a function of model inputs added to a layer.
type Element struct {
	name   string
	base   string
	kind   Kind
	layer  string
	inputs []string
	fn     func(in *Inputs) (float64, error)
	label  func(in *Inputs) (string, error)
	refs   []boundRef
	limits map[string][2]float64
	values map[string][]any
	comp   map[string]string
	doc    string

	declared map[string]bool
}

func (e *Element) Name() string { return e.name }

// BaseName is the name before any reference suffix.
func (e *Element) BaseName() string { return e.base }

func (e *Element) Kind() Kind { return e.kind }

func (e *Element) Layer() string { return e.layer }

// Doc is the element's documentation, usually the HSM equation or table it follows.
func (e *Element) Doc() string { return e.doc }

// Categorical reports whether the element yields labels instead of numbers.
func (e *Element) Categorical() bool { return e.label != nil }

// Inputs lists what the element needs, including reference levels left open.
func (e *Element) Inputs() []string { return slices.Clone(e.inputs) }

// Comp returns the composition of the element's value.
func (e *Element) Comp() map[string]string { return maps.Clone(e.comp) }

// RefNames lists the references the element queries.
func (e *Element) RefNames() []string {
	names := make([]string, len(e.refs))
	for i, r := range e.refs {
		names[i] = r.ref.name
	}
	return names
}

// refKeys lists the keys the element's references provide.
func (e *Element) refKeys() []string {
	var keys []string
	for _, r := range e.refs {
		keys = append(keys, r.ref.keys...)
	}
	return keys
}

func newElement(spec ElementSpec, kind Kind, layer string, suffix string, refs []boundRef) (*Element, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("element name is required")
	}
	if (spec.Func == nil) == (spec.Label == nil) {
		return nil, fmt.Errorf("element %s must define exactly one of Func and Label", spec.Name)
	}
	e := &Element{
		name:   spec.Name + suffix,
		base:   spec.Name,
		kind:   kind,
		layer:  layer,
		fn:     spec.Func,
		label:  spec.Label,
		refs:   refs,
		limits: maps.Clone(spec.Limits),
		values: maps.Clone(spec.Values),
		comp:   maps.Clone(spec.Comp),
		doc:    spec.Doc,
	}
	inputs := slices.Clone(spec.Inputs)
	for _, r := range refs {
		inputs = append(inputs, r.open()...)
	}
	slices.Sort(inputs)
	e.inputs = slices.Compact(inputs)

	e.declared = make(map[string]bool, len(e.inputs))
	for _, k := range e.inputs {
		e.declared[k] = true
	}
	for _, k := range e.refKeys() {
		e.declared[k] = true
	}
	return e, nil
}

// check enforces the element's own limits and values on present inputs.
func (e *Element) check(p Params) error {
	for _, k := range slices.Sorted(maps.Keys(e.limits)) {
		if !p.Present(k) {
			continue
		}
		lim := e.limits[k]
		f, ok := ToFloat(p[k])
		if !ok {
			return fmt.Errorf("%w: %s=%v must be numerical", ErrInvalidType, k, p[k])
		}
		if f < lim[0] || f > lim[1] {
			return fmt.Errorf("%w: %s=%s outside limits of %s [%s to %s]",
				ErrInvalidValue, k, FormatValue(f), e.name, FormatValue(lim[0]), FormatValue(lim[1]))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(e.values)) {
		if !p.Present(k) {
			continue
		}
		if !slices.ContainsFunc(e.values[k], func(v any) bool { return Equal(p[k], v) }) {
			return fmt.Errorf("%w: %s=%s is invalid for %s; must be one of %s",
				ErrInvalidValue, k, FormatValue(p[k]), e.name, joinValues(e.values[k]))
		}
	}
	return nil
}

// eval computes the element from the values of earlier layers.
func (e *Element) eval(p Params) (any, error) {
	if err := e.check(p); err != nil {
		return nil, err
	}
	data := p
	if len(e.refs) > 0 {
		data = p.Clone()
		for _, r := range e.refs {
			leaf, err := r.retrieve(data)
			if err != nil {
				return nil, fmt.Errorf("%w %s: %w", ErrEvaluation, e.name, err)
			}
			maps.Copy(data, leaf)
		}
	}
	in := newInputs(e.name, data, e.declared)
	if e.label != nil {
		s, err := e.label(in)
		if err == nil {
			err = in.Err()
		}
		if err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrEvaluation, e.name, err)
		}
		return s, nil
	}
	v, err := e.fn(in)
	if err == nil {
		err = in.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrEvaluation, e.name, err)
	}
	if math.IsNaN(v) {
		return nil, fmt.Errorf("%w %s: result is NaN", ErrEvaluation, e.name)
	}
	return v, nil
}

func (e *Element) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", e.name, e.kind)
	if len(e.comp) > 0 {
		parts := make([]string, 0, len(e.comp))
		for _, k := range slices.Sorted(maps.Keys(e.comp)) {
			parts = append(parts, k+"="+e.comp[k])
		}
		fmt.Fprintf(&b, " [%s]", strings.Join(parts, ", "))
	}
	return b.String()
}

// Layer is an ordered group of elements evaluated against the outputs of
// earlier layers.
type Layer struct {
	name     string
	elements []*Element
}

func (l *Layer) Name() string { return l.name }

// Elements returns the layer's elements in insertion order.
func (l *Layer) Elements() []*Element { return slices.Clone(l.elements) }

func (l *Layer) eval(p Params) (Params, error) {
	out := make(Params, len(l.elements))
	for _, e := range l.elements {
		v, err := e.eval(p)
		if err != nil {
			return nil, err
		}
		out[e.name] = v
	}
	return out, nil
}
