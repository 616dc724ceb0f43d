package core

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"sync"
)

// options holds the configuration of a Model.
type options struct {
	logger *slog.Logger
}

// Option configures a Model.
type Option func(*options)

// WithLogger sets the logger used for validation warnings and prediction errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Model is a layered crash prediction model.
//
// Build it with AddLayer, the Add<Kind> methods, AddReference and
// AddValidator, then Lock it. A locked model is immutable and can serve
// predictions from many goroutines.
type Model struct {
	mu         sync.RWMutex
	name       string
	layers     []*Layer
	validators map[string][]Validator
	refs       []*Reference
	locked     bool
	logger     *slog.Logger
}

// NewModel creates an empty, unlocked model.
func NewModel(name string, opts ...Option) *Model {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &Model{
		name:       name,
		validators: make(map[string][]Validator),
		logger:     o.logger.With("model", name),
	}
}

func (m *Model) Name() string { return m.name }

// Logger returns the model's logger.
func (m *Model) Logger() *slog.Logger { return m.logger }

// Lock freezes the model design.
func (m *Model) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = true
}

// Unlock allows additions again.
func (m *Model) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = false
}

func (m *Model) Locked() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked
}

// AddLayer appends a layer. An empty name defaults to the layer index.
func (m *Model) AddLayer(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrModelLocked
	}
	if name == "" {
		name = strconv.Itoa(len(m.layers))
	}
	if m.layerLocked(name) != nil {
		return fmt.Errorf("%w: layer %q", ErrDuplicate, name)
	}
	m.layers = append(m.layers, &Layer{name: name})
	return nil
}

// AddReference adds a coefficient reference. A reference with the same
// name replaces the earlier one in place.
func (m *Model) AddReference(ref *Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrModelLocked
	}
	if ref == nil {
		return fmt.Errorf("%w: nil reference", ErrReference)
	}
	if i := m.refIndex(ref.name); i >= 0 {
		m.refs[i] = ref
		return nil
	}
	m.refs = append(m.refs, ref)
	return nil
}

// AddValidator registers a validator for its key. Validators of one key run
// in insertion order.
func (m *Model) AddValidator(v Validator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrModelLocked
	}
	m.validators[v.Key()] = append(m.validators[v.Key()], v)
	return nil
}

func (m *Model) AddSPF(spec ElementSpec) error    { return m.addElement(SPF, spec) }
func (m *Model) AddCF(spec ElementSpec) error     { return m.addElement(CF, spec) }
func (m *Model) AddAF(spec ElementSpec) error     { return m.addElement(AF, spec) }
func (m *Model) AddSub(spec ElementSpec) error    { return m.addElement(Sub, spec) }
func (m *Model) AddHidden(spec ElementSpec) error { return m.addElement(Hidden, spec) }
func (m *Model) AddResult(spec ElementSpec) error { return m.addElement(Result, spec) }

func (m *Model) addElement(kind Kind, spec ElementSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return ErrModelLocked
	}
	if len(m.layers) == 0 {
		return ErrNoLayer
	}
	layer := m.layers[len(m.layers)-1]
	if spec.Layer != "" {
		if layer = m.layerLocked(spec.Layer); layer == nil {
			return fmt.Errorf("%w: %q", ErrLayerNotFound, spec.Layer)
		}
	}

	combos := [][]RefQuery{spec.Refs}
	suffixes := []string{""}
	if spec.ExplodeRefs {
		var err error
		if combos, suffixes, err = m.explode(spec.Refs); err != nil {
			return err
		}
	}

	var built []*Element
	for i, queries := range combos {
		refs, err := m.bindRefs(queries)
		if err != nil {
			return fmt.Errorf("element %s: %w", spec.Name, err)
		}
		e, err := newElement(spec, kind, layer.name, suffixes[i], refs)
		if err != nil {
			return err
		}
		if m.elementLocked(e.name) != nil || slices.ContainsFunc(built, func(b *Element) bool { return b.name == e.name }) {
			return fmt.Errorf("%w: element %q", ErrDuplicate, e.name)
		}
		built = append(built, e)
	}
	layer.elements = append(layer.elements, built...)
	return nil
}

// bindRefs resolves queries against the model references, in reference order.
func (m *Model) bindRefs(queries []RefQuery) ([]boundRef, error) {
	for _, q := range queries {
		if m.refIndex(q.Name) < 0 {
			return nil, fmt.Errorf("%w: reference %q does not exist in the model", ErrReference, q.Name)
		}
	}
	var bound []boundRef
	for _, ref := range m.refs {
		i := slices.IndexFunc(queries, func(q RefQuery) bool { return q.Name == ref.name })
		if i < 0 {
			continue
		}
		fixed := make(map[string]string, len(queries[i].Levels))
		for level, vals := range queries[i].Levels {
			if !slices.Contains(ref.levels, level) {
				return nil, fmt.Errorf("%w: %s has no level %q", ErrReference, ref.name, level)
			}
			if len(vals) != 1 {
				return nil, fmt.Errorf("%w: level %q of %s needs exactly one value without ExplodeRefs", ErrReference, level, ref.name)
			}
			fixed[level] = vals[0]
		}
		bound = append(bound, boundRef{ref: ref, fixed: fixed})
	}
	return bound, nil
}

// explode expands multi-valued reference levels into one query set per
// combination, with the element name suffix of each.
func (m *Model) explode(queries []RefQuery) ([][]RefQuery, []string, error) {
	type axis struct {
		ref    string
		level  string
		values []string
	}
	for _, q := range queries {
		i := m.refIndex(q.Name)
		if i < 0 {
			return nil, nil, fmt.Errorf("%w: reference %q does not exist in the model", ErrReference, q.Name)
		}
		for level := range q.Levels {
			if !slices.Contains(m.refs[i].levels, level) {
				return nil, nil, fmt.Errorf("%w: %s has no level %q", ErrReference, q.Name, level)
			}
		}
	}
	var axes []axis
	for _, ref := range m.refs {
		i := slices.IndexFunc(queries, func(q RefQuery) bool { return q.Name == ref.name })
		if i < 0 {
			continue
		}
		for _, level := range ref.levels {
			if vals, ok := queries[i].Levels[level]; ok {
				if len(vals) == 0 {
					return nil, nil, fmt.Errorf("%w: no values for level %q of %s", ErrReference, level, ref.name)
				}
				axes = append(axes, axis{ref: ref.name, level: level, values: vals})
			}
		}
	}

	combos := [][]RefQuery{nil}
	suffixes := []string{""}
	for _, a := range axes {
		var nextCombos [][]RefQuery
		var nextSuffixes []string
		for i, combo := range combos {
			for _, v := range a.values {
				next := make([]RefQuery, 0, len(combo)+1)
				found := false
				for _, q := range combo {
					if q.Name == a.ref {
						q = q.With(a.level, v)
						found = true
					}
					next = append(next, q)
				}
				if !found {
					next = append(next, Ref(a.ref, a.level, v))
				}
				nextCombos = append(nextCombos, next)
				nextSuffixes = append(nextSuffixes, suffixes[i]+"_"+v)
			}
		}
		combos, suffixes = nextCombos, nextSuffixes
	}

	// Queries without fixed levels still apply to every combination.
	for _, q := range queries {
		if len(q.Levels) > 0 {
			continue
		}
		for i := range combos {
			combos[i] = append(combos[i], q)
		}
	}
	return combos, suffixes, nil
}

func (m *Model) refIndex(name string) int {
	return slices.IndexFunc(m.refs, func(r *Reference) bool { return r.name == name })
}

func (m *Model) layerLocked(name string) *Layer {
	for _, l := range m.layers {
		if l.name == name {
			return l
		}
	}
	return nil
}

func (m *Model) elementLocked(name string) *Element {
	for _, l := range m.layers {
		for _, e := range l.elements {
			if e.name == name {
				return e
			}
		}
	}
	return nil
}

// Element returns the element with the given name.
func (m *Model) Element(name string) (*Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e := m.elementLocked(name); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrElementNotFound, name)
}

// Layer returns the layer with the given name.
func (m *Model) Layer(name string) (*Layer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l := m.layerLocked(name); l != nil {
		return l, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
}

// Layers returns the layers in evaluation order.
func (m *Model) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.layers)
}

// Elements returns every element in evaluation order.
func (m *Model) Elements() []*Element {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.elementsLocked()
}

func (m *Model) elementsLocked() []*Element {
	var out []*Element
	for _, l := range m.layers {
		out = append(out, l.elements...)
	}
	return out
}

// ElementsOf returns the elements of a kind in evaluation order.
func (m *Model) ElementsOf(kind Kind) []*Element {
	return slices.DeleteFunc(m.Elements(), func(e *Element) bool { return e.kind != kind })
}

// ElementIDs lists element names in evaluation order.
func (m *Model) ElementIDs() []string {
	elements := m.Elements()
	ids := make([]string, len(elements))
	for i, e := range elements {
		ids[i] = e.name
	}
	return ids
}

// References returns the model references in insertion order.
func (m *Model) References() []*Reference {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.refs)
}

// Reference returns the named reference.
func (m *Model) Reference(name string) (*Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.refIndex(name); i >= 0 {
		return m.refs[i], nil
	}
	return nil, fmt.Errorf("%w: reference %q does not exist in the model", ErrReference, name)
}

// Validators returns the validators registered for key.
func (m *Model) Validators(key string) []Validator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.validators[key])
}

// RefKeys lists the keys provided by all model references.
func (m *Model) RefKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refKeysLocked()
}

func (m *Model) refKeysLocked() []string {
	var keys []string
	for _, r := range m.refs {
		keys = append(keys, r.keys...)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// Kwargs lists the inputs a prediction needs: everything elements read that
// is neither another element nor a reference key.
func (m *Model) Kwargs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kwargsLocked()
}

func (m *Model) kwargsLocked() []string {
	exclude := make(map[string]bool)
	for _, e := range m.elementsLocked() {
		exclude[e.name] = true
	}
	for _, k := range m.refKeysLocked() {
		exclude[k] = true
	}
	var kwargs []string
	for _, e := range m.elementsLocked() {
		for _, k := range e.inputs {
			if !exclude[k] {
				kwargs = append(kwargs, k)
			}
		}
	}
	slices.Sort(kwargs)
	return slices.Compact(kwargs)
}

// ConstraintKind names the type of an input constraint.
type ConstraintKind string

const (
	Unconstrained ConstraintKind = ""
	LimitsKind    ConstraintKind = "limits"
	ValuesKind    ConstraintKind = "values"
)

// Constraint summarizes the feasible values of an input.
type Constraint struct {
	Kind ConstraintKind
	// Min and Max bound a limits constraint.
	Min, Max float64
	// Values lists a values constraint.
	Values []any
}

// Constraints summarizes the feasible values of every kwarg. Element limits
// and values take precedence over unconditional validators with constant bounds.
func (m *Model) Constraints() map[string]Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Constraint)
	for _, k := range m.kwargsLocked() {
		out[k] = m.validatorConstraint(k)
	}
	for _, e := range m.elementsLocked() {
		for k, lim := range e.limits {
			if _, ok := out[k]; ok {
				out[k] = Constraint{Kind: LimitsKind, Min: lim[0], Max: lim[1]}
			}
		}
		for k, vals := range e.values {
			if _, ok := out[k]; ok {
				out[k] = Constraint{Kind: ValuesKind, Values: slices.Clone(vals)}
			}
		}
	}
	return out
}

func (m *Model) validatorConstraint(key string) Constraint {
	for _, v := range m.validators[key] {
		switch t := v.(type) {
		case *Values:
			if len(t.conditions) == 0 {
				return Constraint{Kind: ValuesKind, Values: t.Accepted()}
			}
		case *Limits:
			if len(t.conditions) == 0 && t.min.IsConst() && t.max.IsConst() {
				return Constraint{Kind: LimitsKind, Min: t.min.value, Max: t.max.value}
			}
		}
	}
	return Constraint{}
}

// validatorKeys lists keys with validators, in kwargs order then the rest sorted.
func (m *Model) validatorKeys() []string {
	keys := m.kwargsLocked()
	for _, k := range slices.Sorted(maps.Keys(m.validators)) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
