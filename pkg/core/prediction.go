package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ResultValue is an evaluated Result element.
type ResultValue struct {
	Name  string
	Value float64
	Comp  map[string]string
}

func (r ResultValue) String() string {
	return fmt.Sprintf("%s=%.3f (%s)", r.Name, r.Value, formatComp(r.Comp))
}

// Convert rescales the value from its composition to another using a
// reference of composition ratios: value * ratio(to) / ratio(from). The
// reference levels are read from the compositions and valueKey names the
// ratio in its leaves.
func (r ResultValue) Convert(ref *Reference, valueKey string, to map[string]string) (ResultValue, error) {
	from, err := compRatio(ref, valueKey, r.Comp)
	if err != nil {
		return ResultValue{}, fmt.Errorf("composition of %s is not compatible with %s: %w", r.Name, ref.Name(), err)
	}
	target, err := compRatio(ref, valueKey, to)
	if err != nil {
		return ResultValue{}, fmt.Errorf("requested composition is not compatible with %s: %w", ref.Name(), err)
	}
	if from == 0 {
		return ResultValue{}, fmt.Errorf("%w: %s ratio of %s is zero", ErrReference, valueKey, formatComp(r.Comp))
	}
	return ResultValue{Name: r.Name, Value: r.Value * target / from, Comp: maps.Clone(to)}, nil
}

func compRatio(ref *Reference, valueKey string, comp map[string]string) (float64, error) {
	leaf, err := ref.Retrieve(comp)
	if err != nil {
		return 0, err
	}
	f, ok := ToFloat(leaf[valueKey])
	if !ok {
		return 0, fmt.Errorf("%w: %s has no numeric %q", ErrReference, ref.Name(), valueKey)
	}
	return f, nil
}

func formatComp(comp map[string]string) string {
	parts := make([]string, 0, len(comp))
	for _, k := range slices.Sorted(maps.Keys(comp)) {
		parts = append(parts, k+"="+comp[k])
	}
	return strings.Join(parts, ", ")
}

// Prediction holds the inputs and element values of one evaluated record.
// Hidden elements are not included.
type Prediction struct {
	Model    string
	Warnings []string

	values  Params
	columns []string
	results []ResultValue
}

func (m *Model) newPrediction(evaluated Params, warnings []string) *Prediction {
	p := &Prediction{Model: m.name, Warnings: warnings, values: make(Params, len(evaluated))}
	hidden := make(map[string]bool)
	for _, e := range m.elementsLocked() {
		if e.kind == Hidden {
			hidden[e.name] = true
		}
	}
	for k, v := range evaluated {
		if !hidden[k] {
			p.values[k] = v
		}
	}
	p.columns = m.kwargsLocked()
	for _, k := range evaluated.Keys() {
		if !hidden[k] && !slices.Contains(p.columns, k) && m.elementLocked(k) == nil {
			p.columns = append(p.columns, k)
		}
	}
	for _, e := range m.elementsLocked() {
		if e.kind == Hidden {
			continue
		}
		p.columns = append(p.columns, e.name)
		if e.kind == Result {
			f, _ := ToFloat(evaluated[e.name])
			p.results = append(p.results, ResultValue{Name: e.name, Value: f, Comp: maps.Clone(e.comp)})
		}
	}
	return p
}

// Get returns a value by name.
func (p *Prediction) Get(key string) (any, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Float returns a numeric value by name.
func (p *Prediction) Float(key string) (float64, error) {
	v, ok := p.values[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrElementNotFound, key)
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %s=%v is not numerical", ErrInvalidType, key, v)
	}
	return f, nil
}

// Result returns a result by name.
func (p *Prediction) Result(name string) (ResultValue, bool) {
	for _, r := range p.results {
		if r.Name == name {
			return r, true
		}
	}
	return ResultValue{}, false
}

// Results returns the results in evaluation order.
func (p *Prediction) Results() []ResultValue {
	return slices.Clone(p.results)
}

// Columns lists the inputs then the elements in evaluation order.
func (p *Prediction) Columns() []string {
	return slices.Clone(p.columns)
}

// Record returns a copy of every value.
func (p *Prediction) Record() Params {
	return p.values.Clone()
}

func (p *Prediction) String() string {
	parts := make([]string, len(p.results))
	for i, r := range p.results {
		parts[i] = fmt.Sprintf("'%s':%7.3f (%s)", r.Name, r.Value, formatComp(r.Comp))
	}
	return "Prediction({" + strings.Join(parts, ", ") + "})"
}
