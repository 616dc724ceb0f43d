package core

import (
	"fmt"
	"strings"
)

// How documents the inputs the model expects, one block per kwarg. style
// decorates input names and may be nil.
func (m *Model) How(style func(string) string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var texts []string
	for _, k := range m.kwargsLocked() {
		validators := m.validators[k]
		if len(validators) == 0 {
			texts = append(texts, fmt.Sprintf("- %-16s unconstrained", styled(style, k)))
			continue
		}
		for _, v := range validators {
			texts = append(texts, v.Describe(style))
		}
	}
	return fmt.Sprintf(`HOW-TO
------
To perform a prediction, call the model's predict method and pass all required independent variable parameters according to the constraints below.

MODEL PARAMETERS
----------------
%s
`, strings.Join(texts, "\n"))
}

// String summarizes the model structure.
func (m *Model) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := func(kind Kind) []string {
		var out []string
		for _, e := range m.elementsLocked() {
			if e.kind == kind {
				out = append(out, e.name)
			}
		}
		return out
	}
	list := func(items []string) string {
		if len(items) == 0 {
			return ""
		}
		return "\n - " + strings.Join(items, "\n - ")
	}
	spfs, afs, results := names(SPF), names(AF), names(Result)
	kwargs := m.kwargsLocked()

	var b strings.Builder
	b.WriteString("CRASH PREDICTION MODEL\n----------------------\n")
	fmt.Fprintf(&b, "Model ID: %s\n", m.name)
	fmt.Fprintf(&b, "Number of Layers: %d\n", len(m.layers))
	fmt.Fprintf(&b, "Safety Performance Functions (%d):%s\n", len(spfs), list(spfs))
	fmt.Fprintf(&b, "Adjustment Factors (%d):%s\n", len(afs), list(afs))
	fmt.Fprintf(&b, "Result Functions (%d):%s\n", len(results), list(results))
	fmt.Fprintf(&b, "Model Keyword Arguments (%d):%s\n", len(kwargs), list(kwargs))
	b.WriteString("----------------------")
	return b.String()
}

// Convert rescales a result with the named model reference. See ResultValue.Convert.
func (m *Model) Convert(r ResultValue, refName, valueKey string, to map[string]string) (ResultValue, error) {
	ref, err := m.Reference(refName)
	if err != nil {
		return ResultValue{}, err
	}
	return r.Convert(ref, valueKey, to)
}
