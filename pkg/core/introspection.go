package core

import (
	"github.com/aretw0/introspection"
)

// ModelState exposes internal state for observability.
type ModelState struct {
	Name       string   `json:"name"`
	Locked     bool     `json:"locked"`
	Layers     []string `json:"layers"`
	Elements   int      `json:"elements"`
	References []string `json:"references"`
	Validators int      `json:"validators"`
	Kwargs     []string `json:"kwargs"`
}

// State implements introspection.Introspectable.
func (m *Model) State() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := ModelState{
		Name:     m.name,
		Locked:   m.locked,
		Elements: len(m.elementsLocked()),
		Kwargs:   m.kwargsLocked(),
	}
	for _, l := range m.layers {
		st.Layers = append(st.Layers, l.name)
	}
	for _, r := range m.refs {
		st.References = append(st.References, r.name)
	}
	for _, vs := range m.validators {
		st.Validators += len(vs)
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Model) ComponentType() string {
	return "model"
}

var _ introspection.Introspectable = (*Model)(nil)
var _ introspection.Component = (*Model)(nil)
