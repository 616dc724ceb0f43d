package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reference is a coefficient tree queried by level values.
//
//	{
//	  "levels": ["factype", "severity"],
//	  "keys": ["a", "b"],
//	  "data": {"3st": {"kabco": {"a": -9.86, "b": 0.79}}}
//	}
//
// Retrieving with factype=3st and severity=kabco returns {"a": -9.86, "b": 0.79}.
type Reference struct {
	name   string
	levels []string
	keys   []string
	data   map[string]any
}

type referenceDoc struct {
	Levels []string       `json:"levels" yaml:"levels"`
	Keys   []string       `json:"keys" yaml:"keys"`
	Data   map[string]any `json:"data" yaml:"data"`
}

// NewReference builds a reference from its parts and validates its shape.
func NewReference(name string, levels, keys []string, data map[string]any) (*Reference, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: reference name is required", ErrReference)
	}
	r := &Reference{name: name, levels: levels, keys: keys, data: normalizeTree(data)}
	if err := r.check(r.data, 0, nil); err != nil {
		return nil, err
	}
	return r, nil
}

// ParseReference decodes a JSON or YAML reference tree.
func ParseReference(r io.Reader, name string) (*Reference, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference %s: %w", name, err)
	}
	var doc referenceDoc
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(raw, &doc)
	} else {
		err = yaml.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unable to decode reference %s: %v", ErrReference, name, err)
	}
	return NewReference(name, doc.Levels, doc.Keys, doc.Data)
}

// ReadReference loads a reference file. The reference is named after the file stem.
func ReadReference(path string) (*Reference, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("%w: reference file must be .json, .yaml or .yml: %s", ErrReference, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference: %w", err)
	}
	defer f.Close()
	return ParseReference(f, ReferenceName(path))
}

// ReferenceName is the name a reference file is loaded under.
func ReferenceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// normalizeTree turns YAML's map[any]any nodes into map[string]any.
func normalizeTree(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		out[k] = normalizeNode(v)
	}
	return out
}

func normalizeNode(v any) any {
	switch n := v.(type) {
	case map[string]any:
		return normalizeTree(n)
	case map[any]any:
		m := make(map[string]any, len(n))
		for k, v := range n {
			m[FormatValue(k)] = normalizeNode(v)
		}
		return m
	}
	return v
}

func (r *Reference) check(node map[string]any, depth int, path []string) error {
	if depth == len(r.levels) {
		for _, k := range r.keys {
			if _, ok := node[k]; !ok {
				return fmt.Errorf("%w: %s is missing key %q at %s", ErrReference, r.name, k, strings.Join(path, "/"))
			}
		}
		return nil
	}
	if len(node) == 0 {
		return fmt.Errorf("%w: %s has no values for level %q at %s", ErrReference, r.name, r.levels[depth], strings.Join(path, "/"))
	}
	for k, v := range node {
		child, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s is shallower than its %d levels at %s", ErrReference, r.name, len(r.levels), strings.Join(append(path, k), "/"))
		}
		if err := r.check(child, depth+1, append(path, k)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reference) Name() string { return r.name }

// Levels lists the query levels in nesting order.
func (r *Reference) Levels() []string { return slices.Clone(r.levels) }

// Keys lists the values every leaf provides.
func (r *Reference) Keys() []string { return slices.Clone(r.keys) }

// Retrieve walks the tree with one value per level and returns the leaf.
func (r *Reference) Retrieve(args map[string]string) (Params, error) {
	node := r.data
	for _, level := range r.levels {
		v, ok := args[level]
		if !ok {
			return nil, fmt.Errorf("%w: reference %s needs %s", ErrMissingInput, r.name, strings.Join(r.levels, ", "))
		}
		child, ok := node[v].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: no entry for %s=%s in %s", ErrReference, level, v, r.name)
		}
		node = child
	}
	out := make(Params, len(r.keys))
	for _, k := range r.keys {
		out[k] = node[k]
	}
	return out, nil
}

// RetrieveParams is Retrieve with level values taken from p.
func (r *Reference) RetrieveParams(p Params) (Params, error) {
	args := make(map[string]string, len(r.levels))
	for _, level := range r.levels {
		if p.Present(level) {
			args[level] = FormatValue(p[level])
		}
	}
	return r.Retrieve(args)
}

// Domain lists the sorted values of each level, following the first branch
// at every depth.
func (r *Reference) Domain() map[string][]string {
	out := make(map[string][]string, len(r.levels))
	node := r.data
	for _, level := range r.levels {
		vals := slices.Sorted(maps.Keys(node))
		out[level] = vals
		if len(vals) == 0 {
			break
		}
		node, _ = node[vals[0]].(map[string]any)
	}
	return out
}

// Override returns a copy of r with the leaves present in other replaced.
// other must share r's levels.
func (r *Reference) Override(other *Reference) (*Reference, error) {
	if !slices.Equal(r.levels, other.levels) {
		return nil, fmt.Errorf("%w: override for %s must have levels %v, got %v", ErrReference, r.name, r.levels, other.levels)
	}
	merged := mergeTree(r.data, other.data, len(r.levels))
	return NewReference(r.name, r.levels, r.keys, merged)
}

func mergeTree(dst, src map[string]any, depth int) map[string]any {
	out := maps.Clone(dst)
	for k, v := range src {
		if depth == 0 {
			out[k] = v
			continue
		}
		sub, _ := v.(map[string]any)
		prev, ok := out[k].(map[string]any)
		if !ok {
			out[k] = sub
			continue
		}
		out[k] = mergeTree(prev, sub, depth-1)
	}
	return out
}

// MarshalJSON encodes the reference in its file format.
func (r *Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(referenceDoc{Levels: r.levels, Keys: r.keys, Data: r.data})
}

// RefQuery selects a model reference and fixes some of its levels. Levels
// left open are read from the element's inputs. More than one value per level
// is only allowed with ExplodeRefs.
type RefQuery struct {
	Name   string
	Levels map[string][]string
}

// Ref builds a query from level/value pairs.
func Ref(name string, kv ...string) RefQuery {
	q := RefQuery{Name: name, Levels: map[string][]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Levels[kv[i]] = append(q.Levels[kv[i]], kv[i+1])
	}
	return q
}

// With returns a copy of q with level fixed to values.
func (q RefQuery) With(level string, values ...string) RefQuery {
	out := RefQuery{Name: q.Name, Levels: maps.Clone(q.Levels)}
	if out.Levels == nil {
		out.Levels = map[string][]string{}
	}
	out.Levels[level] = values
	return out
}

// boundRef is a reference attached to an element with its fixed levels.
type boundRef struct {
	ref   *Reference
	fixed map[string]string
}

func (b boundRef) open() []string {
	var open []string
	for _, l := range b.ref.levels {
		if _, ok := b.fixed[l]; !ok {
			open = append(open, l)
		}
	}
	return open
}

func (b boundRef) retrieve(p Params) (Params, error) {
	args := make(map[string]string, len(b.ref.levels))
	for _, l := range b.ref.levels {
		if v, ok := b.fixed[l]; ok {
			args[l] = v
		} else if p.Present(l) {
			args[l] = FormatValue(p[l])
		}
	}
	return b.ref.Retrieve(args)
}
