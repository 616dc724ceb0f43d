package table

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/cpm/pkg/core"
)

// JSONSerializer handles a JSON array of objects, one object per row.
type JSONSerializer struct{}

func (s *JSONSerializer) Parse(r io.Reader) (*core.Table, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	t := &core.Table{Rows: make([]core.Params, 0, len(raw))}
	for i, obj := range raw {
		keys, err := objectKeys(obj)
		if err != nil {
			return nil, fmt.Errorf("invalid json row %d: %w", i, err)
		}
		var row core.Params
		if err := json.Unmarshal(obj, &row); err != nil {
			return nil, fmt.Errorf("invalid json row %d: %w", i, err)
		}
		t.Columns = appendMissing(t.Columns, keys)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// objectKeys lists the keys of a JSON object in document order.
func objectKeys(obj json.RawMessage) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(obj))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected an object, got %v", tok)
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		keys = append(keys, tok.(string))
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (s *JSONSerializer) Serialize(w io.Writer, t *core.Table) error {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range t.Rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, c := range t.Columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			k, _ := json.Marshal(c)
			v, err := json.Marshal(row[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			buf.Write(k)
			buf.WriteString(": ")
			buf.Write(v)
		}
		buf.WriteString("}")
	}
	buf.WriteString("\n]\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// YAMLSerializer handles a YAML sequence of mappings, one mapping per row.
type YAMLSerializer struct{}

func (s *YAMLSerializer) Parse(r io.Reader) (*core.Table, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return &core.Table{}, nil
		}
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	seq := &doc
	if seq.Kind == yaml.DocumentNode && len(seq.Content) > 0 {
		seq = seq.Content[0]
	}
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("invalid yaml: expected a sequence of rows, line %d", seq.Line)
	}
	t := &core.Table{Rows: make([]core.Params, 0, len(seq.Content))}
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("invalid yaml: row at line %d is not a mapping", item.Line)
		}
		row := make(core.Params, len(item.Content)/2)
		keys := make([]string, 0, len(item.Content)/2)
		for i := 0; i+1 < len(item.Content); i += 2 {
			key := item.Content[i].Value
			var v any
			if err := item.Content[i+1].Decode(&v); err != nil {
				return nil, fmt.Errorf("invalid yaml: %s at line %d: %w", key, item.Content[i+1].Line, err)
			}
			if n, ok := v.(int); ok {
				v = float64(n)
			}
			row[key] = v
			keys = append(keys, key)
		}
		t.Columns = appendMissing(t.Columns, keys)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (s *YAMLSerializer) Serialize(w io.Writer, t *core.Table) error {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range t.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, c := range t.Columns {
			var v yaml.Node
			if err := v.Encode(row[c]); err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: c}, &v)
		}
		seq.Content = append(seq.Content, m)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(seq); err != nil {
		return err
	}
	return enc.Close()
}

func appendMissing(columns, keys []string) []string {
	for _, k := range keys {
		if !slices.Contains(columns, k) {
			columns = append(columns, k)
		}
	}
	return columns
}
