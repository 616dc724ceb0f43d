// Package table reads and writes input and result tables of crash
// prediction models. The format is chosen by file extension.
package table

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/cpm/pkg/core"
)

// ErrUnsupportedFormat is returned for file extensions without a serializer.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Serializer defines how to read and write a specific file format.
type Serializer interface {
	// Parse reads a table from r.
	Parse(r io.Reader) (*core.Table, error)
	// Serialize writes t to w, keeping its column order.
	Serialize(w io.Writer, t *core.Table) error
}

// DefaultSerializers returns the standard set of serializers.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".csv":  NewDelimitedSerializer(','),
		".tsv":  NewDelimitedSerializer('\t'),
		".json": &JSONSerializer{},
		".yaml": &YAMLSerializer{},
		".yml":  &YAMLSerializer{},
		".xlsx": &XLSXSerializer{},
	}
}

// Extensions lists the supported file extensions.
func Extensions() []string {
	exts := make([]string, 0, 6)
	for ext := range DefaultSerializers() {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// For returns the serializer matching the extension of path.
func For(path string) (Serializer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	s, ok := DefaultSerializers()[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, ext, strings.Join(Extensions(), ", "))
	}
	return s, nil
}

// Read parses the table stored at path.
func Read(path string) (*core.Table, error) {
	s, err := For(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := s.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return t, nil
}

// Write stores t at path, replacing any existing file atomically.
func Write(path string, t *core.Table) error {
	s, err := For(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := s.Serialize(&buf, t); err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	return writeFileAtomic(path, buf.Bytes(), 0o644)
}

// ParseCell converts a text cell: blank cells are nil, numbers are float64,
// anything else is kept as a trimmed string.
func ParseCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// FormatCell is the text form of a value written to a delimited or
// spreadsheet cell.
func FormatCell(v any) string {
	return core.FormatValue(v)
}

// FromPredictions builds a result table holding the columns of every
// prediction. Rows that failed carry their inputs and the error message in
// an error column.
func FromPredictions(inputs *core.Table, preds []*core.Prediction, errs []error) *core.Table {
	columns := slices.Clone(inputs.Columns)
	for _, p := range preds {
		if p == nil {
			continue
		}
		for _, c := range p.Columns() {
			if !slices.Contains(columns, c) {
				columns = append(columns, c)
			}
		}
	}
	hasErr := slices.ContainsFunc(errs, func(err error) bool { return err != nil })
	if hasErr {
		columns = append(columns, "error")
	}

	out := &core.Table{Columns: columns, Rows: make([]core.Params, len(inputs.Rows))}
	for i, row := range inputs.Rows {
		rec := row.Clone()
		if i < len(preds) && preds[i] != nil {
			rec = rec.Merge(preds[i].Record())
		}
		if hasErr {
			rec["error"] = nil
			if i < len(errs) && errs[i] != nil {
				rec["error"] = errs[i].Error()
			}
		}
		out.Rows[i] = rec
	}
	return out
}
