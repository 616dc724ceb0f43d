package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/cpm/pkg/core"
)

// DelimitedSerializer handles CSV and TSV files with a header row.
type DelimitedSerializer struct {
	Comma rune
}

// NewDelimitedSerializer creates a serializer splitting fields on comma.
func NewDelimitedSerializer(comma rune) *DelimitedSerializer {
	return &DelimitedSerializer{Comma: comma}
}

func (s *DelimitedSerializer) Parse(r io.Reader) (*core.Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = s.Comma
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &core.Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	t := &core.Table{Columns: headers}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}
		row := make(core.Params, len(headers))
		for i, h := range headers {
			row[h] = ParseCell(record[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (s *DelimitedSerializer) Serialize(w io.Writer, t *core.Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = s.Comma
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, c := range t.Columns {
			record[i] = FormatCell(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
