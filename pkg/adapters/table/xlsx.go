package table

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aretw0/cpm/pkg/core"
)

// XLSXSerializer handles Excel workbooks. Rows are read from the first
// sheet, whose first row holds the column names.
type XLSXSerializer struct {
	// Sheet names the written sheet. Defaults to "Sheet1".
	Sheet string
}

func (s *XLSXSerializer) Parse(r io.Reader) (*core.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return &core.Table{}, nil
	}
	t := &core.Table{Columns: rows[0], Rows: make([]core.Params, 0, len(rows)-1)}
	for _, cells := range rows[1:] {
		row := make(core.Params, len(t.Columns))
		for i, c := range t.Columns {
			row[c] = nil
			if i < len(cells) {
				row[c] = ParseCell(cells[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func (s *XLSXSerializer) Serialize(w io.Writer, t *core.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if s.Sheet != "" && s.Sheet != sheet {
		if err := f.SetSheetName(sheet, s.Sheet); err != nil {
			return err
		}
		sheet = s.Sheet
	}

	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range t.Rows {
		cells := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			cells[j] = row[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return err
		}
	}
	_, err := f.WriteTo(w)
	return err
}
