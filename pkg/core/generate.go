package core

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
)

// Table is a set of records sharing a column order.
type Table struct {
	Columns []string
	Rows    []Params
}

// NewTable creates a table with n empty rows.
func NewTable(columns []string, n int) *Table {
	t := &Table{Columns: slices.Clone(columns), Rows: make([]Params, n)}
	for i := range t.Rows {
		t.Rows[i] = make(Params, len(columns))
		for _, c := range columns {
			t.Rows[i][c] = nil
		}
	}
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Template creates an empty input table with one column per kwarg.
func (m *Model) Template(n int) *Table {
	return NewTable(m.Kwargs(), n)
}

// InitOne draws a random feasible set of inputs from the model validators.
// Kwargs without validators are set to fill. Validators depending on inputs
// not drawn yet are retried, up to attempts passes.
func (m *Model) InitOne(rng *rand.Rand, fill any, attempts int) (Params, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kwargs := m.kwargsLocked()
	res := make(Params, len(kwargs))
	var remaining []string
	for range max(attempts, 1) {
		remaining = remaining[:0]
		for _, k := range kwargs {
			if _, ok := res[k]; !ok {
				remaining = append(remaining, k)
			}
		}
		for _, k := range remaining {
			validators := m.validators[k]
			if len(validators) == 0 {
				res[k] = fill
				continue
			}
			for _, v := range validators {
				val, err := v.Random(rng, res, RaiseConditions)
				if err != nil {
					continue
				}
				res[k] = val
			}
		}
		if len(res) == len(kwargs) {
			return res, nil
		}
	}
	remaining = slices.DeleteFunc(remaining, func(k string) bool { _, ok := res[k]; return ok })
	return nil, fmt.Errorf("unable to initialize feasible values for %s after %d attempts: validator logic may be invalid or too complex",
		strings.Join(remaining, ", "), attempts)
}

// InitFeasible draws n random feasible records. The same seed yields the same table.
func (m *Model) InitFeasible(n int, seed uint64, fill any, attempts int) (*Table, error) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	t := m.Template(n)
	for i := range t.Rows {
		row, err := m.InitOne(rng, fill, attempts)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		t.Rows[i] = row
	}
	return t, nil
}
