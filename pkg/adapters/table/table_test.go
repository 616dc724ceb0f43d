package table

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cpm/pkg/core"
)

func sample() *core.Table {
	return &core.Table{
		Columns: []string{"factype", "aadt", "length", "obs_kabco"},
		Rows: []core.Params{
			{"factype": "4d", "aadt": 20000.0, "length": 0.5, "obs_kabco": nil},
			{"factype": "2u", "aadt": 1500.0, "length": 1.25, "obs_kabco": 3.0},
		},
	}
}

func TestSerializers(t *testing.T) {
	for ext, s := range DefaultSerializers() {
		t.Run(ext, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, s.Serialize(&buf, sample()))

			parsed, err := s.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, sample().Columns, parsed.Columns)
			require.Len(t, parsed.Rows, 2)

			assert.Equal(t, "4d", parsed.Rows[0]["factype"])
			assert.Equal(t, 20000.0, parsed.Rows[0]["aadt"])
			assert.Nil(t, parsed.Rows[0]["obs_kabco"])
			assert.Equal(t, 1.25, parsed.Rows[1]["length"])
			assert.Equal(t, 3.0, parsed.Rows[1]["obs_kabco"])
		})
	}
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	for _, ext := range Extensions() {
		path := filepath.Join(dir, "sites"+ext)
		require.NoError(t, Write(path, sample()), ext)

		got, err := Read(path)
		require.NoError(t, err, ext)
		assert.Equal(t, 2, got.Len(), ext)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), TempFilePrefix), "temp file left behind: %s", e.Name())
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Read("sites.parquet")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	err = Write(filepath.Join(t.TempDir(), "sites.txt"), sample())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	s, err := For("SITES.CSV")
	require.NoError(t, err)
	assert.IsType(t, &DelimitedSerializer{}, s)
}

func TestParseCell(t *testing.T) {
	assert.Nil(t, ParseCell("  "))
	assert.Equal(t, 12.0, ParseCell("12"))
	assert.Equal(t, -1.0, ParseCell(" -1 "))
	assert.Equal(t, "paved", ParseCell("paved"))
	assert.Equal(t, "<=30", ParseCell("<=30"))
}

func TestDelimitedRaggedRow(t *testing.T) {
	_, err := NewDelimitedSerializer(',').Parse(strings.NewReader("a,b\n1,2\n3\n"))
	assert.ErrorContains(t, err, "row 3")
}

func TestJSONRejectsScalars(t *testing.T) {
	_, err := (&JSONSerializer{}).Parse(strings.NewReader(`[1, 2]`))
	assert.Error(t, err)

	tab, err := (&JSONSerializer{}).Parse(strings.NewReader(`[{"b": 1, "a": "x"}, {"c": null}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, tab.Columns)
}

func TestFromPredictions(t *testing.T) {
	m := core.NewModel("double")
	require.NoError(t, m.AddLayer("pred"))
	require.NoError(t, m.AddResult(core.ElementSpec{
		Name:   "pred_kabco",
		Inputs: []string{"aadt"},
		Func:   func(in *core.Inputs) (float64, error) { return 2 * in.Float("aadt"), nil },
		Comp:   map[string]string{"severity": "kabco", "crash_type": "all"},
	}))
	m.Lock()

	inputs := &core.Table{Columns: []string{"aadt"}, Rows: []core.Params{{"aadt": 1.0}, {"aadt": "x"}}}
	first, err := m.PredictOne(inputs.Rows[0])
	require.NoError(t, err)

	out := FromPredictions(inputs, []*core.Prediction{first, nil}, []error{nil, errors.New("bad aadt")})
	assert.Equal(t, []string{"aadt", "pred_kabco", "error"}, out.Columns)
	assert.Equal(t, 2.0, out.Rows[0]["pred_kabco"])
	assert.Nil(t, out.Rows[0]["error"])
	assert.Equal(t, "bad aadt", out.Rows[1]["error"])
	assert.Equal(t, "x", out.Rows[1]["aadt"])
}
