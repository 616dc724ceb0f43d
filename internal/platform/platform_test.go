package platform

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cpm/pkg/adapters/table"
	"github.com/aretw0/cpm/pkg/core"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`
workers: 3
log_level: debug
reference_dir: refs
output_format: xlsx
calibration:
  rtl_int:
    "*": 1.2
    4sg: 0.9
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, filepath.Join(dir, "refs"), cfg.ReferenceDir)
	assert.Equal(t, ".xlsx", cfg.OutputFormat)
	assert.Equal(t, 0.9, cfg.Calibration["rtl_int"]["4sg"])
	assert.Equal(t, path, cfg.Path)

	t.Setenv(EnvWorkers, "8")
	t.Setenv(EnvLogLevel, "warn")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, slog.LevelWarn, cfg.Level())

	t.Setenv(EnvWorkers, "many")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "invalid log level")

	require.NoError(t, os.WriteFile(path, []byte("workers: -1\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestOpenModel(t *testing.T) {
	refs := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(refs, "rtl_seg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(refs, "rtl_seg", "spf.yaml"),
		[]byte("levels: [severity]\nkeys: [a]\ndata:\n  kabco: {a: 2}\n"), 0o644))

	base, err := OpenModel("rtl_seg")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ReferenceDir = refs
	cfg.Calibration = map[string]map[string]float64{"rtl_seg": {"*": 1.5}}
	tuned, err := OpenModel("rtl_seg", WithConfig(cfg))
	require.NoError(t, err)

	row := core.Params{
		"aadt": 1000, "length": 1, "lane_width": 12, "shld_width": 6, "shld_type": "paved",
		"rumble_cl": 0, "passing_lanes": 0, "twltl": 0, "spiral_transition": 0,
		"curve_length": 0, "curve_radius": 0, "se_var": 0, "grade": 0, "dwy_density": 5,
		"rhr": 3, "lighting": 0, "ase": 0, "num_years": 1,
	}
	a, err := base.PredictOne(row)
	require.NoError(t, err)
	b, err := tuned.PredictOne(row)
	require.NoError(t, err)
	pa, _ := a.Float("pred_kabco")
	pb, _ := b.Float("pred_kabco")
	assert.InDelta(t, pa*2*1.5, pb, 1e-9)

	_, err = OpenModel("fwy_seg")
	assert.Error(t, err)
}

func TestPredictFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sites.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"factype,aadt_maj,aadt_min,skew,lighting,left_turn_lanes,right_turn_lanes,num_years,obs_kabco\n"+
			"3st,5000,1000,0,0,0,0,1,2\n"+
			"5st,5000,1000,0,0,0,0,1,2\n"), 0o644))

	m, err := OpenModel("rtl_int")
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s, err := PredictFile(context.Background(), m, input, "", WithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sites_result.csv"), s.Output)
	assert.Equal(t, 2, s.Rows)
	assert.Equal(t, 1, s.Failed)
	assert.NotEmpty(t, s.RunID)
	assert.Contains(t, logs.String(), "run_id="+s.RunID)

	out, err := table.Read(s.Output)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Contains(t, out.Columns, "pred_kabco")
	assert.Equal(t, "error", out.Columns[len(out.Columns)-1])
	assert.InDelta(t, 1.288376, out.Rows[0]["spf_kabco"], 1e-6)
	assert.Nil(t, out.Rows[0]["error"])
	assert.Contains(t, out.Rows[1]["error"], "factype")
}

func TestTemplateAndRandomFiles(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenModel("usa_int")
	require.NoError(t, err)

	tmpl := filepath.Join(dir, "template.csv")
	require.NoError(t, TemplateFile(m, tmpl, 3))
	got, err := table.Read(tmpl)
	require.NoError(t, err)
	assert.Equal(t, m.Kwargs(), got.Columns)
	assert.Equal(t, 3, got.Len())
	assert.Error(t, TemplateFile(m, tmpl, 0))

	random := filepath.Join(dir, "random.json")
	require.NoError(t, RandomFile(m, random, 5, 42))
	rows, err := table.Read(random)
	require.NoError(t, err)
	assert.Equal(t, 5, rows.Len())

	s, err := PredictFile(context.Background(), m, random, "", WithConfig(&Config{Workers: 2, OutputFormat: ".yaml"}))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Failed)
	assert.Equal(t, filepath.Join(dir, "random_result.yaml"), s.Output)
}

func TestResultPath(t *testing.T) {
	assert.Equal(t, "a/sites_result.csv", ResultPath("a/sites.csv", ""))
	assert.Equal(t, "sites_result.xlsx", ResultPath("sites.csv", ".xlsx"))
	assert.True(t, IsResult("x/sites_result.csv"))
	assert.False(t, IsResult("x/sites.csv"))
}
