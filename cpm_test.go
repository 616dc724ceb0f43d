package cpm_test

import (
	"go/build"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/cpm"
)

func TestManifest(t *testing.T) {
	m := cpm.Manifest()
	assert.Equal(t, "cpm", m.Name)
	assert.NotEmpty(t, m.Version)
	assert.NotEmpty(t, m.License)
	assert.NotEmpty(t, m.Description)
	assert.NotEmpty(t, m.Readme)
	assert.NotEmpty(t, m.Keywords)

	data, err := os.ReadFile("VERSION")
	require.NoError(t, err)
	assert.Equal(t, strings.TrimSpace(string(data)), cpm.Version)
}

func TestModuleFile(t *testing.T) {
	data, err := os.ReadFile("go.mod")
	require.NoError(t, err)
	first, _, _ := strings.Cut(string(data), "\n")
	assert.Equal(t, "module "+cpm.Manifest().Module, strings.TrimSpace(first))
}

func TestTestsAreExcludedFromBuilds(t *testing.T) {
	pkg, err := build.ImportDir(".", 0)
	require.NoError(t, err)
	for _, f := range pkg.GoFiles {
		assert.False(t, strings.HasSuffix(f, "_test.go"), f)
	}
	assert.Contains(t, pkg.XTestGoFiles, "cpm_test.go")
}

func TestOpen(t *testing.T) {
	assert.Len(t, cpm.Models(), 6)

	m, err := cpm.Open("rtl_int", cpm.WithCalibration(map[string]float64{"*": 1.1}))
	require.NoError(t, err)
	p, err := m.PredictOne(cpm.Params{
		"factype": "3st", "aadt_maj": 5000, "aadt_min": 1000, "skew": 0,
		"lighting": 0, "left_turn_lanes": 0, "right_turn_lanes": 0, "num_years": 1,
	})
	require.NoError(t, err)
	pred, err := p.Float("pred_kabco")
	require.NoError(t, err)
	assert.InDelta(t, 1.288376*1.1, pred, 1e-6)

	_, err = cpm.Open("fwy_seg")
	assert.Error(t, err)
}
