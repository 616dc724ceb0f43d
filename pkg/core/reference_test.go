package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const colorsJSON = `{
  "levels": ["colors", "numbers"],
  "keys": ["a", "b"],
  "data": {
    "blue": {"one": {"a": 1, "b": 2}, "two": {"a": 11, "b": 22}},
    "lavender": {"one": {"a": 4, "b": 5}, "two": {"a": 44, "b": 55}}
  }
}`

func TestParseReference(t *testing.T) {
	ref, err := ParseReference(strings.NewReader(colorsJSON), "colors")
	require.NoError(t, err)
	assert.Equal(t, "colors", ref.Name())
	assert.Equal(t, []string{"colors", "numbers"}, ref.Levels())

	leaf, err := ref.Retrieve(map[string]string{"colors": "lavender", "numbers": "two"})
	require.NoError(t, err)
	assert.Equal(t, Params{"a": 44.0, "b": 55.0}, leaf)

	_, err = ref.Retrieve(map[string]string{"colors": "red", "numbers": "two"})
	assert.ErrorIs(t, err, ErrReference)

	_, err = ref.Retrieve(map[string]string{"colors": "blue"})
	assert.ErrorIs(t, err, ErrMissingInput)

	assert.Equal(t, map[string][]string{
		"colors":  {"blue", "lavender"},
		"numbers": {"one", "two"},
	}, ref.Domain())
}

func TestParseReferenceYAML(t *testing.T) {
	doc := `
levels: [lanes]
keys: [a]
data:
  2: {a: 0.5}
  4: {a: 0.7}
`
	ref, err := ParseReference(strings.NewReader(doc), "lanes")
	require.NoError(t, err)

	leaf, err := ref.RetrieveParams(Params{"lanes": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 0.7, leaf["a"])
}

func TestReferenceShapeErrors(t *testing.T) {
	tests := map[string]string{
		"missing key":  `{"levels": ["x"], "keys": ["a", "b"], "data": {"1": {"a": 1}}}`,
		"too shallow":  `{"levels": ["x", "y"], "keys": ["a"], "data": {"1": 3}}`,
		"empty level":  `{"levels": ["x"], "keys": ["a"], "data": {}}`,
		"invalid json": `{"levels": [`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReference(strings.NewReader(doc), "bad")
			assert.ErrorIs(t, err, ErrReference)
		})
	}
}

func TestReadReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"levels": [], "keys": ["cf"], "data": {"cf": 1.2}}`), 0o644))

	ref, err := ReadReference(path)
	require.NoError(t, err)
	assert.Equal(t, "calibration", ref.Name())

	leaf, err := ref.Retrieve(nil)
	require.NoError(t, err)
	assert.Equal(t, 1.2, leaf["cf"])

	_, err = ReadReference(filepath.Join(dir, "calibration.txt"))
	assert.ErrorIs(t, err, ErrReference)
}

func TestReferenceOverride(t *testing.T) {
	ref, err := ParseReference(strings.NewReader(colorsJSON), "colors")
	require.NoError(t, err)
	patch, err := NewReference("colors", []string{"colors", "numbers"}, []string{"a"}, map[string]any{
		"blue": map[string]any{"two": map[string]any{"a": 99.0}},
	})
	require.NoError(t, err)

	merged, err := ref.Override(patch)
	require.NoError(t, err)

	leaf, err := merged.Retrieve(map[string]string{"colors": "blue", "numbers": "two"})
	require.NoError(t, err)
	assert.Equal(t, Params{"a": 99.0, "b": 22.0}, leaf)

	// The receiver is untouched.
	leaf, err = ref.Retrieve(map[string]string{"colors": "blue", "numbers": "two"})
	require.NoError(t, err)
	assert.Equal(t, 11.0, leaf["a"])
}
