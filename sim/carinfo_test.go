package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCarInfoCatalog_RejectsUnknownFields(t *testing.T) {
	_, err := ParseCarInfoCatalog([]byte(`
cars:
  bmw_m4_gt3:
    name: BMW M4 GT3
    clas: GT3
`))
	assert.Error(t, err)
}

func TestParseCarInfoCatalog_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad class color", "classes:\n  GT3:\n    color: {bg: red}\n"},
		{"bad cup color", "cups:\n  Pro: {bg: \"#000000\", fg: \"#12345\"}\n"},
		{"self replacement", "classes:\n  GT4:\n    replacements: [GT4]\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseCarInfoCatalog([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCarInfoCatalog_ReadsReplacementsAndColors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
classes:
  GT4:
    replacements: [GT3]
  TCX:
    color: {bg: "#00FF00", fg: "#000000"}
    replacements: [GT4, GT3]
cups:
  Pro: {bg: "#FFFFFF", fg: "#000000"}
`), 0o644))

	c, err := LoadCarInfoCatalog(path)

	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"GT4": {"GT3"}, "TCX": {"GT4", "GT3"}}, c.Replacements())
	_, ok := c.ClassColor("GT4")
	assert.False(t, ok)
	color, ok := c.ClassColor("TCX")
	assert.True(t, ok)
	assert.Equal(t, "#00FF00", color.Bg)
	_, ok = c.CupColor("Pro")
	assert.True(t, ok)
}

func TestCarInfoCatalog_NilIsEmpty(t *testing.T) {
	var c *CarInfoCatalog
	_, ok := c.Lookup("anything")
	assert.False(t, ok)
	_, ok = c.ClassColor("GT3")
	assert.False(t, ok)
	assert.Empty(t, c.Replacements())
}

func TestLoadCarInfoCatalog_MissingFile(t *testing.T) {
	_, err := LoadCarInfoCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
