package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, "dist", c.OutputDir)
	require.Equal(t, 8081, c.ServeConfig.Port)
	require.Equal(t, "/api", c.ServeConfig.APIPrefix)
	require.Equal(t, int64(20000), c.InlineLimit)
	require.Len(t, c.Entries, 10)
	require.Equal(t, "main", c.Entries[0].Name)
}

func TestLoadOverridesDefaults(t *testing.T) {
	p := filepath.Join(t.TempDir(), "homeservice.json")
	require.NoError(t, os.WriteFile(p, []byte(`{
		"output_directory": "out",
		"entries": [{"name": "main", "path": "./src/main.js"}],
		"defines": [{"name": "N", "value": 3}, {"name": "S", "value": "x"}],
		"serve_config": {"port": 9000, "hot": false}
	}`), 0644))

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, "out", c.OutputDir)
	require.Equal(t, []Entry{{Name: "main", Path: "./src/main.js"}}, c.Entries)
	require.Equal(t, json.Number("3"), c.Defines[0].Value)
	require.Equal(t, "x", c.Defines[1].Value)
	require.Equal(t, 9000, c.ServeConfig.Port)
	require.False(t, c.ServeConfig.Hot)
	// untouched keys keep their defaults
	require.Equal(t, "src/template", c.TemplateDir)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "homeservice.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"output_directory":`), 0644))

	_, err := Load(p)
	require.Error(t, err)
}

func TestDefaultConfigurationIsACopy(t *testing.T) {
	a := DefaultConfiguration()
	a.Entries[0].Name = "changed"
	require.Equal(t, "main", DefaultConfiguration().Entries[0].Name)
}

func TestLoadReplacesDefaultLists(t *testing.T) {
	p := filepath.Join(t.TempDir(), "homeservice.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"entries":[{"name":"home"}],"defines":[{"name":"X"}]}`), 0644))

	c, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, []Entry{{Name: "home"}}, c.Entries)
	require.Len(t, c.Defines, 1)
	require.Equal(t, "X", c.Defines[0].Name)
	require.Nil(t, c.Defines[0].Value)

	// lists absent from the file keep their defaults
	require.Equal(t, DefaultConfiguration().Rules, c.Rules)
}
