package levels

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuiltin(t *testing.T) {
	catalog, err := LoadBuiltin()
	require.NoError(t, err)
	assert.Equal(t, []string{"level-1", "level-2"}, catalog.Names())

	level, err := catalog.Get("level-1")
	require.NoError(t, err)
	assert.Equal(t, "level-2", level.NextMap)
	assert.Equal(t, 1, level.BombCapacity)
	assert.Equal(t, 18, level.Width())
	assert.Equal(t, 10, level.Height())

	_, ok := level.Script(OnReadyScript)
	assert.True(t, ok)

	_, err = catalog.Get("level-9")
	assert.True(t, errors.Is(err, ErrUnknownLevel))
}

func TestParse_invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "not yaml", doc: "name: [unterminated"},
		{name: "missing name", doc: "tiles: [\"P\"]"},
		{name: "missing tiles", doc: "name: a"},
		{name: "ragged rows", doc: "name: a\ntiles: [\"P.\", \".\"]"},
		{name: "unknown tile", doc: "name: a\ntiles: [\"P?\"]"},
		{name: "no spawn", doc: "name: a\ntiles: [\"..\"]"},
		{name: "negative bombs", doc: "name: a\nbomb_capacity: -1\ntiles: [\"P\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestParse_defaults(t *testing.T) {
	level, err := Parse([]byte("name: tiny\ntiles:\n  - \"P#\"\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultBombCapacity, level.BombCapacity)
	assert.NotNil(t, level.Scripts)
}

func TestLoadFromFS_checksNames(t *testing.T) {
	_, err := LoadFromFS(fstest.MapFS{
		"one.yaml": {Data: []byte("name: two\ntiles: [\"P\"]\n")},
	})
	assert.Error(t, err)

	_, err = LoadFromFS(fstest.MapFS{
		"one.yaml": {Data: []byte("name: one\nnext_map: missing\ntiles: [\"P\"]\n")},
	})
	assert.Error(t, err)

	catalog, err := LoadFromFS(fstest.MapFS{
		"one.yaml": {Data: []byte("name: one\nnext_map: one\ntiles: [\"P\"]\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, catalog.Names())
}

func TestLoad(t *testing.T) {
	catalog, err := Load("")
	require.NoError(t, err)
	assert.Len(t, catalog.Names(), 2)

	catalog, err = Load(t.TempDir() + "/missing")
	require.NoError(t, err, "a missing directory falls back to the builtin levels")
	assert.Len(t, catalog.Names(), 2)

	_, err = Load(t.TempDir())
	assert.Error(t, err, "an empty directory has no levels")
}
