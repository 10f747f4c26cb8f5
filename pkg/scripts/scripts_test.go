package scripts

import (
	"testing"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLevel = `
name: scripted
tiles:
  - "#####"
  - "#.P.#"
  - "#####"
scripts:
  counter: |
    local n = tonumber(get_var("n") or "0")
    set_var("n", tostring(n + 1))
  missing_var: |
    if get_var("nope") ~= nil then error("expected nil") end
  bad_tile: |
    set_tile(1, 1, "P")
  outside: |
    set_tile(40, 40, ".")
  syntax: |
    this is not lua
  slay: |
    kill(1)
  half_done: |
    set_tile(1, 1, "#")
    set_var("k", "v")
    add_gold(3, 1)
    error("boom")
  sandbox: |
    if os ~= nil or io ~= nil or dofile ~= nil or loadfile ~= nil then
      error("unsafe library loaded")
    end
    local t = {}
    table.insert(t, string.upper("a"))
    set_var("checked", t[1] .. math.floor(2.5))
`

func newTestRunner(t *testing.T, source string) (*Runner, *world.World, *[]string) {
	level, err := levels.Parse([]byte(source))
	require.NoError(t, err)
	w := world.New(level)
	var notices []string
	return NewRunner(w, func(text string) { notices = append(notices, text) }), w, &notices
}

func TestRunner_builtinLevel(t *testing.T) {
	catalog, err := levels.LoadBuiltin()
	require.NoError(t, err)
	level, err := catalog.Get("level-1")
	require.NoError(t, err)

	w := world.New(level)
	var notices []string
	runner := NewRunner(w, func(text string) { notices = append(notices, text) })

	require.True(t, runner.Has(levels.OnReadyScript))
	require.NoError(t, runner.Run(levels.OnReadyScript))
	goal, ok := w.Var("gold_goal")
	assert.True(t, ok)
	assert.Equal(t, "3", goal)
	assert.Equal(t, []string{"collect the gold"}, notices)

	require.NoError(t, runner.Run("open_exit"))
	assert.Equal(t, world.Empty, w.Tile(8, 2))

	before := w.GoldRemaining()
	require.NoError(t, runner.Run("bonus"))
	assert.Equal(t, before+1, w.GoldRemaining())
}

func TestRunner_varsPersistAcrossRuns(t *testing.T) {
	runner, w, _ := newTestRunner(t, testLevel)

	require.NoError(t, runner.Run("counter"))
	require.NoError(t, runner.Run("counter"))
	n, _ := w.Var("n")
	assert.Equal(t, "2", n)

	assert.NoError(t, runner.Run("missing_var"))
}

func TestRunner_errors(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{name: "unknown tile", script: "bad_tile"},
		{name: "out of bounds", script: "outside"},
		{name: "syntax error", script: "syntax"},
		{name: "unknown entity", script: "slay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, _, _ := newTestRunner(t, testLevel)
			assert.Error(t, runner.Run(tt.script))
		})
	}
}

func TestRunner_failedScriptLeavesWorldUntouched(t *testing.T) {
	runner, w, _ := newTestRunner(t, testLevel)
	gold := w.GoldRemaining()

	require.Error(t, runner.Run("half_done"))

	assert.Equal(t, world.Empty, w.Tile(1, 1))
	_, ok := w.Var("k")
	assert.False(t, ok)
	assert.Equal(t, gold, w.GoldRemaining())
}

func TestRunner_librariesAreRestricted(t *testing.T) {
	runner, w, _ := newTestRunner(t, testLevel)

	require.NoError(t, runner.Run("sandbox"))
	v, _ := w.Var("checked")
	assert.Equal(t, "A2", v)
}

func TestRunner_unknownScript(t *testing.T) {
	runner, _, _ := newTestRunner(t, testLevel)

	assert.False(t, runner.Has("nope"))
	assert.ErrorIs(t, runner.Run("nope"), ErrUnknownScript)
}
