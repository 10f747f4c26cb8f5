package scripts

import (
	"errors"
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

var ErrUnknownScript = errors.New("unknown script")

// Notifier receives the text of notice() calls.
type Notifier func(text string)

// Runner executes the current level's Lua scripts against a world. Every run
// gets a fresh interpreter; state that must outlive a run goes through
// set_var/get_var.
type Runner struct {
	world  *world.World
	notify Notifier
	logger *log.Logger
}

func NewRunner(w *world.World, notify Notifier) *Runner {
	if notify == nil {
		notify = func(string) {}
	}
	return &Runner{
		world:  w,
		notify: notify,
		logger: log.Named("scripts"),
	}
}

// Has reports whether the level defines the named script.
func (r *Runner) Has(name string) bool {
	_, ok := r.world.Level().Script(name)
	return ok
}

// Run executes a named script.
func (r *Runner) Run(name string) error {
	source, ok := r.world.Level().Script(name)
	if !ok {
		return fmt.Errorf("%w: %q in level %s", ErrUnknownScript, name, r.world.Map())
	}

	state := lua.NewState()
	openLibraries(state)
	for _, fn := range r.functions() {
		state.PushGoFunction(fn.Function)
		state.SetGlobal(fn.Name)
	}

	if err := lua.LoadString(state, source); err != nil {
		return fmt.Errorf("failed to load script %q: %w", name, err)
	}
	snap := r.world.Snapshot()
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		r.world.Restore(snap)
		return fmt.Errorf("script %q failed: %w", name, err)
	}

	r.logger.Debug("Ran script %q in level %s", name, r.world.Map())
	return nil
}

// openLibraries loads the libraries level scripts may use. Scripts run on
// every peer, so nothing that reaches the file system or the process is
// available.
func openLibraries(state *lua.State) {
	libs := []lua.RegistryFunction{
		{Name: "_G", Function: lua.BaseOpen},
		{Name: "string", Function: lua.StringOpen},
		{Name: "table", Function: lua.TableOpen},
		{Name: "math", Function: lua.MathOpen},
	}
	for _, lib := range libs {
		lua.Require(state, lib.Name, lib.Function, true)
		state.Pop(1)
	}
	for _, name := range []string{"dofile", "loadfile"} {
		state.PushNil()
		state.SetGlobal(name)
	}
}

func (r *Runner) functions() []lua.RegistryFunction {
	return []lua.RegistryFunction{
		{Name: "set_var", Function: r.setVar},
		{Name: "get_var", Function: r.getVar},
		{Name: "add_gold", Function: r.addGold},
		{Name: "set_tile", Function: r.setTile},
		{Name: "kill", Function: r.kill},
		{Name: "notice", Function: r.notice},
	}
}

func (r *Runner) setVar(state *lua.State) int {
	name := lua.CheckString(state, 1)
	value := lua.CheckString(state, 2)
	r.world.SetVar(name, value)
	return 0
}

func (r *Runner) getVar(state *lua.State) int {
	value, ok := r.world.Var(lua.CheckString(state, 1))
	if !ok {
		state.PushNil()
		return 1
	}
	state.PushString(value)
	return 1
}

func (r *Runner) addGold(state *lua.State) int {
	x := lua.CheckInteger(state, 1)
	y := lua.CheckInteger(state, 2)
	gold, err := r.world.AddGold(x, y)
	if err != nil {
		lua.Errorf(state, "add_gold: %s", err.Error())
		return 0
	}
	state.PushInteger(int(gold.ID))
	return 1
}

func (r *Runner) setTile(state *lua.State) int {
	x := lua.CheckInteger(state, 1)
	y := lua.CheckInteger(state, 2)
	tile, ok := world.ParseTile(lua.CheckString(state, 3))
	if !ok {
		lua.ArgumentError(state, 3, "unknown tile")
		return 0
	}
	if err := r.world.SetTile(x, y, tile); err != nil {
		lua.Errorf(state, "set_tile: %s", err.Error())
	}
	return 0
}

func (r *Runner) kill(state *lua.State) int {
	id := lua.CheckInteger(state, 1)
	if err := r.world.Kill(uint32(id)); err != nil {
		lua.Errorf(state, "kill: %s", err.Error())
	}
	return 0
}

func (r *Runner) notice(state *lua.State) int {
	r.notify(lua.CheckString(state, 1))
	return 0
}
