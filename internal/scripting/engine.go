package scripting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ErrNoBehavior is returned when no script registered the invoked tag.
var ErrNoBehavior = errors.New("scripting: no behavior registered")

// Engine wraps a single gopher-lua VM hosting behaviour tags.
// Single-goroutine access only (pulse loop).
//
// Scripts register handlers in the global behaviors table:
//
//	behaviors["cityguard"] = function(ctx) ... return true end
//
// and may define hook functions such as on_zone_reset(zone).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: core/ first, then behavior/ and zone/.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("behaviors", vm.NewTable())

	e := &Engine{vm: vm, log: log}
	e.registerAPI()

	for _, sub := range []string{"core", "behavior", "zone"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}
	return e, nil
}

// loadDir loads all .lua files in a directory in name order.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// registerAPI exposes the host functions scripts may call.
func (e *Engine) registerAPI() {
	e.vm.SetGlobal("log_info", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("lua", zap.String("msg", L.CheckString(1)))
		return 0
	}))
}

// Context is what a behaviour handler sees about the entity it runs for.
type Context struct {
	Kind  string // "mobile", "object" or "room"
	Vnum  int32
	Room  int32 // vnum of the room the entity is in, -1 if none
	Pulse uint64
}

func (e *Engine) contextTable(ctx Context) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("vnum", lua.LNumber(ctx.Vnum))
	t.RawSetString("room", lua.LNumber(ctx.Room))
	t.RawSetString("pulse", lua.LNumber(ctx.Pulse))
	return t
}

// HasBehavior reports whether a script registered tag.
func (e *Engine) HasBehavior(tag string) bool {
	reg, ok := e.vm.GetGlobal("behaviors").(*lua.LTable)
	if !ok {
		return false
	}
	_, ok = reg.RawGetString(tag).(*lua.LFunction)
	return ok
}

// Behaviors returns the registered tags, sorted.
func (e *Engine) Behaviors() []string {
	reg, ok := e.vm.GetGlobal("behaviors").(*lua.LTable)
	if !ok {
		return nil
	}
	var tags []string
	reg.ForEach(func(k, v lua.LValue) {
		if _, ok := v.(*lua.LFunction); ok {
			tags = append(tags, k.String())
		}
	})
	sort.Strings(tags)
	return tags
}

// Invoke runs the handler registered for tag. It reports whether the
// handler claimed the event by returning true.
func (e *Engine) Invoke(tag string, ctx Context) (bool, error) {
	reg, ok := e.vm.GetGlobal("behaviors").(*lua.LTable)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoBehavior, tag)
	}
	fn, ok := reg.RawGetString(tag).(*lua.LFunction)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoBehavior, tag)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.contextTable(ctx)); err != nil {
		e.log.Error("lua behavior error", zap.String("tag", tag), zap.Error(err))
		return false, err
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return lua.LVAsBool(result), nil
}

// OnZoneReset calls the on_zone_reset hook if a script defined one.
func (e *Engine) OnZoneReset(vnum int32, name string) {
	fn := e.vm.GetGlobal("on_zone_reset")
	if fn == lua.LNil {
		return
	}
	t := e.vm.NewTable()
	t.RawSetString("vnum", lua.LNumber(vnum))
	t.RawSetString("name", lua.LString(name))
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua on_zone_reset error", zap.Int32("zone", vnum), zap.Error(err))
	}
}

// Close releases the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
