package luahost

import (
	_ "embed"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/northbeam-labs/luahost/errz"
	"github.com/northbeam-labs/luahost/internal/luabit"
)

//go:embed coronest.lua
var coronestSource string

// bootstrap installs the standard library subset spec.md names (base,
// table, string, math, os, io, coroutine, package, plus the bit module
// gopher-lua doesn't bundle), replaces require() and io.open with
// sandboxed equivalents, rebinds the global coroutine table to an isolated
// namespace produced by coronest.lua, and installs the env global.
func bootstrap(rt *Runtime, L *lua.LState) error {
	for _, open := range []lua.LGFunction{
		lua.OpenBase,
		lua.OpenPackage,
		lua.OpenTable,
		lua.OpenString,
		lua.OpenMath,
		lua.OpenOs,
		lua.OpenIo,
		lua.OpenCoroutine,
		luabit.Open,
	} {
		L.Push(L.NewFunction(open))
		if err := L.PCall(0, lua.MultRet, nil); err != nil {
			return errz.Wrap(errz.ErrHost, err, "failed to install standard library")
		}
	}

	installContextPropagation(L)

	userNS, err := installCoroutineNamespace(L, "user")
	if err != nil {
		return err
	}
	rt.userNS = userNS
	L.SetGlobal("coroutine", userNS)
	packageTable, ok := L.GetGlobal("package").(*lua.LTable)
	if ok {
		loaded, ok := L.GetField(packageTable, "loaded").(*lua.LTable)
		if ok {
			loaded.RawSetString("coroutine", userNS)
		}
	}

	installSandboxedRequire(rt, L, packageTable)
	installSandboxedIO(rt, L)
	installOutputRedirection(rt, L)
	installEnv(rt, L)

	return nil
}

// installOutputRedirection points print() and io.write() at the runtime's
// configured out writer (WithOut) instead of the process's own stdout, so an
// embedding host can capture or discard script output. Only those two
// functions are redirected: io.stderr still refers to the process's own
// stderr, and the WithErr writer receives only the runtime's log output.
func installOutputRedirection(rt *Runtime, L *lua.LState) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, n)
		for i := 1; i <= n; i++ {
			parts[i-1] = L.ToStringMeta(L.Get(i)).String()
		}
		fmt.Fprintln(rt.out, strings.Join(parts, "\t"))
		return 0
	}))

	ioTable, ok := L.GetGlobal("io").(*lua.LTable)
	if !ok {
		return
	}
	ioTable.RawSetString("write", L.NewFunction(func(L *lua.LState) int {
		for i := 1; i <= L.GetTop(); i++ {
			fmt.Fprint(rt.out, L.CheckString(i))
		}
		return 0
	}))
}

// installCoroutineNamespace loads coronest.lua once and calls the factory
// it returns with name, producing one isolated {create, resume, yield,
// status, wrap, running, name} table.
func installCoroutineNamespace(L *lua.LState, name string) (*lua.LTable, error) {
	fn, err := L.LoadString(coronestSource)
	if err != nil {
		return nil, errz.Wrap(errz.ErrHost, err, "failed to load coroutine namespace bootstrap")
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return nil, errz.Wrap(errz.ErrHost, err, "failed to evaluate coroutine namespace bootstrap")
	}
	factory := L.Get(-1)
	L.Pop(1)

	L.Push(factory)
	L.Push(lua.LString(name))
	if err := L.PCall(1, 1, nil); err != nil {
		return nil, errz.Wrap(errz.ErrHost, err, fmt.Sprintf("failed to construct %q coroutine namespace", name))
	}
	ns, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		return nil, errz.New(errz.ErrHost, "coroutine namespace bootstrap did not return a table")
	}
	return ns, nil
}

// installSandboxedRequire replaces package.loaders/package.searchers (the
// exact field gopher-lua exposes is the 5.1-era "loaders", which spec.md
// calls by its 5.2+ name "searchers") with two loaders, package.preload
// first and then one backed by the runtime's ResourceLoader, so require()
// can only ever resolve preloaded modules and paths the host is willing to
// hand over. gopher-lua's require() reads its loader list from the
// registry's _LOADERS entry, so that entry is replaced as well.
func installSandboxedRequire(rt *Runtime, L *lua.LState, packageTable *lua.LTable) {
	if packageTable == nil {
		return
	}
	loaders := L.NewTable()
	loaders.Append(L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if preload, ok := L.GetField(packageTable, "preload").(*lua.LTable); ok {
			if fn := preload.RawGetString(name); fn != lua.LNil {
				L.Push(fn)
				return 1
			}
		}
		L.Push(lua.LString(fmt.Sprintf("\n\tno field package.preload[%q]", name)))
		return 1
	}))
	loaders.Append(L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		src, ok := rt.loader.Load(path)
		if !ok {
			L.Push(lua.LString(fmt.Sprintf("\n\tno resource named %q", path)))
			return 1
		}
		fn, err := L.LoadString(string(src))
		if err != nil {
			L.RaiseError("error loading module %q: %s", path, err.Error())
			return 0
		}
		L.Push(fn)
		return 1
	}))
	packageTable.RawSetString("loaders", loaders)
	packageTable.RawSetString("searchers", loaders)
	L.SetField(L.Get(lua.RegistryIndex), "_LOADERS", loaders)
}

// installSandboxedIO replaces io.open with a version that resolves every
// path through the runtime's PathSandbox first, refusing anything that
// escapes the project root.
func installSandboxedIO(rt *Runtime, L *lua.LState) {
	ioTable, ok := L.GetGlobal("io").(*lua.LTable)
	if !ok {
		return
	}
	ioTable.RawSetString("open", L.NewFunction(func(L *lua.LState) int {
		path := L.CheckString(1)
		mode := "r"
		if L.GetTop() >= 2 {
			mode = L.CheckString(2)
		}
		if rt.sandbox == nil {
			L.Push(lua.LNil)
			L.Push(lua.LString("sandbox not configured"))
			return 2
		}
		resolved, err := rt.sandbox.Resolve(path)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
		return luaOpenFile(L, resolved, mode)
	}))
}

// installEnv exposes the runtime's merged environment overlay as a global
// env table, converted once through ToLua at bootstrap time.
func installEnv(rt *Runtime, L *lua.LState) {
	L.SetGlobal("env", ToLua(L, rt.env))
}
