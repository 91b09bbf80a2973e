package luahost

import lua "github.com/yuin/gopher-lua"

// installContextPropagation wraps the native coroutine.create/resume so
// every coroutine thread (whichever namespace ends up wrapping it) carries
// the same ExecutionContext as the code that created or is resuming it,
// with the worker marker set so the VM lock is recognized as already held
// by whatever goroutine drives that thread. It must run after OpenCoroutine
// installs the native functions and before coronest.lua captures `coroutine`
// into its own `local native` upvalue, so every namespace it produces
// inherits the wrapped versions transparently.
func installContextPropagation(L *lua.LState) {
	coTable, ok := L.GetGlobal("coroutine").(*lua.LTable)
	if !ok {
		return
	}

	nativeCreate := L.GetField(coTable, "create")
	coTable.RawSetString("create", L.NewFunction(func(L *lua.LState) int {
		fn := L.CheckFunction(1)
		L.Push(nativeCreate)
		L.Push(fn)
		if err := L.PCall(1, 1, nil); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		ret := L.Get(-1)
		if thread, ok := ret.(*lua.LState); ok {
			thread.SetContext(withWorkerMarker(L.Context()))
		}
		L.Push(ret)
		return 1
	}))

	nativeResume := L.GetField(coTable, "resume")
	coTable.RawSetString("resume", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		thread, ok := L.Get(1).(*lua.LState)
		if !ok {
			L.ArgError(1, "coroutine expected")
			return 0
		}
		thread.SetContext(withWorkerMarker(L.Context()))

		L.Push(nativeResume)
		for i := 1; i <= n; i++ {
			L.Push(L.Get(i))
		}
		if err := L.PCall(n, lua.MultRet, nil); err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		return L.GetTop() - n
	}))
}
