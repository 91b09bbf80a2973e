package luahost

import (
	"context"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/require"
)

func newBareLuaState(t *testing.T) *lua.LState {
	t.Helper()
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	t.Cleanup(L.Close)
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenCoroutine} {
		L.Push(L.NewFunction(open))
		require.NoError(t, L.PCall(0, lua.MultRet, nil))
	}
	return L
}

// TestCoroutineNamespaceResumesItsOwn verifies that an ordinary
// create/resume/yield dance works within a single namespace.
func TestCoroutineNamespaceResumesItsOwn(t *testing.T) {
	L := newBareLuaState(t)
	ns, err := installCoroutineNamespace(L, "user")
	require.NoError(t, err)
	L.SetGlobal("ns", ns)

	require.NoError(t, L.DoString(`
		local co = ns.create(function(a)
			local b = ns.yield(a + 1)
			return b + 1
		end)
		ok1, v1 = ns.resume(co, 10)
		ok2, v2 = ns.resume(co, v1)
	`))

	require.Equal(t, lua.LTrue, L.GetGlobal("ok1"))
	require.Equal(t, lua.LNumber(11), L.GetGlobal("v1"))
	require.Equal(t, lua.LTrue, L.GetGlobal("ok2"))
	require.Equal(t, lua.LNumber(12), L.GetGlobal("v2"))
}

// TestCoroutineNamespacesAreIsolated verifies spec.md's invariant that a
// coroutine created by one namespace cannot be resumed through another.
func TestCoroutineNamespacesAreIsolated(t *testing.T) {
	L := newBareLuaState(t)
	a, err := installCoroutineNamespace(L, "a")
	require.NoError(t, err)
	b, err := installCoroutineNamespace(L, "b")
	require.NoError(t, err)
	L.SetGlobal("a", a)
	L.SetGlobal("b", b)

	require.NoError(t, L.DoString(`
		local co = a.create(function() return 1 end)
		local ok, err = pcall(b.resume, co)
		crossResumeOK = ok
	`))
	require.Equal(t, lua.LFalse, L.GetGlobal("crossResumeOK"))
}

// TestUserCoroutineAlongsideSuspendingInvocation covers spec.md's scenario
// of script-level coroutine use within a suspendable invocation: a script's
// own generator coroutine, entirely unrelated to any suspendable host call,
// must work normally in the same invocation that also calls wait().
// Suspendable host functions are driven by yielding the nearest enclosing
// native coroutine, so calling one from inside a script-created coroutine
// only suspends that inner coroutine, not the invocation; scripts that want
// a suspendable call's result must make it from the invocation's own top
// level (or propagate the yield themselves), not from inside a nested
// generator coroutine.
func TestUserCoroutineAlongsideSuspendingInvocation(t *testing.T) {
	rt := testRuntime(t)

	rt.Globals().RawSetString("wait", NewSuspendable("wait", func(ctx context.Context, ec *ExecutionContext, args []any) (Future, error) {
		f := &ManualFuture{}
		f.Resolve(SuspendResultSuccess(int64(1), false))
		return f, nil
	}))

	code, err := rt.Read(`
		local gen = coroutine.create(function()
			local a = coroutine.yield(10)
			return a + 1
		end)
		local ok1, v1 = coroutine.resume(gen)
		local ok2, v2 = coroutine.resume(gen, v1)

		local w = wait()
		return v2 + w
	`, "alongside.lua")
	require.NoError(t, err)

	done := make(chan struct{})
	var result any
	var evalErr error
	rt.EvalSuspending(context.Background(), code, func(r any, e error) {
		result, evalErr = r, e
		close(done)
	})
	<-done

	require.NoError(t, evalErr)
	require.Equal(t, int64(12), result)
}
