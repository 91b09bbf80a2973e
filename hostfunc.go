package luahost

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/northbeam-labs/luahost/errz"
)

// pendingSuspend is the value a suspendable host function's GFunction yields
// to the Invocation Supervisor: a Future to wait on, plus a token used only
// for log correlation.
type pendingSuspend struct {
	future Future
	token  suspendToken
}

// resumeSignal is the value the Supervisor resumes a system coroutine with,
// once its pendingSuspend's Future resolves.
type resumeSignal struct {
	value any
	err   error
}

// gatherArgs converts a GFunction's positional arguments to host values. It
// must not call FromLua/container.withLock: a GFunction already executes
// under the container's lock on the goroutine that acquired it, and the
// plain sync.Mutex backing that lock is not reentrant across a second Lock
// call on the same goroutine.
func gatherArgs(rt *Runtime, L *lua.LState) ([]any, error) {
	n := L.GetTop()
	args := make([]any, n)
	for i := 1; i <= n; i++ {
		v, err := scalarOrTable(rt, L.Get(i))
		if err != nil {
			return nil, err
		}
		args[i-1] = v
	}
	return args, nil
}

// NewFunction wraps f as an ordinary (non-suspending) host function
// registerable as a Lua global or table field. f runs synchronously and its
// return value is converted back across the bridge.
func NewFunction(name string, f func(ctx context.Context, ec *ExecutionContext, args []any) (any, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		ctx := L.Context()
		ec := executionContextFrom(ctx)
		if ec == nil {
			L.RaiseError("%s called outside of a runtime invocation", name)
			return 0
		}
		args, err := gatherArgs(ec.Runtime, L)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		result, err := f(ctx, ec, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		L.Push(ToLua(L, result))
		return 1
	}
}

// NewSuspendable wraps f as a long-running host function. Calling it from an
// immediate-mode invocation is a script-visible error. Calling it from a
// suspendable invocation calls f and then yields the enclosing system
// coroutine with a pendingSuspend marker carrying f's Future, which the
// Supervisor unwraps, awaits, and resumes with a resumeSignal. f itself runs
// before the yield, while the VM lock is held. The lock is released for the
// entire time between the yield and the resume, so the returned Future's
// OnComplete callback runs without it held.
func NewSuspendable(name string, f func(ctx context.Context, ec *ExecutionContext, args []any) (Future, error)) lua.LGFunction {
	return func(L *lua.LState) int {
		ctx := L.Context()
		ec := executionContextFrom(ctx)
		if ec == nil {
			L.RaiseError("%s called outside of a runtime invocation", name)
			return 0
		}
		if ec.Mode != ModeSuspendable {
			L.RaiseError("Cannot use long-running editor function in immediate context.")
			return 0
		}
		args, err := gatherArgs(ec.Runtime, L)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}
		future, err := f(ctx, ec, args)
		if err != nil {
			L.RaiseError("%s", err.Error())
			return 0
		}

		ps := &pendingSuspend{future: future, token: newSuspendToken()}
		ec.Runtime.logSuspend(name, ps.token)
		marker := L.NewUserData()
		marker.Value = ps

		rets := L.Yield(marker)
		if len(rets) == 0 {
			L.RaiseError("%s: suspended call resumed without a result", name)
			return 0
		}
		ud, ok := rets[0].(*lua.LUserData)
		if !ok {
			L.RaiseError("%s: suspended call resumed with a malformed result", name)
			return 0
		}
		sig, ok := ud.Value.(*resumeSignal)
		if !ok {
			L.RaiseError("%s: suspended call resumed with a malformed result", name)
			return 0
		}
		if sig.err != nil {
			L.RaiseError("%s", sig.err.Error())
			return 0
		}
		L.Push(ToLua(L, sig.value))
		return 1
	}
}

// hostError turns a non-StructuredError into one tagged ErrHost, leaving an
// existing StructuredError's kind untouched.
func hostError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errz.StructuredError); ok {
		return err
	}
	return errz.Wrap(errz.ErrHost, err, err.Error())
}
