package luahost

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/northbeam-labs/luahost/errz"
)

// InvokeImmediate calls fn synchronously with no suspensions permitted. Any
// attempt to call a suspendable host function from within it is a
// script-visible error (see NewSuspendable). InvokeImmediate never creates a
// coroutine: fn runs directly on the runtime's root VM state.
func (r *Runtime) InvokeImmediate(ctx context.Context, eval EvalContext, fn lua.LValue, args ...lua.LValue) (any, error) {
	ec := &ExecutionContext{Eval: eval, Runtime: r, Mode: ModeImmediate}
	callCtx := withExecutionContext(ctx, ec)

	var result lua.LValue
	var err error
	r.container.withLock(callCtx, func() {
		r.container.L.SetContext(callCtx)
		result, err = r.container.call(fn, 1, args...)
	})
	if err != nil {
		return nil, translateImmediateYieldError(err)
	}
	return FromLua(callCtx, r, result)
}

// translateImmediateYieldError recognizes gopher-lua's own wording for a
// NewSuspendable call reaching L.Yield on the root state instead of a
// coroutine (which is what happens when a suspendable host function is
// called from an immediate invocation without going through
// ModeSuspendable's own rejection first) and rewrites it to spec.md's
// canonical message. Matched by strings.Contains against gopher-lua's
// documented wording rather than equality, since it is not a stable API.
func translateImmediateYieldError(err error) error {
	if se, ok := err.(*errz.StructuredError); ok {
		msg := se.Message
		if strings.Contains(msg, "attempt to yield from outside a coroutine") ||
			strings.Contains(msg, "cannot resume non-suspended coroutine") {
			return errz.New(errz.ErrScript, "Cannot use long-running editor function in this context")
		}
	}
	return err
}

// InvokeSuspending calls fn on a dedicated system coroutine, per spec.md's
// Coroutine Split: the coroutine is invisible to script code, which only
// ever observes its own "user" namespace coroutines. If fn (or something it
// calls) invokes a suspendable host function, the Supervisor parks the
// pending Future's continuation and returns to the caller's goroutine
// immediately, without the VM lock held. done is called exactly once, from
// whatever goroutine is running when the invocation finally completes.
func (r *Runtime) InvokeSuspending(ctx context.Context, eval EvalContext, fn *lua.LFunction, args []lua.LValue, done func(any, error)) {
	ec := &ExecutionContext{Eval: eval, Runtime: r, Mode: ModeSuspendable}
	callCtx := withExecutionContext(ctx, ec)

	co := r.container.L.NewThread()
	// Only the coroutine's own context carries the worker marker: code
	// running on co's goroutine (L.Context() read from inside it) must see
	// the lock as already held, but the goroutine making this very Resume
	// call has not locked anything yet and must take the mutex for real.
	co.SetContext(withWorkerMarker(callCtx))

	var state lua.ResumeState
	var rets []lua.LValue
	var resumeErr error
	r.container.withLock(callCtx, func() {
		state, rets, resumeErr = r.container.L.Resume(co, fn, args...)
	})
	r.continueDrive(callCtx, ec, co, state, rets, resumeErr, done)
}

// continueDrive interprets the outcome of one Resume call on the system
// coroutine co. It is called after the withLock body that made the Resume
// call has returned, so the VM lock is not held while it finishes the
// invocation or registers OnComplete on a pending suspension's Future.
func (r *Runtime) continueDrive(ctx context.Context, ec *ExecutionContext, co *lua.LState, state lua.ResumeState, rets []lua.LValue, resumeErr error, done func(any, error)) {
	switch state {
	case lua.ResumeError:
		done(nil, translateSystemYieldError(resumeErr))
		return
	case lua.ResumeOK:
		if len(rets) == 0 {
			done(nil, nil)
			return
		}
		result, err := FromLua(ctx, r, rets[0])
		done(result, err)
		return
	case lua.ResumeYield:
		r.handleYield(ctx, ec, co, rets, done)
		return
	default:
		done(nil, errz.New(errz.ErrHost, "unexpected coroutine resume state"))
	}
}

// handleYield unwraps the pendingSuspend marker a suspendable host function
// yielded, awaits its Future without holding the VM lock, and re-enters
// continueDrive once it resolves. A refresh-requesting resolution is routed
// through the runtime's UIScheduler first, where the EvalContextSource (if
// one is configured) commits the stale context and mints a fresh one, per
// spec.md's refresh-before-resume rule. A Future that fails with a host
// error ends the invocation with that error; the script is not resumed.
func (r *Runtime) handleYield(ctx context.Context, ec *ExecutionContext, co *lua.LState, rets []lua.LValue, done func(any, error)) {
	ud, ok := firstUserData(rets)
	if !ok {
		done(nil, errz.New(errz.ErrHost, "coroutine yielded outside of a suspendable host call"))
		return
	}
	ps, ok := ud.Value.(*pendingSuspend)
	if !ok {
		done(nil, errz.New(errz.ErrHost, "coroutine yielded outside of a suspendable host call"))
		return
	}

	ps.future.OnComplete(func(res SuspendResult, cbErr error) {
		resume := func() {
			sig := &resumeSignal{}
			switch {
			case cbErr != nil:
				err := hostError(cbErr)
				r.logResume(ps.token, err)
				done(nil, err)
				return
			case res.kind == suspendError:
				sig.err = res.err
			default:
				sig.value = res.value
			}
			r.logResume(ps.token, sig.err)
			marker := r.container.L.NewUserData()
			marker.Value = sig

			var state lua.ResumeState
			var rets []lua.LValue
			var resumeErr error
			r.container.withLock(ctx, func() {
				state, rets, resumeErr = r.container.L.Resume(co, nil, marker)
			})
			r.continueDrive(ctx, ec, co, state, rets, resumeErr, done)
		}

		if res.kind == suspendValueRefresh {
			r.ui.Submit(func() {
				if r.evalSource != nil {
					r.evalSource.Commit(ec.Eval)
					ec.Eval = r.evalSource.Fresh()
				}
				resume()
			})
			return
		}
		resume()
	})
}

func firstUserData(rets []lua.LValue) (*lua.LUserData, bool) {
	if len(rets) == 0 {
		return nil, false
	}
	ud, ok := rets[0].(*lua.LUserData)
	return ud, ok
}

// translateSystemYieldError converts a ResumeError into a StructuredError.
// A *lua.ApiError is gopher-lua's own uncaught-script-error shape: per
// spec.md, "an ok=false from resume (i.e., an uncaught script error)
// completes the returned future exceptionally with a script error carrying
// the script's message", so it is tagged ErrScript and carries the Lua
// message verbatim. Anything else means Resume itself failed outside of
// running the script (a malformed coroutine, a closed VM), which is a host
// error, not something the script did.
func translateSystemYieldError(err error) error {
	if err == nil {
		return nil
	}
	if lerr, ok := err.(*lua.ApiError); ok {
		return errz.New(errz.ErrScript, lua.LVAsString(lerr.Object))
	}
	return errz.Wrap(errz.ErrHost, err, "coroutine resume failed")
}
