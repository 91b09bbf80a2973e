package luahost

import "context"

// Eval runs a compiled chunk to completion in immediate mode: no suspendable
// host function the chunk calls is allowed to actually suspend. This is the
// mode ordinary top-level script loading runs under.
func (r *Runtime) Eval(ctx context.Context, code *Code) (any, error) {
	eval := r.freshEvalContext()
	return r.InvokeImmediate(ctx, eval, code.fn)
}

// EvalSuspending runs a compiled chunk on a system coroutine, allowing it
// (or anything it calls) to call suspendable host functions. done is
// invoked exactly once when the chunk's top-level execution finishes,
// possibly after one or more asynchronous suspensions.
func (r *Runtime) EvalSuspending(ctx context.Context, code *Code, done func(any, error)) {
	eval := r.freshEvalContext()
	r.InvokeSuspending(ctx, eval, code.fn, nil, done)
}

func (r *Runtime) freshEvalContext() EvalContext {
	if r.evalSource == nil {
		return nil
	}
	return r.evalSource.Fresh()
}
