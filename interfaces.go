package luahost

import "context"

// ResourceLoader is the project/resource layer external collaborator named
// in spec.md: a function from an import path to its byte contents, used by
// the sandboxed require() implementation installed in bootstrap.go. The
// second return value is false when the path does not resolve to anything,
// which require() turns into a "module not found" Lua error rather than a
// host error.
type ResourceLoader interface {
	Load(path string) ([]byte, bool)
}

// ResourceLoaderFunc adapts a plain function to a ResourceLoader.
type ResourceLoaderFunc func(path string) ([]byte, bool)

// Load implements ResourceLoader.
func (f ResourceLoaderFunc) Load(path string) ([]byte, bool) { return f(path) }

// PathSandbox is the filesystem sandbox predicate named in spec.md: it
// resolves a script-supplied path to an absolute path, or reports that the
// path escapes the sandbox. Used by the replacement io.open installed in
// bootstrap.go.
type PathSandbox interface {
	Resolve(path string) (string, error)
}

// PathSandboxFunc adapts a plain function to a PathSandbox.
type PathSandboxFunc func(path string) (string, error)

// Resolve implements PathSandbox.
func (f PathSandboxFunc) Resolve(path string) (string, error) { return f(path) }

// UIScheduler is the "run on UI thread" submission primitive named in
// spec.md. A refresh-requesting SuspendResult causes the Supervisor to hop
// through Submit before resuming the script with a fresh EvalContext.
type UIScheduler interface {
	Submit(fn func())
}

// UISchedulerFunc adapts a plain function to a UIScheduler.
type UISchedulerFunc func(fn func())

// Submit implements UIScheduler.
func (f UISchedulerFunc) Submit(fn func()) { f(fn) }

// Future represents pending asynchronous work, the completable-future
// primitive named in spec.md. It is deliberately minimal: luahost itself
// never constructs a Future (InvokeSuspending reports completion through
// its done callback instead), and only ever consumes one via OnComplete.
// Host suspendable functions return their own Future
// implementation, or the ManualFuture/ChannelFuture helpers in future.go.
type Future interface {
	// OnComplete registers fn to run exactly once, when the future
	// resolves. If the future is already resolved, fn runs synchronously
	// and immediately. fn receives either a SuspendResult and a nil error,
	// or a zero SuspendResult and a non-nil host error.
	OnComplete(fn func(SuspendResult, error))
}

// EvalContext is the opaque host value naming a consistent snapshot of the
// host's data graph, named "Evaluation Context" in spec.md. luahost never
// inspects it; hosts supply an EvalContextSource to mint fresh ones and
// commit pending updates on refresh.
type EvalContext any

// EvalContextSource produces fresh evaluation contexts and commits the
// pending cache updates accumulated against a stale one. Fresh is called
// once per invocation and once per refresh; Commit is called by the
// Supervisor on the UIScheduler between a refreshing suspension's
// resolution and the next resume.
type EvalContextSource interface {
	Fresh() EvalContext
	Commit(stale EvalContext)
}

// Mode tags an ExecutionContext as immediate (no suspensions permitted) or
// suspendable (running under the Supervisor's drive loop).
type Mode int

const (
	// ModeImmediate forbids calling suspendable host functions.
	ModeImmediate Mode = iota
	// ModeSuspendable allows calling suspendable host functions.
	ModeSuspendable
)

func (m Mode) String() string {
	if m == ModeImmediate {
		return "immediate"
	}
	return "suspendable"
}

// ExecutionContext is the per-invocation record exposed to host code called
// from script, named in spec.md. It is carried by the context.Context
// attached to every *lua.LState (root and coroutine) via SetContext/Context,
// re-bound on every VM entry and every coroutine resume.
type ExecutionContext struct {
	Eval    EvalContext
	Runtime *Runtime
	Mode    Mode
}

type execCtxKey struct{}

// withExecutionContext returns a context carrying ec, replacing any
// previously bound ExecutionContext.
func withExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, execCtxKey{}, ec)
}

// executionContextFrom returns the ExecutionContext bound to ctx, or nil if
// none is bound (which should only happen before the first VM entry).
func executionContextFrom(ctx context.Context) *ExecutionContext {
	ec, _ := ctx.Value(execCtxKey{}).(*ExecutionContext)
	return ec
}
