package luahost

import "github.com/google/uuid"

// suspendKind tags the three shapes a suspendable host call can resolve to,
// per spec.md §4.E: a plain value, a value that also requires a UI-thread
// refresh before the script resumes, or an error raised in the script.
type suspendKind int

const (
	suspendValue suspendKind = iota
	suspendValueRefresh
	suspendError
)

// SuspendResult is what a Future resolves to: either a host value (optionally
// requiring an evaluation-context refresh before the script is resumed) or an
// error, which the Supervisor raises as a Lua error inside the script.
type SuspendResult struct {
	kind    suspendKind
	value   any
	refresh bool
	err     error
}

// SuspendResultSuccess resolves a Future with a host value. If refresh is
// true, the Supervisor hops through the UIScheduler and mints a fresh
// EvalContext before resuming the script with value.
func SuspendResultSuccess(value any, refresh bool) SuspendResult {
	if refresh {
		return SuspendResult{kind: suspendValueRefresh, value: value, refresh: true}
	}
	return SuspendResult{kind: suspendValue, value: value}
}

// SuspendResultError resolves a Future with an error for the script. The
// Supervisor raises it, unchanged, as a Lua error at the script's yield
// point.
func SuspendResultError(err error) SuspendResult {
	return SuspendResult{kind: suspendError, err: err}
}

// suspendToken carries a trace id (a UUID) shared by the log lines of one
// suspension, so a suspension can be matched to its resumption in the logs.
// The Supervisor does not use it to route a Future's resolution; the
// pendingSuspend a coroutine yields carries the Future itself.
type suspendToken struct {
	id string
}

func newSuspendToken() suspendToken {
	return suspendToken{id: uuid.NewString()}
}

func (t suspendToken) String() string { return t.id }
