package luahost

import "context"

// Go has no portable, idiomatic way to name or enumerate goroutines the way
// spec.md's "stable thread name prefix" technique assumes, so the VM
// Container's thread-identity predicate is realized here as a marker
// carried on the same context.Context that already holds the
// ExecutionContext (see execCtxKey in interfaces.go). The marker is applied
// to the context of every coroutine thread: at creation and again on every
// resume for script-created coroutines (coroutine_hooks.go), and once for
// the Supervisor's system coroutine (supervisor.go). Every other context in
// the process is unmarked and therefore "must lock".
type lockKey struct{}

// withWorkerMarker returns a context reporting that the VM lock is already
// held by the goroutine that resumes whatever coroutine runs under it.
func withWorkerMarker(ctx context.Context) context.Context {
	return context.WithValue(ctx, lockKey{}, true)
}

// lockAlreadyHeld reports whether ctx was derived from withWorkerMarker,
// i.e. whether the calling goroutine is a coroutine worker thread whose
// originating host goroutine is already parked holding the lock.
func lockAlreadyHeld(ctx context.Context) bool {
	held, _ := ctx.Value(lockKey{}).(bool)
	return held
}
