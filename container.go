package luahost

import (
	"context"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/northbeam-labs/luahost/errz"
)

// container owns a single script VM: the globals table (via L), a mutex
// (not reentrant by itself), and the worker-thread exemption described in
// worker.go that lets coroutine code skip it.
// Every operation that reads or writes the globals table or any mutable
// script object must go through withLock, invoke1, or invokeAll.
type container struct {
	L  *lua.LState
	mu sync.Mutex
}

func newContainer(L *lua.LState) *container {
	return &container{L: L}
}

// withLock runs body with the VM lock held, unless the calling goroutine is
// a coroutine worker thread of this VM (lockAlreadyHeld(ctx)), in which
// case body runs directly. The lock is released on every exit path,
// including a panic inside body; the panic is re-raised after unlocking so
// callers still observe it.
func (c *container) withLock(ctx context.Context, body func()) {
	if lockAlreadyHeld(ctx) {
		body()
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	body()
}

// invoke1 calls fn with args under the lock and returns its first result.
func (c *container) invoke1(ctx context.Context, fn lua.LValue, args ...lua.LValue) (lua.LValue, error) {
	var result lua.LValue
	var callErr error
	c.withLock(ctx, func() {
		result, callErr = c.call(fn, 1, args...)
	})
	if callErr != nil {
		return nil, callErr
	}
	return result, nil
}

// invokeAll calls fn with args under the lock and returns every result.
func (c *container) invokeAll(ctx context.Context, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	var callErr error
	c.withLock(ctx, func() {
		results, callErr = c.callAll(fn, args...)
	})
	if callErr != nil {
		return nil, callErr
	}
	return results, nil
}

func (c *container) call(fn lua.LValue, nret int, args ...lua.LValue) (lua.LValue, error) {
	top := c.L.GetTop()
	c.L.Push(fn)
	for _, a := range args {
		c.L.Push(a)
	}
	if err := c.L.PCall(len(args), nret, nil); err != nil {
		c.L.SetTop(top)
		return nil, scriptCallError(err)
	}
	if c.L.GetTop() <= top {
		return lua.LNil, nil
	}
	result := c.L.Get(-1)
	c.L.SetTop(top)
	return result, nil
}

func (c *container) callAll(fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	top := c.L.GetTop()
	c.L.Push(fn)
	for _, a := range args {
		c.L.Push(a)
	}
	if err := c.L.PCall(len(args), lua.MultRet, nil); err != nil {
		c.L.SetTop(top)
		return nil, scriptCallError(err)
	}
	n := c.L.GetTop() - top
	results := make([]lua.LValue, n)
	for i := 0; i < n; i++ {
		results[i] = c.L.Get(top + 1 + i)
	}
	c.L.SetTop(top)
	return results, nil
}

// scriptCallError converts a gopher-lua call error into a
// *errz.StructuredError tagged ErrScript, preserving the Lua message.
func scriptCallError(err error) error {
	if lerr, ok := err.(*lua.ApiError); ok {
		return errz.New(errz.ErrScript, lua.LVAsString(lerr.Object))
	}
	return errz.Wrap(errz.ErrScript, err, "script call failed")
}

func (c *container) close() {
	c.L.Close()
}
