package luahost

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/northbeam-labs/luahost/errz"
)

// Code is a compiled script chunk, ready to be run with Eval.
type Code struct {
	name string
	fn   *lua.LFunction
}

// Name returns the chunk name Code was compiled with, used in script-level
// stack traces and error messages.
func (c *Code) Name() string { return c.name }

// Read compiles chunk under name (used only for diagnostics; pass "" to get
// a generated name). Compilation happens under the VM lock since gopher-lua
// parses directly against the owning LState.
func (r *Runtime) Read(chunk string, name string) (*Code, error) {
	if name == "" {
		name = "<script>"
	}
	var fn *lua.LFunction
	var err error
	r.container.withLock(context.Background(), func() {
		fn, err = r.container.L.Load(strings.NewReader(chunk), name)
	})
	if err != nil {
		return nil, errz.Wrap(errz.ErrScript, err, err.Error())
	}
	return &Code{name: name, fn: fn}, nil
}
