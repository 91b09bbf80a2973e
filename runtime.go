package luahost

import (
	"io"
	"os"

	lua "github.com/yuin/gopher-lua"
	"github.com/rs/zerolog"
)

// Runtime is one embedded script VM: its globals, its script-visible
// coroutine namespace, and the collaborators a host wires in to give scripts
// privileged, sandboxed access to the outside world. A Runtime may be shared
// by many goroutines issuing InvokeImmediate/InvokeSuspending calls at once:
// container.withLock serializes their access to the VM, so those calls never
// run in parallel, matching spec.md's "one script thread of control" model.
type Runtime struct {
	container *container

	loader     ResourceLoader
	sandbox    PathSandbox
	ui         UIScheduler
	evalSource EvalContextSource

	log       zerolog.Logger
	logCustom bool
	out       io.Writer
	err       io.Writer
	env       map[string]any

	userNS *lua.LTable
}

// New constructs a Runtime: a fresh gopher-lua state with the standard
// library subset named in spec.md installed, the script-visible "user"
// coroutine namespace bootstrapped from coronest.lua (the Supervisor's system
// coroutine is a bare L.NewThread and has no namespace table), and the
// sandboxed require()/io.open wired against the given
// ResourceLoader/PathSandbox.
func New(loader ResourceLoader, sandbox PathSandbox, opts ...Option) (*Runtime, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	rt := &Runtime{
		container: newContainer(L),
		loader:    loader,
		sandbox:   sandbox,
		ui:        UISchedulerFunc(func(fn func()) { fn() }),
		out:       os.Stdout,
		err:       os.Stderr,
		env:       map[string]any{},
	}

	for _, opt := range opts {
		opt(rt)
	}

	if !rt.logCustom {
		rt.log = zerolog.New(rt.err).With().Timestamp().Str("component", "luahost").Logger()
	}

	if err := bootstrap(rt, L); err != nil {
		L.Close()
		return nil, err
	}

	return rt, nil
}

// Close releases the underlying VM. A Runtime must not be used afterward.
func (r *Runtime) Close() {
	r.container.close()
}

// Globals returns the VM's global table, for host code that needs to read
// or set a well-known global directly rather than through InvokeImmediate.
func (r *Runtime) Globals() *lua.LTable {
	return r.container.L.Get(lua.GlobalsIndex).(*lua.LTable)
}

// Logger returns the runtime's structured logger.
func (r *Runtime) Logger() zerolog.Logger {
	return r.log
}
