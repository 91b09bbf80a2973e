package luahost

import (
	"io"

	"github.com/rs/zerolog"
)

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithOut sets the writer the script-visible print()/io.write use for
// standard output. Defaults to os.Stdout.
func WithOut(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.out = w
	}
}

// WithErr sets the writer used for diagnostic output distinct from
// print()/io.write. Defaults to os.Stderr.
func WithErr(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.err = w
	}
}

// WithLogger supplies a zerolog logger for the runtime's own structured
// logging (suspension and resumption of host calls). Defaults to a logger
// writing to the WithErr writer (os.Stderr unless set).
func WithLogger(log zerolog.Logger) Option {
	return func(rt *Runtime) {
		rt.log = log
		rt.logCustom = true
	}
}

// WithEnv overlays the given values onto the table scripts see as the env
// global. Nested maps are merged recursively key by key rather than
// replacing the destination wholesale, so a later WithEnv can override a
// single nested setting without clobbering its siblings. Later options win
// on leaf key conflicts.
func WithEnv(env map[string]any) Option {
	return func(rt *Runtime) {
		mergeEnv(rt.env, env)
	}
}

// mergeEnv recursively overlays src onto dst in place.
func mergeEnv(dst, src map[string]any) {
	for k, v := range src {
		if srcChild, ok := v.(map[string]any); ok {
			if dstChild, ok := dst[k].(map[string]any); ok {
				mergeEnv(dstChild, srcChild)
				continue
			}
			merged := map[string]any{}
			mergeEnv(merged, srcChild)
			dst[k] = merged
			continue
		}
		dst[k] = v
	}
}

// WithUIScheduler supplies the primitive the Supervisor uses to hop onto the
// host's UI thread for a refreshing suspension. Defaults to running the
// submitted function inline, which is only appropriate for hosts with no
// real UI thread of their own (tests, CLI use).
func WithUIScheduler(ui UIScheduler) Option {
	return func(rt *Runtime) {
		rt.ui = ui
	}
}

// WithEvalContextSource supplies the primitive that mints a fresh
// EvalContext and commits a stale one's pending updates on a refreshing
// suspension. Without one, refresh requests are honored by the UIScheduler
// hop alone and the ExecutionContext's Eval value is left unchanged.
func WithEvalContextSource(src EvalContextSource) Option {
	return func(rt *Runtime) {
		rt.evalSource = src
	}
}
