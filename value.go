package luahost

import (
	"context"
	"fmt"
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// Symbol is a host-side symbolic name, as distinct from an ordinary string.
// spec.md's Value Bridge converts Lua table string keys to symbolic-name
// host keys on the way out (FromLua), and both plain strings and Symbols
// collapse to an ordinary Lua string on the way in (ToLua); the asymmetry
// is spec.md's, not an implementation choice.
type Symbol string

// CallableRef is the opaque wrapper FromLua produces for a Lua function
// value: "Functions ... are preserved as opaque wrappers (they remain
// callable only via the Runtime)."
type CallableRef struct {
	rt *Runtime
	fn *lua.LFunction
}

// Call invokes the wrapped function under the VM lock via container.invoke1,
// converting arguments and the result across the bridge.
func (c *CallableRef) Call(ctx context.Context, args ...any) (any, error) {
	luaArgs := make([]lua.LValue, len(args))
	for i, a := range args {
		luaArgs[i] = ToLua(c.rt.container.L, a)
	}
	result, err := c.rt.container.invoke1(ctx, c.fn, luaArgs...)
	if err != nil {
		return nil, err
	}
	return FromLua(ctx, c.rt, result)
}

// ThreadRef is the opaque wrapper FromLua produces for a Lua coroutine
// (thread) value. It exists only so a thread value can pass through the
// bridge without exposing raw *lua.LState to host code; the core never
// resumes a ThreadRef itself (only the Invocation Supervisor resumes the
// system coroutine it creates internally).
type ThreadRef struct {
	rt     *Runtime
	thread *lua.LState
}

// opaque wraps any other host object that has no direct Lua representation.
type opaque struct {
	value any
}

// ToLua converts a host value to a script value per spec.md §4.A
// (Host → script). Table conversion for maps/slices is total: any value
// without a more specific rule is wrapped as opaque userdata.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case string:
		return lua.LString(x)
	case Symbol:
		return lua.LString(string(x))
	case int:
		return lua.LNumber(x)
	case int8:
		return lua.LNumber(x)
	case int16:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint:
		return lua.LNumber(x)
	case uint8:
		return lua.LNumber(x)
	case uint16:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case *CallableRef:
		return x.fn
	case *ThreadRef:
		return x.thread
	case lua.LGFunction:
		return L.NewFunction(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			tbl.RawSetInt(i+1, ToLua(L, rv.Index(i).Interface()))
		}
		return tbl
	case reflect.Map:
		tbl := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			tbl.RawSet(ToLua(L, iter.Key().Interface()), ToLua(L, iter.Value().Interface()))
		}
		return tbl
	}

	ud := L.NewUserData()
	ud.Value = opaque{value: v}
	return ud
}

// FromLua converts a script value to a host value per spec.md §4.A
// (Script → host). Table conversion locks the VM for the duration of the
// walk (container.withLock) and does not recurse back into script code.
func FromLua(ctx context.Context, rt *Runtime, v lua.LValue) (any, error) {
	if tbl, ok := v.(*lua.LTable); ok {
		var result any
		var err error
		rt.container.withLock(ctx, func() {
			result, err = tableToHost(rt, tbl)
		})
		return result, err
	}
	return scalarFromLua(rt, v)
}

// scalarFromLua converts everything except tables; it is also used inside
// the locked table walk to convert nested non-table values without
// re-acquiring the lock.
func scalarFromLua(rt *Runtime, v lua.LValue) (any, error) {
	switch x := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(x), nil
	case lua.LNumber:
		f := float64(x)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(x), nil
	case *lua.LUserData:
		if op, ok := x.Value.(opaque); ok {
			return op.value, nil
		}
		return x.Value, nil
	case *lua.LFunction:
		return &CallableRef{rt: rt, fn: x}, nil
	case *lua.LState:
		return &ThreadRef{rt: rt, thread: x}, nil
	case *lua.LTable:
		// Reached only when a nested table shows up somewhere that bypassed
		// FromLua's lock (shouldn't happen from outside this file).
		return tableToHost(rt, x)
	default:
		return nil, fmt.Errorf("luahost: cannot convert %s to a host value", v.Type().String())
	}
}

// tableToHost implements spec.md's table-walk rule. Must be called with the
// VM lock already held.
func tableToHost(rt *Runtime, tbl *lua.LTable) (any, error) {
	seq := []any{}
	var m map[any]any
	count := 0
	var walkErr error

	tbl.ForEach(func(k, v lua.LValue) {
		if walkErr != nil {
			return
		}
		count++
		if m == nil {
			if n, ok := k.(lua.LNumber); ok {
				i := int(n)
				if float64(i) == float64(n) && i >= 1 {
					hv, err := scalarOrTable(rt, v)
					if err != nil {
						walkErr = err
						return
					}
					// Indices not seen (yet) stay nil holes.
					for len(seq) < i {
						seq = append(seq, nil)
					}
					seq[i-1] = hv
					return
				}
			}
			// First non-positive-integer key: spill the accumulated
			// sequence into a mapping keyed by its 1-based indices (holes
			// are left out), then fall through to general mapping mode.
			m = make(map[any]any, len(seq)+1)
			for i, hv := range seq {
				if hv != nil {
					m[int64(i+1)] = hv
				}
			}
		}
		hk, err := tableKeyToHost(k)
		if err != nil {
			walkErr = err
			return
		}
		hv, err := scalarOrTable(rt, v)
		if err != nil {
			walkErr = err
			return
		}
		m[hk] = hv
	})
	if walkErr != nil {
		return nil, walkErr
	}
	if count == 0 {
		return map[any]any{}, nil
	}
	if m == nil {
		return seq, nil
	}
	return m, nil
}

func scalarOrTable(rt *Runtime, v lua.LValue) (any, error) {
	if tbl, ok := v.(*lua.LTable); ok {
		return tableToHost(rt, tbl)
	}
	return scalarFromLua(rt, v)
}

func tableKeyToHost(k lua.LValue) (any, error) {
	if s, ok := k.(lua.LString); ok {
		return Symbol(string(s)), nil
	}
	return scalarFromLua(nil, k)
}
