package luahost

import (
	"context"
	"testing"

	lua "github.com/yuin/gopher-lua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLuaScalars(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	assert.Equal(t, lua.LNil, ToLua(L, nil))
	assert.Equal(t, lua.LBool(true), ToLua(L, true))
	assert.Equal(t, lua.LString("hi"), ToLua(L, "hi"))
	assert.Equal(t, lua.LString("hi"), ToLua(L, Symbol("hi")))
	assert.Equal(t, lua.LNumber(42), ToLua(L, 42))
	assert.Equal(t, lua.LNumber(3.5), ToLua(L, 3.5))
}

func TestToLuaSliceBecomesOneIndexedTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tbl := ToLua(L, []any{"a", "b", "c"}).(*lua.LTable)
	assert.Equal(t, lua.LString("a"), tbl.RawGetInt(1))
	assert.Equal(t, lua.LString("b"), tbl.RawGetInt(2))
	assert.Equal(t, lua.LString("c"), tbl.RawGetInt(3))
	assert.Equal(t, lua.LNil, tbl.RawGetInt(0))
}

func runtimeForValueTests(t *testing.T) *Runtime {
	t.Helper()
	loader := ResourceLoaderFunc(func(string) ([]byte, bool) { return nil, false })
	sandbox := PathSandboxFunc(func(p string) (string, error) { return p, nil })
	rt, err := New(loader, sandbox)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func TestFromLuaSequenceTable(t *testing.T) {
	rt := runtimeForValueTests(t)
	L := rt.container.L

	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LString("x"))
	tbl.RawSetInt(2, lua.LString("y"))

	got, err := FromLua(context.Background(), rt, tbl)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, got)
}

func TestFromLuaEmptyTableIsMapNotSlice(t *testing.T) {
	rt := runtimeForValueTests(t)
	L := rt.container.L

	got, err := FromLua(context.Background(), rt, L.NewTable())
	require.NoError(t, err)
	assert.Equal(t, map[any]any{}, got)
}

func TestFromLuaMixedTableSpillsSequenceIntoMap(t *testing.T) {
	rt := runtimeForValueTests(t)
	L := rt.container.L

	tbl := L.NewTable()
	tbl.RawSetInt(1, lua.LString("first"))
	tbl.RawSetInt(2, lua.LString("second"))
	tbl.RawSetString("name", lua.LString("widget"))

	got, err := FromLua(context.Background(), rt, tbl)
	require.NoError(t, err)
	m, ok := got.(map[any]any)
	require.True(t, ok, "expected a map, got %T", got)
	assert.Equal(t, "first", m[int64(1)])
	assert.Equal(t, "second", m[int64(2)])
	assert.Equal(t, "widget", m[Symbol("name")])
}

func TestFromLuaNumberIntegerVsFloat(t *testing.T) {
	rt := runtimeForValueTests(t)

	got, err := FromLua(context.Background(), rt, lua.LNumber(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = FromLua(context.Background(), rt, lua.LNumber(7.5))
	require.NoError(t, err)
	assert.Equal(t, 7.5, got)
}

func TestRoundTripSymbolKeyedMap(t *testing.T) {
	rt := runtimeForValueTests(t)
	L := rt.container.L

	original := map[any]any{Symbol("a"): int64(1), Symbol("b"): "two"}
	lv := ToLua(L, original)
	back, err := FromLua(context.Background(), rt, lv)
	require.NoError(t, err)
	assert.Equal(t, original, back)
}
