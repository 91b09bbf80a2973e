// Package luabit installs a LuaJIT-style "bit" module. gopher-lua does not
// bundle one, and spec.md names "bit" among the standard libraries scripts
// must see, so luahost's bootstrap loads this alongside the upstream
// base/table/string/math/os/io/coroutine/package libraries.
package luabit

import lua "github.com/yuin/gopher-lua"

const name = "bit"

var funcs = map[string]lua.LGFunction{
	"band":    band,
	"bor":     bor,
	"bxor":    bxor,
	"bnot":    bnot,
	"lshift":  lshift,
	"rshift":  rshift,
	"arshift": arshift,
	"tobit":   tobit,
	"tohex":   tohex,
}

// Open installs the bit module as a global table and registers it in
// package.loaded so require("bit") also resolves to it.
func Open(L *lua.LState) int {
	mod := L.RegisterModule(name, funcs)
	L.Push(mod)
	return 1
}

func toUint32(L *lua.LState, n int) uint32 {
	return uint32(int32(L.CheckNumber(n)))
}

func pushBit(L *lua.LState, v uint32) int {
	L.Push(lua.LNumber(int32(v)))
	return 1
}

func band(L *lua.LState) int {
	result := toUint32(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		result &= toUint32(L, i)
	}
	return pushBit(L, result)
}

func bor(L *lua.LState) int {
	result := toUint32(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		result |= toUint32(L, i)
	}
	return pushBit(L, result)
}

func bxor(L *lua.LState) int {
	result := toUint32(L, 1)
	for i := 2; i <= L.GetTop(); i++ {
		result ^= toUint32(L, i)
	}
	return pushBit(L, result)
}

func bnot(L *lua.LState) int {
	return pushBit(L, ^toUint32(L, 1))
}

func lshift(L *lua.LState) int {
	x := toUint32(L, 1)
	shift := uint(toUint32(L, 2)) % 32
	return pushBit(L, x<<shift)
}

func rshift(L *lua.LState) int {
	x := toUint32(L, 1)
	shift := uint(toUint32(L, 2)) % 32
	return pushBit(L, x>>shift)
}

func arshift(L *lua.LState) int {
	x := int32(toUint32(L, 1))
	shift := uint(toUint32(L, 2)) % 32
	return pushBit(L, uint32(x>>shift))
}

func tobit(L *lua.LState) int {
	return pushBit(L, toUint32(L, 1))
}

func tohex(L *lua.LState) int {
	x := toUint32(L, 1)
	L.Push(lua.LString(hexString(x)))
	return 1
}

func hexString(x uint32) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = digits[x&0xf]
		x >>= 4
	}
	return string(buf)
}
