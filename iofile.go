package luahost

import (
	"bufio"
	"io"
	"os"

	lua "github.com/yuin/gopher-lua"
)

// sandboxedFile backs the userdata luaOpenFile returns. It deliberately
// implements only the handful of io methods spec.md's sandboxed io.open
// needs to support script file access (read, write, lines, close), rather
// than reusing gopher-lua's own file metatable, whose backing type is not
// part of its exported API.
type sandboxedFile struct {
	f      *os.File
	reader *bufio.Reader
}

const sandboxedFileMeta = "luahost.file"

func luaOpenFile(L *lua.LState, path, mode string) int {
	flag, err := fileFlagForMode(mode)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	ud := L.NewUserData()
	ud.Value = &sandboxedFile{f: f, reader: bufio.NewReader(f)}
	ud.Metatable = fileMetatable(L)
	L.Push(ud)
	return 1
}

func fileFlagForMode(mode string) (int, error) {
	switch mode {
	case "r", "rb":
		return os.O_RDONLY, nil
	case "w", "wb":
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, nil
	case "a", "ab":
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, nil
	case "r+", "r+b":
		return os.O_RDWR, nil
	case "w+", "w+b":
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, nil
	default:
		return 0, errInvalidFileMode(mode)
	}
}

func errInvalidFileMode(mode string) error {
	return &invalidModeError{mode: mode}
}

type invalidModeError struct{ mode string }

func (e *invalidModeError) Error() string {
	return "invalid file mode: " + e.mode
}

var fileMetatableCache *lua.LTable

func fileMetatable(L *lua.LState) *lua.LTable {
	if fileMetatableCache != nil {
		return fileMetatableCache
	}
	mt := L.NewTypeMetatable(sandboxedFileMeta)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"read":  fileRead,
		"write": fileWrite,
		"lines": fileLines,
		"close": fileClose,
	}))
	fileMetatableCache = mt
	return mt
}

func checkSandboxedFile(L *lua.LState) *sandboxedFile {
	ud, ok := L.CheckUserData(1).Value.(*sandboxedFile)
	if !ok {
		L.ArgError(1, "file expected")
	}
	return ud
}

func fileRead(L *lua.LState) int {
	sf := checkSandboxedFile(L)
	format := "l"
	if L.GetTop() >= 2 {
		format = L.CheckString(2)
	}
	switch format {
	case "a", "*a":
		data, err := io.ReadAll(sf.reader)
		if err != nil && err != io.EOF {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(string(data)))
		return 1
	default:
		line, err := sf.reader.ReadString('\n')
		if err != nil && line == "" {
			L.Push(lua.LNil)
			return 1
		}
		line = trimNewline(line)
		L.Push(lua.LString(line))
		return 1
	}
}

func fileWrite(L *lua.LState) int {
	sf := checkSandboxedFile(L)
	for i := 2; i <= L.GetTop(); i++ {
		if _, err := sf.f.WriteString(L.CheckString(i)); err != nil {
			L.Push(lua.LNil)
			L.Push(lua.LString(err.Error()))
			return 2
		}
	}
	L.Push(L.Get(1))
	return 1
}

func fileLines(L *lua.LState) int {
	sf := checkSandboxedFile(L)
	L.Push(L.NewFunction(func(L *lua.LState) int {
		line, err := sf.reader.ReadString('\n')
		if err != nil && line == "" {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(trimNewline(line)))
		return 1
	}))
	return 1
}

func fileClose(L *lua.LState) int {
	sf := checkSandboxedFile(L)
	L.Push(lua.LBool(sf.f.Close() == nil))
	return 1
}

func trimNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
