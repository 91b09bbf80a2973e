package luahost

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/northbeam-labs/luahost/sandboxfs"
)

func TestSandboxResolveRefusesEscape(t *testing.T) {
	dir := t.TempDir()
	fs, err := sandboxfs.New(dir)
	require.NoError(t, err)

	_, err = fs.Resolve("../../etc/passwd")
	require.Error(t, err)
	require.True(t, sandboxfs.IsEscape(err))

	resolved, err := fs.Resolve("scripts/main.lua")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "scripts", "main.lua"), resolved)
}

func TestRequireOnlyResolvesThroughResourceLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "util.lua"), []byte(`return {greet = function() return "hi" end}`), 0o644))

	fs, err := sandboxfs.New(dir)
	require.NoError(t, err)

	rt, err := New(fs, fs)
	require.NoError(t, err)
	defer rt.Close()

	code, err := rt.Read(`
		local util = require("lib.util")
		return util.greet()
	`, "main.lua")
	require.NoError(t, err)

	result, err := rt.Eval(context.Background(), code)
	require.NoError(t, err)
	require.Equal(t, "hi", result)
}

func TestRequireRefusesUnknownModule(t *testing.T) {
	dir := t.TempDir()
	fs, err := sandboxfs.New(dir)
	require.NoError(t, err)

	rt, err := New(fs, fs)
	require.NoError(t, err)
	defer rt.Close()

	code, err := rt.Read(`return require("nope")`, "main.lua")
	require.NoError(t, err)

	_, err = rt.Eval(context.Background(), code)
	require.Error(t, err)
}

func TestSandboxedIOOpenRefusesEscape(t *testing.T) {
	dir := t.TempDir()
	fs, err := sandboxfs.New(dir)
	require.NoError(t, err)

	rt, err := New(fs, fs)
	require.NoError(t, err)
	defer rt.Close()

	code, err := rt.Read(`
		local f, err = io.open("../outside.txt", "r")
		return f, err
	`, "main.lua")
	require.NoError(t, err)

	result, err := rt.Eval(context.Background(), code)
	require.NoError(t, err)
	require.Nil(t, result)
}
