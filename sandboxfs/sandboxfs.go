// Package sandboxfs implements luahost.ResourceLoader and
// luahost.PathSandbox against a real OS directory tree, rooted so that no
// script-supplied path can resolve outside of it.
package sandboxfs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// FS roots require()/io.open resolution at a single directory. The zero
// value is not usable; construct one with New.
type FS struct {
	root string
}

// New roots a sandbox at root, which is resolved to an absolute, symlink-
// free path at construction time so every later Resolve/Load comparison is
// against a stable prefix.
func New(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &FS{root: resolved}, nil
}

// Resolve implements luahost.PathSandbox: it joins path onto the sandbox
// root and refuses anything that would escape it via "..". An absolute path
// is not refused: filepath.Join places it under the root like a relative
// one.
func (fs *FS) Resolve(path string) (string, error) {
	joined := filepath.Join(fs.root, path)
	rel, err := filepath.Rel(fs.root, joined)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &escapeError{path: path}
	}
	return joined, nil
}

// Load implements luahost.ResourceLoader, mapping a module path such as
// "foo.bar" to <root>/foo/bar.lua, the same dotted-to-nested-directory
// convention Lua's own file-based require() uses.
func (fs *FS) Load(path string) ([]byte, bool) {
	rel := strings.ReplaceAll(path, ".", string(filepath.Separator)) + ".lua"
	resolved, err := fs.Resolve(rel)
	if err != nil {
		return nil, false
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, false
	}
	return data, true
}

type escapeError struct{ path string }

func (e *escapeError) Error() string {
	return "path escapes sandbox root: " + e.path
}

// IsEscape reports whether err was returned because a path attempted to
// leave the sandbox root.
func IsEscape(err error) bool {
	var e *escapeError
	return errors.As(err, &e)
}
