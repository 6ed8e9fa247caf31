// Package mirror resolves virtual relative paths against the real
// directory that scriptfs overlays (the "mirror root").
package mirror

import (
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
)

// Resolve joins relative (a path handed to us by the filesystem layer,
// e.g. "a/b/c" or ".") onto root and returns an absolute path guaranteed
// to stay within root, even if intermediate components are symlinks.
func Resolve(root, relative string) (string, error) {
	if relative == "" || relative == "." {
		return root, nil
	}
	return securejoin.SecureJoin(root, relative)
}

// ResolveMaybeAbs returns p unchanged if it is already absolute,
// otherwise resolves it against root. Used for shebang interpreter
// paths, which are usually absolute system paths but may in principle
// be mirror-relative.
func ResolveMaybeAbs(root, p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	return Resolve(root, p)
}

// Relative converts an absolute virtual path (as FUSE callbacks receive
// it in this codebase's tests and docs) into the mirror-relative form.
// relative_path("/") == ".", relative_path("/x/y") == "x/y".
func Relative(p string) string {
	p = filepath.Clean("/" + p)
	if p == "/" {
		return "."
	}
	return p[1:]
}
