package procedure

import "golang.org/x/sys/unix"

// unixAccessX reports whether the calling process has execute
// permission on abs, mirroring faccessat(..., X_OK).
func unixAccessX(abs string) error {
	return unix.Access(abs, unix.X_OK)
}
