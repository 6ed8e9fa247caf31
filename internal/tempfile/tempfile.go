// Package tempfile creates the RAM-backed temp artifacts that capture
// script stdout, and the named temp copies used for the "!" argv
// placeholder. Every artifact this package hands out is either
// already unlinked (CreateUnlinked) or comes with an explicit cleanup
// closure (CreateNamedCopy); callers are expected to use one exactly
// once per open/measurement.
package tempfile

import (
	"io"
	"os"
)

const pattern = "sfs.*"

// ownerReadExecute preserves only the mirror file's owner read and
// execute bits on a temp copy, per the documented temp file
// convention.
const ownerReadExecute = 0o500

// ProbeDir picks the RAM-backed directory scriptfs materializes
// artifacts under: /dev/shm if it exists and is a directory,
// otherwise /tmp. Performed once, at mount time.
func ProbeDir() string {
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm"
	}
	return "/tmp"
}

// CreateUnlinked creates a file under dir, unlinks it immediately, and
// returns the still-open descriptor. Its only reference from that
// point on is the returned *os.File; once that is closed the inode is
// gone.
func CreateUnlinked(dir string) (*os.File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// CreateNamedCopy materializes a fresh, named temp copy of the file at
// srcPath (used for the External program's "!" argv substitution,
// which needs a real path a child process can open). The copy
// keeps the source's owner read and execute bits and no others. The
// returned cleanup function unlinks the copy; the
// caller must invoke it after the child that uses the path has
// exited.
func CreateNamedCopy(dir, srcPath string) (path string, cleanup func(), err error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return "", nil, err
	}

	dst, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", nil, err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", nil, err
	}

	if err := dst.Chmod(srcInfo.Mode().Perm() & ownerReadExecute); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", nil, err
	}

	name := dst.Name()
	if err := dst.Close(); err != nil {
		os.Remove(name)
		return "", nil, err
	}

	return name, func() { os.Remove(name) }, nil
}
