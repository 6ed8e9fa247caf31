package scriptfs

import (
	"context"
	"os"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// unixWriteMask is the W_OK bit of an Access() mask, per access(2).
const unixWriteMask = 2

var (
	_ = (fs.FileHandle)((*scriptHandle)(nil))
	_ = (fs.FileReader)((*scriptHandle)(nil))
	_ = (fs.FileGetattrer)((*scriptHandle)(nil))
	_ = (fs.FileReleaser)((*scriptHandle)(nil))
)

// scriptHandle backs an open script file with a captured run of its
// program: an unlinked, RAM-backed temp file holding the program's
// stdout. Its lifetime is exactly the open file handle's — Release
// closes the underlying fd, which (since the directory entry was
// unlinked at creation) frees the storage immediately.
//
// sourcePath is the mirror file this handle was opened against; Getattr
// needs it because, absent -l, a script's reported size is the source
// file's size, not the captured artifact's.
type scriptHandle struct {
	mu         sync.Mutex
	artifact   *os.File
	sourcePath string
	eagerSize  bool
}

func newScriptHandle(artifact *os.File, sourcePath string, eagerSize bool) *scriptHandle {
	return &scriptHandle{artifact: artifact, sourcePath: sourcePath, eagerSize: eagerSize}
}

func (h *scriptHandle) Read(ctx context.Context, buf []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := fuse.ReadResultFd(h.artifact.Fd(), off, len(buf))
	return r, fs.OK
}

// Getattr reports the mirror source file's attributes, same as a
// path-based stat would, and always clears write bits. Size only comes
// from the captured artifact when the mount runs with eager sizing;
// otherwise it reports the source file's own size, matching
// Node.applyScriptMode's non-handle path (spec.md Testable Property #5).
func (h *scriptHandle) Getattr(ctx context.Context, out *fuse.AttrOut) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()

	var st syscall.Stat_t
	if err := syscall.Stat(h.sourcePath, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.FromStat(&st)
	out.Attr.Mode &^= writeBits

	if h.eagerSize {
		var ast syscall.Stat_t
		if err := syscall.Fstat(int(h.artifact.Fd()), &ast); err != nil {
			return fs.ToErrno(err)
		}
		out.Attr.Size = uint64(ast.Size)
	}
	return fs.OK
}

func (h *scriptHandle) Release(ctx context.Context) syscall.Errno {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.artifact == nil {
		return syscall.EBADF
	}
	err := h.artifact.Close()
	h.artifact = nil
	return fs.ToErrno(err)
}
