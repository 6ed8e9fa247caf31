// Package scriptfs implements the filesystem node: pass-through of
// everything that isn't a script, and the script-materialization
// pipeline (classify -> run program -> capture into a temp artifact)
// for everything that is. It follows the shape of go-fuse's own
// loopback filesystem (fs.InodeEmbedder rooted at a real directory),
// adapted to interpose the procedure classifier and script execution
// on open/getattr.
package scriptfs

import (
	"log/slog"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"

	"github.com/eewanco/scriptfs/internal/procedure"
	"github.com/eewanco/scriptfs/internal/procexec"
)

// Root holds the process-wide, immutable-after-mount configuration
// for a scriptfs mount: the mirror directory, the ordered procedure
// list, the eager-size policy, the chosen temp directory, and the
// inherited environment.
type Root struct {
	fs.Inode

	// MirrorPath is the canonicalized absolute mirror directory.
	MirrorPath string
	// Dev is the device number of MirrorPath, mixed into inode numbers.
	Dev uint64

	Classifier *procedure.Classifier
	EagerSize  bool
	TempDir    string
	Env        []string

	Runner *procexec.Runner
	Log    *slog.Logger
}

// procContext builds the procedure.Context handed to every
// classification/execution call. It is cheap to construct and has no
// state of its own beyond pointers already owned by Root.
func (r *Root) procContext() *procedure.Context {
	return &procedure.Context{
		MirrorRoot: r.MirrorPath,
		Runner:     r.Runner,
		TempDir:    r.TempDir,
		Log:        r.Log,
	}
}

func (r *Root) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r *Root) newNode() fs.InodeEmbedder {
	return &Node{root: r}
}

// idFromStat composes an inode number from the underlying inode and
// device number, the same way go-fuse's own loopback filesystem does,
// so traditional backing filesystems keep stable inode numbers.
func (r *Root) idFromStat(st *syscall.Stat_t) fs.StableAttr {
	swapped := (uint64(st.Dev) << 32) | (uint64(st.Dev) >> 32)
	swappedRootDev := (r.Dev << 32) | (r.Dev >> 32)
	return fs.StableAttr{
		Mode: uint32(st.Mode),
		Gen:  1,
		Ino:  (swapped ^ swappedRootDev) ^ st.Ino,
	}
}

// NewRoot builds the root InodeEmbedder for a scriptfs mount.
// mirrorPath must already be a canonicalized absolute directory.
func NewRoot(mirrorPath string, classifier *procedure.Classifier, eagerSize bool, tempDir string, env []string, runner *procexec.Runner, log *slog.Logger) (fs.InodeEmbedder, error) {
	var st syscall.Stat_t
	if err := syscall.Stat(mirrorPath, &st); err != nil {
		return nil, err
	}

	root := &Root{
		MirrorPath: mirrorPath,
		Dev:        uint64(st.Dev),
		Classifier: classifier,
		EagerSize:  eagerSize,
		TempDir:    tempDir,
		Env:        env,
		Runner:     runner,
		Log:        log,
	}

	return root.newNode(), nil
}
