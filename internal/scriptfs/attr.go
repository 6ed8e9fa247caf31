package scriptfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/eewanco/scriptfs/internal/procedure"
	"github.com/eewanco/scriptfs/internal/tempfile"
)

// writeBits is the set of mode bits a script's reported attributes
// are never allowed to carry, regardless of what the backing file on
// the mirror actually has set.
const writeBits = 0o222

func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if f != nil {
		if g, ok := f.(fs.FileGetattrer); ok {
			return g.Getattr(ctx, out)
		}
	}

	p := n.path()
	st := syscall.Stat_t{}

	var err error
	if &n.Inode == n.Root() {
		err = syscall.Stat(p, &st)
	} else {
		err = syscall.Lstat(p, &st)
	}
	if err != nil {
		return fs.ToErrno(err)
	}

	out.FromStat(&st)
	n.applyScriptMode(ctx, n.relative(), &out.Attr)
	return fs.OK
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	relative := n.relative()
	proc, err := n.root.Classifier.Classify(ctx, n.root.procContext(), relative)
	if err != nil {
		n.root.logger().Debug("classification failed during access check", "path", relative, "error", err)
	}
	if proc != nil && mask&unixWriteMask != 0 {
		return syscall.EACCES
	}
	return fs.OK
}

// Setattr mirrors the teacher's loopback Setattr, but a matched script
// refuses any change that would let a caller write to or alter the
// captured content: truncation, adding a write bit, or touching
// timestamps. Ownership changes (chown) still pass through, since they
// don't affect the captured content.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	relative := n.relative()
	proc, err := n.root.Classifier.Classify(ctx, n.root.procContext(), relative)
	if err != nil {
		n.root.logger().Debug("classification failed during setattr", "path", relative, "error", err)
	}

	if proc != nil {
		if _, ok := in.GetSize(); ok {
			return syscall.EACCES
		}
		if _, ok := in.GetMTime(); ok {
			return syscall.EACCES
		}
		if _, ok := in.GetATime(); ok {
			return syscall.EACCES
		}
		if mode, ok := in.GetMode(); ok && mode&writeBits != 0 {
			return syscall.EACCES
		}
	}

	p := n.path()

	if m, ok := in.GetMode(); ok {
		if err := syscall.Chmod(p, m); err != nil {
			return fs.ToErrno(err)
		}
	}

	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		suid, sgid := -1, -1
		if uok {
			suid = int(uid)
		}
		if gok {
			sgid = int(gid)
		}
		if err := syscall.Chown(p, suid, sgid); err != nil {
			return fs.ToErrno(err)
		}
	}

	if proc == nil {
		mtime, mok := in.GetMTime()
		atime, aok := in.GetATime()
		if mok || aok {
			ap, mp := &atime, &mtime
			if !aok {
				ap = nil
			}
			if !mok {
				mp = nil
			}
			var ts [2]syscall.Timespec
			ts[0] = fuse.UtimeToTimespec(ap)
			ts[1] = fuse.UtimeToTimespec(mp)
			if err := syscall.UtimesNano(p, ts[:]); err != nil {
				return fs.ToErrno(err)
			}
		}
		if sz, ok := in.GetSize(); ok {
			if err := syscall.Truncate(p, int64(sz)); err != nil {
				return fs.ToErrno(err)
			}
		}
	}

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		return fs.ToErrno(err)
	}
	out.FromStat(&st)
	n.applyScriptMode(ctx, relative, &out.Attr)
	return fs.OK
}

// applyScriptMode strips write permission from attr when relative is
// classified as a script, and, if the mount was started with eager
// sizing, overwrites attr.Size with the length of a freshly captured
// run of the program. Eager sizing costs one full extra invocation of
// the program per stat call; it exists only for tools that refuse to
// treat a file as readable until its reported size is accurate.
func (n *Node) applyScriptMode(ctx context.Context, relative string, attr *fuse.Attr) {
	pc := n.root.procContext()
	proc, err := n.root.Classifier.Classify(ctx, pc, relative)
	if err != nil {
		n.root.logger().Debug("classification failed while computing attributes", "path", relative, "error", err)
		return
	}
	if proc == nil {
		return
	}

	attr.Mode &^= writeBits

	if !n.root.EagerSize {
		return
	}

	size, err := n.eagerSize(ctx, pc, proc, relative)
	if err != nil {
		n.root.logger().Debug("eager size computation failed", "path", relative, "error", err)
		return
	}
	attr.Size = size
}

func (n *Node) eagerSize(ctx context.Context, pc *procedure.Context, proc *procedure.Procedure, relative string) (uint64, error) {
	artifact, err := tempfile.CreateUnlinked(n.root.TempDir)
	if err != nil {
		return 0, err
	}
	defer artifact.Close()

	if err := proc.Program.Run(ctx, pc, relative, artifact); err != nil {
		return 0, err
	}

	var st syscall.Stat_t
	if err := syscall.Fstat(int(artifact.Fd()), &st); err != nil {
		return 0, err
	}
	return uint64(st.Size), nil
}

// Open classifies the target; unmatched files are opened pass-through
// against the mirror, matched files are refused in any write mode and
// otherwise materialized by running their procedure's Program into a
// fresh temp artifact that backs the resulting handle.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	relative := n.relative()
	pc := n.root.procContext()

	proc, err := n.root.Classifier.Classify(ctx, pc, relative)
	if err != nil {
		n.root.logger().Debug("classification failed during open", "path", relative, "error", err)
	}

	if proc == nil {
		fd, err := syscall.Open(n.path(), int(flags&^syscall.O_APPEND), 0)
		if err != nil {
			return nil, 0, fs.ToErrno(err)
		}
		return fs.NewLoopbackFile(fd), 0, fs.OK
	}

	if flags&syscall.O_ACCMODE != syscall.O_RDONLY {
		return nil, 0, syscall.EACCES
	}

	artifact, err := tempfile.CreateUnlinked(n.root.TempDir)
	if err != nil {
		return nil, 0, fs.ToErrno(err)
	}

	if err := proc.Program.Run(ctx, pc, relative, artifact); err != nil {
		n.root.logger().Warn("script program failed", "path", relative, "error", err)
	}

	if _, err := artifact.Seek(0, 0); err != nil {
		artifact.Close()
		return nil, 0, fs.ToErrno(err)
	}

	return newScriptHandle(artifact, n.path(), n.root.EagerSize), fuse.FOPEN_DIRECT_IO, fs.OK
}
