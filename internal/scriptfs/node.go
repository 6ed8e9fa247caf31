package scriptfs

import (
	"context"
	"os"
	"path/filepath"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/eewanco/scriptfs/internal/mirror"
)

// Node is a filesystem node rooted at a real mirror directory. Every
// metadata operation consults the classifier to decide whether it is
// looking at a script; script files are read-only and, on open, have
// their content replaced with captured program output.
type Node struct {
	fs.Inode

	root *Root
}

var (
	_ = (fs.NodeGetattrer)((*Node)(nil))
	_ = (fs.NodeSetattrer)((*Node)(nil))
	_ = (fs.NodeAccesser)((*Node)(nil))
	_ = (fs.NodeLookuper)((*Node)(nil))
	_ = (fs.NodeOpener)((*Node)(nil))
	_ = (fs.NodeOpendirer)((*Node)(nil))
	_ = (fs.NodeReaddirer)((*Node)(nil))
	_ = (fs.NodeCreater)((*Node)(nil))
	_ = (fs.NodeMkdirer)((*Node)(nil))
	_ = (fs.NodeMknoder)((*Node)(nil))
	_ = (fs.NodeUnlinker)((*Node)(nil))
	_ = (fs.NodeRmdirer)((*Node)(nil))
	_ = (fs.NodeRenamer)((*Node)(nil))
	_ = (fs.NodeSymlinker)((*Node)(nil))
	_ = (fs.NodeLinker)((*Node)(nil))
	_ = (fs.NodeReadlinker)((*Node)(nil))
	_ = (fs.NodeStatfser)((*Node)(nil))
)

// path returns the absolute mirror path for this node.
func (n *Node) path() string {
	return n.abs(n.relative())
}

// relative returns the mirror-relative path for this node, in the
// form the classifier and procedure.Context expect ("" for root,
// "a/b/c" for nested files — no virtual entries, no ".." beyond what
// the OS already disallows).
func (n *Node) relative() string {
	return n.Path(n.Root())
}

func (n *Node) abs(relative string) string {
	p, err := mirror.Resolve(n.root.MirrorPath, relative)
	if err != nil {
		// SecureJoin only fails on malformed input; fall back to a
		// plain join so callers still get a sensible error from the
		// subsequent syscall rather than losing the operation.
		return filepath.Join(n.root.MirrorPath, relative)
	}
	return p
}

// preserveOwner sets uid/gid of path to the caller's, the way the
// teacher's loopback filesystem does for newly created nodes.
func (n *Node) preserveOwner(ctx context.Context, path string) {
	if os.Getuid() != 0 {
		return
	}
	caller, ok := fuse.FromContext(ctx)
	if !ok {
		return
	}
	syscall.Lchown(path, int(caller.Uid), int(caller.Gid))
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	s := syscall.Statfs_t{}
	if err := syscall.Statfs(n.path(), &s); err != nil {
		return fs.ToErrno(err)
	}
	out.FromStatfsT(&s)
	return fs.OK
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := filepath.Join(n.path(), name)

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		return nil, fs.ToErrno(err)
	}

	out.Attr.FromStat(&st)
	n.applyScriptMode(ctx, filepath.Join(n.relative(), name), &out.Attr)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, 0
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := filepath.Join(n.path(), name)
	if err := os.Mkdir(p, os.FileMode(mode)); err != nil {
		return nil, fs.ToErrno(err)
	}
	n.preserveOwner(ctx, p)

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		syscall.Rmdir(p)
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, 0
}

func (n *Node) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := filepath.Join(n.path(), name)
	if err := syscall.Mknod(p, mode, int(rdev)); err != nil {
		return nil, fs.ToErrno(err)
	}
	n.preserveOwner(ctx, p)

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		syscall.Unlink(p)
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, 0
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return fs.ToErrno(syscall.Rmdir(filepath.Join(n.path(), name)))
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return fs.ToErrno(syscall.Unlink(filepath.Join(n.path(), name)))
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	p1 := filepath.Join(n.path(), name)
	p2 := filepath.Join(n.root.MirrorPath, newParent.EmbeddedInode().Path(nil), newName)
	return fs.ToErrno(syscall.Rename(p1, p2))
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := filepath.Join(n.path(), name)
	if err := syscall.Symlink(target, p); err != nil {
		return nil, fs.ToErrno(err)
	}
	n.preserveOwner(ctx, p)

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		syscall.Unlink(p)
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, 0
}

func (n *Node) Link(ctx context.Context, target fs.InodeEmbedder, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := filepath.Join(n.path(), name)
	src := filepath.Join(n.root.MirrorPath, target.EmbeddedInode().Path(nil))
	if err := syscall.Link(src, p); err != nil {
		return nil, fs.ToErrno(err)
	}

	st := syscall.Stat_t{}
	if err := syscall.Lstat(p, &st); err != nil {
		syscall.Unlink(p)
		return nil, fs.ToErrno(err)
	}
	out.Attr.FromStat(&st)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	p := n.path()
	for l := 256; ; l *= 2 {
		buf := make([]byte, l)
		sz, err := syscall.Readlink(p, buf)
		if err != nil {
			return nil, fs.ToErrno(err)
		}
		if sz < len(buf) {
			return buf[:sz], 0
		}
	}
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := filepath.Join(n.path(), name)
	fd, err := syscall.Open(p, int(flags&^syscall.O_APPEND)|os.O_CREATE, mode)
	if err != nil {
		return nil, nil, 0, fs.ToErrno(err)
	}
	n.preserveOwner(ctx, p)

	st := syscall.Stat_t{}
	if err := syscall.Fstat(fd, &st); err != nil {
		syscall.Close(fd)
		return nil, nil, 0, fs.ToErrno(err)
	}
	out.FromStat(&st)

	node := n.root.newNode()
	ch := n.NewInode(ctx, node, n.root.idFromStat(&st))
	return ch, fs.NewLoopbackFile(fd), 0, 0
}

func (n *Node) Opendir(ctx context.Context) syscall.Errno {
	fd, err := syscall.Open(n.path(), syscall.O_DIRECTORY, 0o755)
	if err != nil {
		return fs.ToErrno(err)
	}
	syscall.Close(fd)
	return fs.OK
}

func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	return fs.NewLoopbackDirStream(n.path())
}
