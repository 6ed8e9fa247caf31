/*
scriptfs is a FUSE filesystem that mirrors a real directory and, for any
file a configurable classifier recognizes as a script, replaces its
content with the captured stdout of a program run against it instead of
serving the file's own bytes.

Every other path - directories, non-matching files, symlinks - passes
through to the mirror untouched via ordinary path-relative syscalls.
Which files count as scripts and what runs to produce their content is
entirely controlled by "-p" procedure specs given on the command line;
with none given, any file that looks like a shebang script or already
carries the executable bit is treated as one, and is simply re-executed
to produce its own output.

# USAGE

	scriptfs [-l] [-p SPEC]... [-f] [-d] [-o OPT]... mirror_path mountpoint

# ARGUMENTS

	-l
		Optional. Eager sizing: a stat on a script re-runs the
		underlying program to report its true output length, instead
		of reporting the size of the script file on the mirror.

	-p SPEC
		Optional, repeatable. A "PROGRAM[;TEST]" procedure spec.
		Evaluated in the order given; the first matching procedure
		wins. With none given, the filesystem behaves as if "-p auto"
		were specified once.

	-f
		Optional. Accepted for compatibility with common FUSE driver
		conventions; this implementation never daemonizes, so the
		process always runs attached to its invoking terminal.

	-d
		Optional. Enable verbose FUSE protocol debug logging.

	-o OPT
		Optional, repeatable. A raw mount option passed through to the
		FUSE kernel binding (e.g. "allow_other", "ro").

# EXIT CODES

	0   clean shutdown
	2   usage error (bad flags, wrong argument count)
	int(ENOENT)  mirror_path or mountpoint does not exist
	int(EACCES)  mirror_path exists but cannot be opened
	1   mount or serve failure
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/eewanco/scriptfs/internal/procedure"
	"github.com/eewanco/scriptfs/internal/procexec"
	"github.com/eewanco/scriptfs/internal/scriptfs"
	"github.com/eewanco/scriptfs/internal/tempfile"
)

const (
	exitOK           = 0
	exitUsage        = 2
	exitMountFailure = 1

	defaultLogLevel = slog.LevelInfo

	shutdownTimeout = 10 * time.Second
)

var (
	// Version is the application's version (filled in during compilation).
	Version string

	errArgMissingPaths    = errors.New("mirror_path and mountpoint must both be given")
	errArgInvalidLogLevel = errors.New("-log-level has a not recognized value")
)

type program struct {
	stdout io.Writer
	stderr io.Writer

	opts  *programOptions
	flags *flag.FlagSet

	log *slog.Logger
}

func main() {
	var exitCode int

	fmt.Fprintf(os.Stdout, "scriptfs (v%s)\n\n", Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	prog, err := newProgram(os.Args, os.Stdout, os.Stderr)
	if prog == nil || err != nil {
		os.Exit(exitUsage)
	}

	doneChan := make(chan int, 1)
	go func() {
		doneChan <- prog.run(ctx)
	}()

	select {
	case exitCode = <-doneChan:
	case <-sigChan:
		prog.log.Warn("received interrupt signal; shutting down")
		cancel()
		select {
		case exitCode = <-doneChan:
		case <-time.After(shutdownTimeout):
			prog.log.Error("timed out waiting for clean shutdown")
			exitCode = exitMountFailure
		}
	}

	prog.log.Info("program exited", "code", exitCode)
	os.Exit(exitCode)
}

func newProgram(cliArgs []string, stdout, stderr io.Writer) (*program, error) {
	prog := &program{
		stdout: stdout,
		stderr: stderr,
		opts:   &programOptions{},
	}

	if err := prog.parseArgs(cliArgs); err != nil {
		fmt.Fprintf(prog.stderr, "fatal: %v\n\n", err)
		return nil, err
	}

	if err := prog.validateOpts(); err != nil {
		fmt.Fprintf(prog.stderr, "fatal: %v\n\n", err)
		return nil, err
	}

	prog.log = slog.New(prog.logHandler())

	return prog, nil
}

func (prog *program) run(ctx context.Context) int {
	mirrorPath, err := canonicalizeMirror(prog.opts.MirrorPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			prog.log.Error("mirror_path does not exist", "path", prog.opts.MirrorPath, "error", err)
			return int(syscall.ENOENT)
		}
		if errors.Is(err, os.ErrPermission) {
			prog.log.Error("mirror_path could not be opened", "path", prog.opts.MirrorPath, "error", err)
			return int(syscall.EACCES)
		}
		prog.log.Error("mirror_path could not be canonicalized", "path", prog.opts.MirrorPath, "error", err)
		return int(syscall.EACCES)
	}

	if _, err := os.Stat(prog.opts.Mountpoint); err != nil {
		prog.log.Error("mountpoint does not exist", "path", prog.opts.Mountpoint, "error", err)
		return int(syscall.ENOENT)
	}

	procedures, err := buildProcedures(prog.opts.ProcedureSrc)
	if err != nil {
		prog.log.Error("failed to parse procedure specs", "error", err)
		return exitUsage
	}

	tempDir := tempfile.ProbeDir()
	runner := procexec.New(os.Environ())
	classifier := procedure.NewClassifier(procedures)

	root, err := scriptfs.NewRoot(mirrorPath, classifier, prog.opts.EagerSize, tempDir, os.Environ(), runner, prog.log)
	if err != nil {
		prog.log.Error("failed to stat mirror_path", "error", err)
		return int(syscall.EACCES)
	}

	server, err := fs.Mount(prog.opts.Mountpoint, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Debug:   prog.opts.Debug,
			FsName:  mirrorPath,
			Name:    "scriptfs",
			Options: prog.opts.MountOpts,
		},
	})
	if err != nil {
		prog.log.Error("failed to mount", "error", err)
		return exitMountFailure
	}

	go func() {
		<-ctx.Done()
		prog.log.Info("unmounting", "mountpoint", prog.opts.Mountpoint)
		if err := server.Unmount(); err != nil {
			prog.log.Error("failed to unmount cleanly", "error", err)
		}
	}()

	server.Wait()
	return exitOK
}

func canonicalizeMirror(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

func buildProcedures(specs []string) ([]procedure.Procedure, error) {
	if len(specs) == 0 {
		return procedure.Default(), nil
	}

	procedures := make([]procedure.Procedure, 0, len(specs))
	for _, s := range specs {
		p, err := procedure.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid -p %q: %w", s, err)
		}
		procedures = append(procedures, p)
	}
	return procedures, nil
}
