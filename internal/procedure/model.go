// Package procedure models the ordered (Program, Test) pairs that
// decide whether a path is a script and what runs to materialize its
// content. Parsing grammar and classification semantics follow
// spec.md §4.3-§4.6.
package procedure

import (
	"bytes"
	"context"
	"os"
	"regexp"

	"github.com/eewanco/scriptfs/internal/mirror"
	"github.com/eewanco/scriptfs/internal/shebang"
	"github.com/eewanco/scriptfs/internal/tempfile"
)

// Program is what runs to generate a script's content at read time.
type Program interface {
	// Run executes the program for relative, writing its captured
	// stdout to stdout. Errors here mean the child could not even be
	// started; they are never fatal to the caller (open still
	// succeeds with whatever landed in the artifact, per spec §7).
	Run(ctx context.Context, pc *Context, relative string, stdout *os.File) error
}

// Test decides whether a file counts as a script.
type Test interface {
	Match(ctx context.Context, pc *Context, relative string) (bool, error)
}

// Procedure is a (Program, Test) pair; the classifier runs procedures
// in order and the first whose Test matches wins.
type Procedure struct {
	Program Program
	Test    Test
}

// --- Program variants -------------------------------------------------

// autoProgram launches the file via the shebang resolver.
type autoProgram struct{}

func (autoProgram) Run(ctx context.Context, pc *Context, relative string, stdout *os.File) error {
	argv, err := shebang.Resolve(pc.MirrorRoot, relative)
	if err != nil {
		return err
	}
	_, err = pc.Runner.Run(ctx, argv, stdout, "")
	return err
}

// selfProgram launches the file directly as its own argv[0], without
// consulting the shebang resolver. See SPEC_FULL.md Open Question #1.
type selfProgram struct{}

func (selfProgram) Run(ctx context.Context, pc *Context, relative string, stdout *os.File) error {
	abs, err := mirror.Resolve(pc.MirrorRoot, relative)
	if err != nil {
		return err
	}
	_, err = pc.Runner.Run(ctx, []string{abs}, stdout, "")
	return err
}

// externalProgram runs an external command, substituting the "!"
// placeholder with a temp copy of the file, or (if there is no
// placeholder) piping the file's content to the child's stdin.
type externalProgram struct {
	path      string
	argv      []string
	placeholder int // index into argv, or -1
	filter    bool
}

func (e externalProgram) Run(ctx context.Context, pc *Context, relative string, stdout *os.File) error {
	abs, err := mirror.Resolve(pc.MirrorRoot, relative)
	if err != nil {
		return err
	}

	argv := append([]string(nil), e.argv...)
	var stdinPath string

	if e.filter {
		stdinPath = abs
	} else {
		copyPath, cleanup, err := tempfile.CreateNamedCopy(pc.TempDir, abs)
		if err != nil {
			return err
		}
		defer cleanup()
		argv[e.placeholder] = copyPath
	}

	_, err = pc.Runner.Run(ctx, argv, stdout, stdinPath)
	return err
}

// --- Test variants ------------------------------------------------------

type alwaysTest struct{}

func (alwaysTest) Match(ctx context.Context, pc *Context, relative string) (bool, error) {
	return true, nil
}

type executableTest struct{}

func (executableTest) Match(ctx context.Context, pc *Context, relative string) (bool, error) {
	abs, err := mirror.Resolve(pc.MirrorRoot, relative)
	if err != nil {
		return false, err
	}
	return isExecutable(abs), nil
}

func isExecutable(abs string) bool {
	return unixAccessX(abs) == nil
}

type shebangOrExecutableTest struct{}

func (shebangOrExecutableTest) Match(ctx context.Context, pc *Context, relative string) (bool, error) {
	abs, err := mirror.Resolve(pc.MirrorRoot, relative)
	if err != nil {
		return false, err
	}

	f, err := os.Open(abs)
	if err == nil {
		buf := make([]byte, 2)
		n, _ := f.Read(buf)
		f.Close()
		if n == 2 && bytes.Equal(buf, []byte("#!")) {
			return true, nil
		}
	}

	return isExecutable(abs), nil
}

type patternTest struct {
	re *regexp.Regexp
}

func (p patternTest) Match(ctx context.Context, pc *Context, relative string) (bool, error) {
	return p.re.MatchString(relative), nil
}

// externalTest runs an external command, substituting "!" with the
// virtual path (not a temp copy — the deliberate asymmetry described
// in spec.md §4.4), or piping the file's content to stdin otherwise.
// Exit code 0 means match.
type externalTest struct {
	path      string
	argv      []string
	placeholder int
	filter    bool
}

func (e externalTest) Match(ctx context.Context, pc *Context, relative string) (bool, error) {
	argv := append([]string(nil), e.argv...)
	var stdinPath string

	if e.filter {
		abs, err := mirror.Resolve(pc.MirrorRoot, relative)
		if err != nil {
			return false, err
		}
		stdinPath = abs
	} else {
		argv[e.placeholder] = relative
	}

	code, err := pc.Runner.Run(ctx, argv, nil, stdinPath)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}
