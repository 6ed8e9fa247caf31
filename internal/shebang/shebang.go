// Package shebang implements the Auto-program launcher: it inspects a
// mirror file's first line and, if it is a "#!" line, resolves the
// interpreter to launch via instead of the file itself. The kernel's
// own shebang handling is unavailable here, since scriptfs invokes by
// descriptor/path under its own control and must resolve interpreter
// paths against the mirror, not the caller's cwd.
package shebang

import (
	"bytes"
	"os"
	"strings"

	"github.com/eewanco/scriptfs/internal/mirror"
)

const probeSize = 256

// Resolve reads the first line of the mirror file at relative (joined
// against mirrorRoot) and returns the argv to launch it with:
//
//   - if the file starts with "#!", argv is [interpreter, filePath]
//   - otherwise argv is [filePath], treating the file as its own
//     executable image
func Resolve(mirrorRoot, relative string) ([]string, error) {
	filePath, err := mirror.Resolve(mirrorRoot, relative)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, probeSize)
	n, _ := f.Read(buf)
	line := buf[:n]

	if len(line) < 2 || line[0] != '#' || line[1] != '!' {
		return []string{filePath}, nil
	}

	rest := line[2:]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}

	interp := parseInterpreterPath(rest)
	if interp == "" {
		return []string{filePath}, nil
	}

	interpPath, err := mirror.ResolveMaybeAbs(mirrorRoot, interp)
	if err != nil {
		return nil, err
	}

	return []string{interpPath, filePath}, nil
}

// parseInterpreterPath reads the interpreter token starting after the
// "#!", skipping leading whitespace and stopping at the first
// unescaped whitespace. "\ " inside the token is a literal space.
func parseInterpreterPath(rest []byte) string {
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}

	var sb strings.Builder
	for i < len(rest) {
		c := rest[i]
		if c == '\\' && i+1 < len(rest) && rest[i+1] == ' ' {
			sb.WriteByte(' ')
			i += 2
			continue
		}
		if c == ' ' || c == '\t' {
			break
		}
		sb.WriteByte(c)
		i++
	}

	return sb.String()
}
