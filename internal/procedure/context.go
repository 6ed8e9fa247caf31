package procedure

import (
	"log/slog"

	"github.com/eewanco/scriptfs/internal/procexec"
)

// Context carries the dependencies Program and Test implementations
// need to actually run: where the mirror lives, how to spawn
// processes, where to put temp copies, and a logger for the
// permissive failure paths the spec calls for.
type Context struct {
	MirrorRoot string
	Runner     *procexec.Runner
	TempDir    string
	Log        *slog.Logger
}

func (c *Context) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
