package main

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// repeatableFlag backs any CLI flag that can be given more than once,
// accumulating values in the order they were seen ("-p" procedures,
// "-o" passthrough mount options).
type repeatableFlag []string

func (r *repeatableFlag) String() string {
	return strings.Join(*r, ",")
}

func (r *repeatableFlag) Set(value string) error {
	*r = append(*r, value)
	return nil
}

type programOptions struct {
	EagerSize    bool
	ProcedureSrc repeatableFlag
	Foreground   bool
	Debug        bool
	MountOpts    repeatableFlag
	LogLevel     string
	JSON         bool

	MirrorPath string
	Mountpoint string
}

func (prog *program) parseArgs(cliArgs []string) error {
	prog.flags = flag.NewFlagSet("scriptfs", flag.ContinueOnError)
	prog.flags.SetOutput(prog.stderr)
	prog.flags.Usage = func() {
		fmt.Fprintf(prog.stderr, "usage: %s [-l] [-p SPEC]... [-f] [-d] [-o OPT]... mirror_path mountpoint\n\n", cliArgs[0])
		prog.flags.PrintDefaults()
	}

	prog.flags.BoolVar(&prog.opts.EagerSize, "l", false, "run scripts eagerly on stat to report their true output length")
	prog.flags.Var(&prog.opts.ProcedureSrc, "p", "a PROGRAM[;TEST] procedure spec; can be repeated, evaluated in order, first match wins")
	prog.flags.BoolVar(&prog.opts.Foreground, "f", false, "accepted for compatibility; the process never daemonizes and always runs in the foreground")
	prog.flags.BoolVar(&prog.opts.Debug, "d", false, "enable verbose FUSE protocol debug logging")
	prog.flags.Var(&prog.opts.MountOpts, "o", "a mount option passed through to the FUSE binding; can be repeated")
	prog.flags.StringVar(&prog.opts.LogLevel, "log-level", "info", "decides the verbosity of emitted logs; debug, info, warn, error")
	prog.flags.BoolVar(&prog.opts.JSON, "json", false, "output all emitted logs in the JSON format; results can be read from stderr")

	if err := prog.flags.Parse(cliArgs[1:]); err != nil {
		return fmt.Errorf("failed parsing flags: %w", err)
	}

	rest := prog.flags.Args()
	if len(rest) != 2 {
		return fmt.Errorf("%w: expected mirror_path and mountpoint, got %d positional argument(s)", errArgMissingPaths, len(rest))
	}
	prog.opts.MirrorPath = rest[0]
	prog.opts.Mountpoint = rest[1]

	return nil
}

func (prog *program) validateOpts() error {
	if prog.opts.MirrorPath == "" || prog.opts.Mountpoint == "" {
		return errArgMissingPaths
	}

	if _, err := parseLogLevel(prog.opts.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", err, prog.opts.LogLevel)
	}

	return nil
}

func (prog *program) logHandler() slog.Handler {
	level, _ := parseLogLevel(prog.opts.LogLevel)

	if prog.opts.JSON {
		return slog.NewJSONHandler(prog.stderr, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(prog.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})
}

func parseLogLevel(levelStr string) (slog.Level, error) {
	switch strings.TrimSpace(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return defaultLogLevel, errArgInvalidLogLevel
	}
}
