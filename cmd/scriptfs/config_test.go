package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestProgram() *program {
	return &program{
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		opts:   &programOptions{},
	}
}

// Expectation: the function sets all non-provided flags to their defaults.
func TestParseArgsUnsetDefaults(t *testing.T) {
	prog := newTestProgram()

	args := []string{"scriptfs", "/mirror", "/mnt"}
	err := prog.parseArgs(args)
	require.NoError(t, err)

	require.Equal(t, "/mirror", prog.opts.MirrorPath)
	require.Equal(t, "/mnt", prog.opts.Mountpoint)
	require.False(t, prog.opts.EagerSize)
	require.Empty(t, prog.opts.ProcedureSrc)
	require.False(t, prog.opts.Foreground)
	require.False(t, prog.opts.Debug)
	require.Empty(t, prog.opts.MountOpts)
	require.Equal(t, "info", prog.opts.LogLevel)
	require.False(t, prog.opts.JSON)
}

// Expectation: the function parses every known flag, including repeated ones.
func TestParseArgsAllFlags(t *testing.T) {
	prog := newTestProgram()

	args := []string{
		"scriptfs",
		"-l",
		"-p", "auto;always",
		"-p", "cat !;executable",
		"-f",
		"-d",
		"-o", "allow_other",
		"-o", "ro",
		"-log-level=warn",
		"-json",
		"/mirror",
		"/mnt",
	}
	err := prog.parseArgs(args)
	require.NoError(t, err)

	require.True(t, prog.opts.EagerSize)
	require.Equal(t, repeatableFlag{"auto;always", "cat !;executable"}, prog.opts.ProcedureSrc)
	require.True(t, prog.opts.Foreground)
	require.True(t, prog.opts.Debug)
	require.Equal(t, repeatableFlag{"allow_other", "ro"}, prog.opts.MountOpts)
	require.Equal(t, "warn", prog.opts.LogLevel)
	require.True(t, prog.opts.JSON)
	require.Equal(t, "/mirror", prog.opts.MirrorPath)
	require.Equal(t, "/mnt", prog.opts.Mountpoint)
}

// Expectation: the function rejects a missing mountpoint argument.
func TestParseArgsMissingMountpoint(t *testing.T) {
	prog := newTestProgram()

	err := prog.parseArgs([]string{"scriptfs", "/mirror"})
	require.ErrorIs(t, err, errArgMissingPaths)
}

// Expectation: the function rejects extra positional arguments.
func TestParseArgsTooManyPositionals(t *testing.T) {
	prog := newTestProgram()

	err := prog.parseArgs([]string{"scriptfs", "/mirror", "/mnt", "/extra"})
	require.ErrorIs(t, err, errArgMissingPaths)
}

// Expectation: the function validates known-good options.
func TestValidateOptsValid(t *testing.T) {
	prog := newTestProgram()
	prog.opts = &programOptions{
		MirrorPath: "/mirror",
		Mountpoint: "/mnt",
		LogLevel:   "debug",
	}

	require.NoError(t, prog.validateOpts())
}

// Expectation: the function rejects a missing mirror_path or mountpoint.
func TestValidateOptsMissingPaths(t *testing.T) {
	prog := newTestProgram()
	prog.opts = &programOptions{
		MirrorPath: "",
		Mountpoint: "/mnt",
		LogLevel:   "info",
	}

	require.ErrorIs(t, prog.validateOpts(), errArgMissingPaths)
}

// Expectation: the function rejects an unrecognized log level.
func TestValidateOptsInvalidLogLevel(t *testing.T) {
	prog := newTestProgram()
	prog.opts = &programOptions{
		MirrorPath: "/mirror",
		Mountpoint: "/mnt",
		LogLevel:   "verbose",
	}

	require.ErrorIs(t, prog.validateOpts(), errArgInvalidLogLevel)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]bool{
		"debug":   true,
		"info":    true,
		"warn":    true,
		"warning": true,
		"error":   true,
		"trace":   false,
		"":        false,
	}
	for level, ok := range cases {
		_, err := parseLogLevel(level)
		if ok {
			require.NoError(t, err, level)
		} else {
			require.ErrorIs(t, err, errArgInvalidLogLevel, level)
		}
	}
}
